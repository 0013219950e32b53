package classify

import (
	"regexp"
	"strings"
)

// Filename heuristics for deciding whether an attachment is the
// solicitation document itself, as opposed to supporting material. Strong
// positives override the attachment/fopr demotions; weak positives do not.
var (
	strongPositivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)RFI`),
		regexp.MustCompile(`(?i)Request for Information`),
		regexp.MustCompile(`(?i)DRFP`),
		regexp.MustCompile(`(?i)Draft RFP`),
		regexp.MustCompile(`(?i)Draft Request for Proposal`),
		regexp.MustCompile(`(?i)RFP`),
		regexp.MustCompile(`(?i)Request for Proposal`),
		regexp.MustCompile(`(?i)PWS`),
		regexp.MustCompile(`(?i)Performance Work Statement`),
		regexp.MustCompile(`(?i)SOW`),
		regexp.MustCompile(`(?i)Statement of Work`),
	}
	weakPositivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)RS3`),
		regexp.MustCompile(`(?i)Responsive Strategic Sourcing for Services`),
	}
	negativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)amendment`),
		regexp.MustCompile(`(?i)questions`),
		regexp.MustCompile(`(?i)answers`),
		regexp.MustCompile(`(?i)Q\s*&\s*A`),
		regexp.MustCompile(`(?i)industry`),
		regexp.MustCompile(`(?i)amend`),
		regexp.MustCompile(`(?i)CDRL`),
		regexp.MustCompile(`(?i)\brev\b`),
		regexp.MustCompile(`(?i)revision`),
		regexp.MustCompile(`(?i)cover letter`),
		regexp.MustCompile(`(?i)labor`),
		regexp.MustCompile(`(?i)v2`),
	}
	attachmentPattern = regexp.MustCompile(`(?i)attachment`)
	foprPattern       = regexp.MustCompile(`(?i)fopr`)
	amendNamePattern  = regexp.MustCompile(`(?i)amend`)
)

// LooksLikeAmendment reports whether a file name suggests an amendment.
// Such names fail IsSubmissionName but must still reach classification.
func LooksLikeAmendment(name string) bool {
	return amendNamePattern.MatchString(name)
}

func anyMatch(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsSubmissionName reports whether a file name looks like the solicitation
// document, with the reason for the decision.
func IsSubmissionName(name string) (bool, string) {
	strong := anyMatch(strongPositivePatterns, name)
	weak := anyMatch(weakPositivePatterns, name)
	negative := anyMatch(negativePatterns, name)
	attachment := attachmentPattern.MatchString(name)
	fopr := foprPattern.MatchString(name)

	switch {
	case negative:
		return false, "file name contains negative patterns"
	case strong:
		return true, "file name contains strong solicitation indicator"
	case weak && !attachment && !fopr:
		return true, "file name contains weak solicitation indicator and is not an attachment or fopr"
	case fopr && !strong:
		return false, "file contains 'fopr' without strong solicitation indicator"
	default:
		return false, "file name matches no solicitation patterns"
	}
}

// SubmissionType identifies the solicitation flavor from combined email or
// document content. Draft indicators are checked before the plain RFP
// match so "Draft RFP" does not register as an RFP.
func SubmissionType(content string) string {
	upper := strings.ToUpper(content)
	contains := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(upper, t) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("RFI", "REQUEST FOR INFORMATION"):
		return "RFI"
	case contains("DRFP", "DRAFT RFP", "DRAFT REQUEST FOR PROPOSAL", "DRAFT SOLICITATION"):
		return "DRFP"
	case contains("RFP", "REQUEST FOR PROPOSAL"):
		return "RFP"
	case contains("SOW", "STATEMENT OF WORK"):
		return "SOW"
	case contains("PWS", "PERFORMANCE WORK STATEMENT"):
		return "PWS"
	default:
		return "Unknown"
	}
}
