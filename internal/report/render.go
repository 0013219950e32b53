package report

import (
	"fmt"
	"strings"
)

// Bid recommendation markers emitted by the recommendation task.
const (
	markerBid   = "OVERALL_RECOMMENDATION=BID"
	markerNoBid = "OVERALL_RECOMMENDATION=NO_BID"
)

// Recommendation extracts the tri-state bid recommendation from the
// report's sections.
func Recommendation(rep *Report) string {
	for _, s := range rep.Sections {
		// NO_BID first: the BID marker is a substring of it.
		if strings.Contains(s.Text, markerNoBid) {
			return "No Bid"
		}
		if strings.Contains(s.Text, markerBid) {
			return "Bid"
		}
	}
	return "Unknown"
}

// Render produces the human-readable Markdown report artifact uploaded to
// the store alongside the archived document. submissionType is the
// RFI/DRFP/RFP/SOW/PWS flavor detected from the source content.
func Render(rep *Report, submissionType string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Recommendation: %s\n", Recommendation(rep))
	fmt.Fprintf(&sb, "# %s - %s\n", rep.DocumentID, submissionType)
	for _, s := range rep.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", titleFor(s.Task), s.Text)
	}
	return sb.String()
}

func titleFor(task string) string {
	words := strings.Split(strings.ReplaceAll(task, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
