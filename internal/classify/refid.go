package classify

import (
	"fmt"
	"regexp"
)

// DefaultRefPattern matches solicitation reference numbers of the form
// RS3-NN-NNNN (RS2 legacy numbers included). The pattern is configuration;
// deployments tracking a different identifier scheme override it.
const DefaultRefPattern = `RS[23]-\d{2}-\d{4}`

// RefExtractor extracts amendment target identifiers with a fixed pattern.
// Extraction is a pure function so it stays reproducible and testable apart
// from the capability-backed classification calls.
type RefExtractor struct {
	re *regexp.Regexp
}

// NewRefExtractor compiles pattern into an extractor. An empty pattern
// selects DefaultRefPattern.
func NewRefExtractor(pattern string) (*RefExtractor, error) {
	if pattern == "" {
		pattern = DefaultRefPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("classify: compile reference pattern %q: %w", pattern, err)
	}
	return &RefExtractor{re: re}, nil
}

// Extract returns the first reference identifier found in text, or "" when
// none is present.
func (x *RefExtractor) Extract(text string) string {
	return x.re.FindString(text)
}
