// Package classify decides what a discovered document is: a brand-new
// submission, an amendment to a prior one, or irrelevant. The categorical
// calls are thin invocations of the analysis capability; identifier
// extraction is local and deterministic.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cbrane/nexus/internal/analysis"
)

// Category is the one-time classification of a document. Once assigned it
// is never revised.
type Category string

const (
	CategoryNew        Category = "new"
	CategoryAmendment  Category = "amendment"
	CategoryIrrelevant Category = "irrelevant"
)

// NotificationCategory classifies email-shaped inputs.
type NotificationCategory string

const (
	NoticeAmendment     NotificationCategory = "amendment-notice"
	NoticeIndustryEvent NotificationCategory = "industry-event"
	NoticeUnrelated     NotificationCategory = "unrelated"
)

// Task identifiers for the capability calls.
const (
	TaskClassifyDocument     = "classify_document"
	TaskClassifyNotification = "classify_notification"
)

// Classifier interprets categorical results from the analysis capability
// and extracts amendment target identifiers.
type Classifier struct {
	analyzer analysis.Analyzer
	refs     *RefExtractor
}

// New creates a Classifier.
func New(analyzer analysis.Analyzer, refs *RefExtractor) *Classifier {
	return &Classifier{analyzer: analyzer, refs: refs}
}

// Document classifies normalized document text. An unrecognized category in
// the capability's answer is a permanent error, not a retry candidate.
func (c *Classifier) Document(ctx context.Context, text string) (Category, error) {
	answer, err := c.analyzer.Invoke(ctx, TaskClassifyDocument, text)
	if err != nil {
		return "", fmt.Errorf("classify document: %w", err)
	}
	return parseCategory(answer)
}

// Notification classifies an email-shaped input from its subject and body.
func (c *Classifier) Notification(ctx context.Context, subject, body string) (NotificationCategory, error) {
	content := fmt.Sprintf("Subject: %s\n\nBody:\n%s", subject, body)
	answer, err := c.analyzer.Invoke(ctx, TaskClassifyNotification, content)
	if err != nil {
		return "", fmt.Errorf("classify notification: %w", err)
	}
	return parseNotification(answer)
}

// ExtractRef returns the amendment target identifier found in text, or ""
// when none matches.
func (c *Classifier) ExtractRef(text string) string {
	return c.refs.Extract(text)
}

func parseCategory(answer string) (Category, error) {
	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, "amendment"):
		return CategoryAmendment, nil
	case strings.Contains(lower, "new"):
		return CategoryNew, nil
	case strings.Contains(lower, "irrelevant"), strings.Contains(lower, "other"):
		return CategoryIrrelevant, nil
	default:
		return "", analysis.PermanentError(TaskClassifyDocument,
			fmt.Errorf("unrecognized classification category %q", answer))
	}
}

func parseNotification(answer string) (NotificationCategory, error) {
	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, "amendment"):
		return NoticeAmendment, nil
	case strings.Contains(lower, "industry"):
		return NoticeIndustryEvent, nil
	case strings.Contains(lower, "unrelated"), strings.Contains(lower, "other"):
		return NoticeUnrelated, nil
	default:
		return "", analysis.PermanentError(TaskClassifyNotification,
			fmt.Errorf("unrecognized notification category %q", answer))
	}
}
