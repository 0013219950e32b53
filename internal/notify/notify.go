// Package notify is the outbound notification port. Delivering mail is an
// external collaborator's job; the engine only announces that a report or
// amendment summary exists.
package notify

import (
	"context"
	"log/slog"
)

// Notifier announces pipeline results.
type Notifier interface {
	ReportCompleted(ctx context.Context, documentID, reportKey string) error
	AmendmentRecorded(ctx context.Context, originalID, amendmentID, summaryKey string) error
}

// Log is a Notifier that records announcements in the structured log. It
// is the default when no transport is configured.
type Log struct {
	Logger *slog.Logger
}

func (n Log) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n Log) ReportCompleted(ctx context.Context, documentID, reportKey string) error {
	n.logger().Info("report completed", "document", documentID, "report", reportKey)
	return nil
}

func (n Log) AmendmentRecorded(ctx context.Context, originalID, amendmentID, summaryKey string) error {
	n.logger().Info("amendment recorded",
		"original", originalID, "amendment", amendmentID, "summary", summaryKey)
	return nil
}
