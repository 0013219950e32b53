package amend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cbrane/nexus/internal/analysis"
	"github.com/cbrane/nexus/internal/lifecycle"
	"github.com/cbrane/nexus/internal/notify"
	"github.com/cbrane/nexus/internal/report"
	"github.com/cbrane/nexus/internal/store"
)

// TaskAmendmentSummary is the capability task that produces the change
// summary for an amendment.
const TaskAmendmentSummary = "amendment_summary"

// Reconciliation outcomes the caller routes on. Neither is a failure: the
// amendment document is parked or requeued, not abandoned.
var (
	// ErrOriginalNotFound means no Report exists for the referenced
	// original. The caller parks the amendment in pending-amendment/.
	ErrOriginalNotFound = errors.New("amend: original document has no report")

	// ErrOriginalInProgress means the original's Report exists but is not
	// complete yet. The caller leaves the amendment in classified/ for a
	// later pass.
	ErrOriginalInProgress = errors.New("amend: original report not complete")
)

// Reconciler matches amendment documents to the complete Report of their
// original submission, records the change, and publishes a summary
// artifact.
type Reconciler struct {
	analyzer analysis.Analyzer
	retry    analysis.Retry
	reports  *report.Store
	records  *Records
	objects  store.Store
	manager  *lifecycle.Manager
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewReconciler wires a Reconciler.
func NewReconciler(
	analyzer analysis.Analyzer,
	retry analysis.Retry,
	reports *report.Store,
	records *Records,
	objects store.Store,
	manager *lifecycle.Manager,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Log{Logger: logger}
	}
	return &Reconciler{
		analyzer: analyzer,
		retry:    retry,
		reports:  reports,
		records:  records,
		objects:  objects,
		manager:  manager,
		notifier: notifier,
		logger:   logger,
	}
}

// Reconcile applies an amendment document to its original's Report. doc
// must be classified as an amendment with a resolved reference identifier,
// sitting in classified/.
//
// Returns ErrOriginalNotFound when no Report exists for the referenced
// identifier and ErrOriginalInProgress when one exists but is not complete.
// In both cases doc has not been moved. On success the amendment document
// ends archived with an AmendmentRecord persisted and a summary artifact
// uploaded under reports/.
//
// Reconcile is idempotent: re-running it for an amendment that already has
// a record (a crash landed between the insert and the archive moves)
// republishes the artifact and drains the moves without a second
// capability call or a duplicate record.
func (r *Reconciler) Reconcile(ctx context.Context, doc *lifecycle.Document, text string) (*AmendmentRecord, error) {
	if doc.RefID == "" {
		return nil, analysis.PermanentError(TaskAmendmentSummary,
			fmt.Errorf("amendment %s carries no reference identifier", doc.ID))
	}

	orig, err := r.reports.Get(ctx, doc.RefID)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, fmt.Errorf("%w: %s", ErrOriginalNotFound, doc.RefID)
	}
	if orig.State != report.StateComplete {
		// A failed original is also not ready; an operator reprocess may
		// still complete it.
		return nil, fmt.Errorf("%w: %s is %s", ErrOriginalInProgress, doc.RefID, orig.State)
	}

	prior, err := r.records.ListByOriginal(ctx, doc.RefID)
	if err != nil {
		return nil, err
	}
	for i := range prior {
		if prior[i].AmendmentDocumentID == doc.ID {
			// Already recorded: a crash between the record insert and the
			// archive moves left the document behind. Finish without
			// invoking the capability again.
			return r.finish(ctx, doc, &prior[i], i+1)
		}
	}

	if doc.Status == lifecycle.StatusClassified {
		if err := r.manager.Transition(ctx, doc, lifecycle.StatusProcessing); err != nil {
			return nil, err
		}
	}

	summary, err := r.retry.Invoke(ctx, r.analyzer, TaskAmendmentSummary, r.assembleContext(orig, doc, text))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, r.fail(ctx, doc, err)
	}

	rec, err := r.records.Insert(ctx, doc.RefID, doc.ID, summary)
	if err != nil {
		return nil, r.fail(ctx, doc, err)
	}
	return r.finish(ctx, doc, rec, len(prior)+1)
}

// finish publishes the summary artifact and drains the moves into
// archived/. ordinal is the record's 1-based position among the original's
// amendments and names the artifact. Safe to repeat for a document that
// crashed partway: Put overwrites and the transitions run from whatever
// state the document is in.
func (r *Reconciler) finish(ctx context.Context, doc *lifecycle.Document, rec *AmendmentRecord, ordinal int) (*AmendmentRecord, error) {
	summaryKey := fmt.Sprintf("%s%s-amendment-%d.md", report.ReportPrefix, rec.OriginalDocumentID, ordinal)
	if err := r.objects.Put(ctx, summaryKey, []byte(r.render(rec))); err != nil {
		return rec, err
	}

	switch doc.Status {
	case lifecycle.StatusClassified:
		if err := r.manager.Transition(ctx, doc, lifecycle.StatusArchived); err != nil {
			return rec, err
		}
	case lifecycle.StatusProcessing:
		if err := r.manager.Transition(ctx, doc, lifecycle.StatusCompleted); err != nil {
			return rec, err
		}
		if err := r.manager.Transition(ctx, doc, lifecycle.StatusArchived); err != nil {
			return rec, err
		}
	}

	if err := r.notifier.AmendmentRecorded(ctx, rec.OriginalDocumentID, rec.AmendmentDocumentID, summaryKey); err != nil {
		r.logger.Warn("amendment notification failed", "original", rec.OriginalDocumentID, "error", err)
	}
	r.logger.Info("amendment reconciled",
		"original", rec.OriginalDocumentID, "amendment", rec.AmendmentDocumentID, "summary", summaryKey)
	return rec, nil
}

// assembleContext builds the capability input: the original's completed
// sections followed by the amendment text.
func (r *Reconciler) assembleContext(orig *report.Report, doc *lifecycle.Document, text string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original analysis for %s:\n", orig.DocumentID)
	for _, s := range orig.Sections {
		fmt.Fprintf(&sb, "\n%s:\n%s\n", s.Task, s.Text)
	}
	fmt.Fprintf(&sb, "\nAmendment document %s:\n%s", doc.ID, text)
	return sb.String()
}

func (r *Reconciler) render(rec *AmendmentRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Amendment %s\n\n", rec.AmendmentDocumentID)
	fmt.Fprintf(&sb, "Amends: %s\n\n", rec.OriginalDocumentID)
	fmt.Fprintf(&sb, "## Change Summary\n\n%s\n", rec.ChangeSummary)
	return sb.String()
}

func (r *Reconciler) fail(ctx context.Context, doc *lifecycle.Document, cause error) error {
	r.logger.Error("amendment reconciliation failed",
		"original", doc.RefID, "amendment", doc.ID, "error", cause)
	if err := r.manager.Transition(ctx, doc, lifecycle.StatusFailed); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
