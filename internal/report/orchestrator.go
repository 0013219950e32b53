package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cbrane/nexus/internal/analysis"
	"github.com/cbrane/nexus/internal/classify"
	"github.com/cbrane/nexus/internal/lifecycle"
	"github.com/cbrane/nexus/internal/notify"
	"github.com/cbrane/nexus/internal/store"
)

// ReportPrefix is where rendered report artifacts land in the store.
const ReportPrefix = "reports/"

// Orchestrator runs the ordered task pipeline for a new-submission
// document, accumulating sections into its Report. Tasks that already have
// a section are skipped, which makes re-running after a crash idempotent.
type Orchestrator struct {
	analyzer analysis.Analyzer
	retry    analysis.Retry
	catalog  Catalog
	reports  *Store
	objects  store.Store
	manager  *lifecycle.Manager
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	analyzer analysis.Analyzer,
	retry analysis.Retry,
	catalog Catalog,
	reports *Store,
	objects store.Store,
	manager *lifecycle.Manager,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Log{Logger: logger}
	}
	return &Orchestrator{
		analyzer: analyzer,
		retry:    retry,
		catalog:  catalog,
		reports:  reports,
		objects:  objects,
		manager:  manager,
		notifier: notifier,
		logger:   logger,
	}
}

// Run drives doc through every pipeline task in ordinal order. doc must be
// classified as a new submission and sit in classified/ or processing/
// (the latter when resuming). text is the normalized document content.
//
// On success the document ends archived with a complete Report and a
// rendered artifact under reports/. On retry exhaustion or a permanent
// failure the document moves to failed/ with all completed sections
// preserved. Cancellation returns immediately, leaving the document in
// processing/ with an in-progress Report, which a later pass resumes.
func (o *Orchestrator) Run(ctx context.Context, doc *lifecycle.Document, text string) (*Report, error) {
	rep, err := o.reports.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		if rep, err = o.reports.Create(ctx, doc.ID); err != nil {
			return nil, err
		}
	}

	// A duplicate of an already-completed document (e.g. a survivor of a
	// move whose delete failed) is recognized and skipped.
	if rep.State == StateComplete {
		o.logger.Info("report already complete, skipping duplicate", "document", doc.ID)
		switch doc.Status {
		case lifecycle.StatusClassified:
			return rep, o.manager.Transition(ctx, doc, lifecycle.StatusArchived)
		case lifecycle.StatusProcessing:
			// Crashed after the final state write but before the moves.
			if err := o.manager.Transition(ctx, doc, lifecycle.StatusCompleted); err != nil {
				return rep, err
			}
			return rep, o.manager.Transition(ctx, doc, lifecycle.StatusArchived)
		}
		return rep, nil
	}

	if doc.Status == lifecycle.StatusClassified {
		if err := o.manager.Transition(ctx, doc, lifecycle.StatusProcessing); err != nil {
			return nil, err
		}
	}
	if rep.State == StateFailed {
		// Operator reprocess: resume with completed sections intact.
		if err := o.reports.SetState(ctx, doc.ID, StateInProgress); err != nil {
			return nil, err
		}
		rep.State = StateInProgress
	}

	for _, task := range o.catalog {
		if rep.Has(task.Name) {
			o.logger.Debug("skipping completed task", "document", doc.ID, "task", task.Name)
			continue
		}
		contextText, err := o.assembleContext(rep, task, text)
		if err != nil {
			// Missing dependency output is a configuration error, never a
			// transient fault.
			return rep, o.fail(ctx, doc, rep, err)
		}
		out, err := o.retry.Invoke(ctx, o.analyzer, task.Name, contextText)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return rep, err
			}
			return rep, o.fail(ctx, doc, rep, err)
		}
		if err := o.reports.AppendSection(ctx, doc.ID, task.Name, out); err != nil {
			return rep, err
		}
		rep.Sections = append(rep.Sections, Section{Task: task.Name, Text: out})
		o.logger.Info("task completed",
			"document", doc.ID, "task", task.Name, "sections", len(rep.Sections))
	}

	if err := o.reports.SetState(ctx, doc.ID, StateComplete); err != nil {
		return rep, err
	}
	rep.State = StateComplete

	reportKey := ReportPrefix + doc.ID + "-report.md"
	rendered := Render(rep, classify.SubmissionType(text))
	if err := o.objects.Put(ctx, reportKey, []byte(rendered)); err != nil {
		return rep, err
	}

	if err := o.manager.Transition(ctx, doc, lifecycle.StatusCompleted); err != nil {
		return rep, err
	}
	if err := o.manager.Transition(ctx, doc, lifecycle.StatusArchived); err != nil {
		return rep, err
	}
	if err := o.notifier.ReportCompleted(ctx, doc.ID, reportKey); err != nil {
		o.logger.Warn("completion notification failed", "document", doc.ID, "error", err)
	}
	return rep, nil
}

// assembleContext builds one task's capability input: the normalized
// document text plus the output of every declared dependency.
func (o *Orchestrator) assembleContext(rep *Report, task Task, text string) (string, error) {
	var sb strings.Builder
	sb.WriteString(text)
	for _, dep := range task.DependsOn {
		out, ok := rep.SectionText(dep)
		if !ok {
			return "", analysis.PermanentError(task.Name,
				fmt.Errorf("dependency %q has no output", dep))
		}
		fmt.Fprintf(&sb, "\n\nOutput of %s:\n%s", dep, out)
	}
	return sb.String(), nil
}

func (o *Orchestrator) fail(ctx context.Context, doc *lifecycle.Document, rep *Report, cause error) error {
	o.logger.Error("pipeline failed",
		"document", doc.ID, "completed", len(rep.Sections), "error", cause)
	if err := o.reports.SetState(ctx, doc.ID, StateFailed); err != nil {
		return errors.Join(cause, err)
	}
	rep.State = StateFailed
	if err := o.manager.Transition(ctx, doc, lifecycle.StatusFailed); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
