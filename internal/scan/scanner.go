// Package scan drives the engine: it discovers work under unprocessed/,
// claims it, routes each document through classification to the right
// pipeline, and sweeps the recovery prefixes so a crashed or interrupted
// run picks up where it left off.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/cbrane/nexus/internal/amend"
	"github.com/cbrane/nexus/internal/classify"
	"github.com/cbrane/nexus/internal/lifecycle"
	"github.com/cbrane/nexus/internal/normalize"
	"github.com/cbrane/nexus/internal/report"
	"github.com/cbrane/nexus/internal/store"
)

// DefaultMaxConcurrent bounds in-flight document processing per pass.
const DefaultMaxConcurrent = 4

// Summary counts what one scan pass did.
type Summary struct {
	mu sync.Mutex

	Claimed   int // taken from unprocessed/
	Resumed   int // adopted from processing/ or classified/
	Reports   int // new-submission reports completed
	Amended   int // amendment records written
	Parked    int // amendments moved to pending-amendment/
	Requeued  int // amendments left in classified/ for a later pass
	Archived  int // irrelevant or duplicate documents archived
	Failed    int // documents moved to failed/
	Unblocked int // pending amendments whose original completed
}

func (s *Summary) add(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// LogValue renders the summary as structured attributes.
func (s *Summary) LogValue() slog.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slog.GroupValue(
		slog.Int("claimed", s.Claimed),
		slog.Int("resumed", s.Resumed),
		slog.Int("reports", s.Reports),
		slog.Int("amended", s.Amended),
		slog.Int("parked", s.Parked),
		slog.Int("requeued", s.Requeued),
		slog.Int("archived", s.Archived),
		slog.Int("failed", s.Failed),
		slog.Int("unblocked", s.Unblocked),
	)
}

// Scanner is the single entry point for a processing pass.
type Scanner struct {
	objects       store.Store
	manager       *lifecycle.Manager
	classifier    *classify.Classifier
	orchestrator  *report.Orchestrator
	reconciler    *amend.Reconciler
	reports       *report.Store
	maxConcurrent int
	logger        *slog.Logger
}

// New wires a Scanner. maxConcurrent <= 0 selects DefaultMaxConcurrent.
func New(
	objects store.Store,
	manager *lifecycle.Manager,
	classifier *classify.Classifier,
	orchestrator *report.Orchestrator,
	reconciler *amend.Reconciler,
	reports *report.Store,
	maxConcurrent int,
	logger *slog.Logger,
) *Scanner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		objects:       objects,
		manager:       manager,
		classifier:    classifier,
		orchestrator:  orchestrator,
		reconciler:    reconciler,
		reports:       reports,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Run executes one full pass:
//
//  1. resume documents stranded in processing/ by a crash
//  2. re-drive documents waiting in classified/ (requeued amendments)
//  3. claim and process everything under unprocessed/, bounded by the
//     concurrency limit
//  4. re-check pending-amendment/ against reports completed this pass
//
// The pass is idempotent: re-running after any interruption converges to
// the same end state.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	if err := s.resumeProcessing(ctx, sum); err != nil {
		return sum, err
	}
	if err := s.sweepClassified(ctx, sum); err != nil {
		return sum, err
	}
	if err := s.scanUnprocessed(ctx, sum); err != nil {
		return sum, err
	}
	if err := s.sweepPending(ctx, sum); err != nil {
		return sum, err
	}

	s.logger.Info("scan pass complete", "summary", sum)
	return sum, nil
}

// scanUnprocessed claims every key under unprocessed/ and dispatches it to
// a bounded worker pool. A claim lost to a concurrent scanner is skipped
// silently.
func (s *Scanner) scanUnprocessed(ctx context.Context, sum *Summary) error {
	var keys []string
	err := s.objects.List(ctx, lifecycle.PrefixUnprocessed, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan: list %s: %w", lifecycle.PrefixUnprocessed, err)
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		doc, err := s.manager.Claim(ctx, key)
		if errors.Is(err, lifecycle.ErrGone) {
			continue
		}
		if err != nil {
			s.logger.Error("claim failed", "key", key, "error", err)
			continue
		}
		sum.add(&sum.Claimed)

		wg.Add(1)
		sem <- struct{}{}
		go func(doc *lifecycle.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.process(ctx, doc, sum); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("document processing failed", "document", doc.ID, "error", err)
			}
		}(doc)
	}
	wg.Wait()
	return ctx.Err()
}

// process routes one claimed document. doc sits in classified/ (fresh
// claim or requeue) and carries no category yet.
func (s *Scanner) process(ctx context.Context, doc *lifecycle.Document, sum *Summary) error {
	data, err := s.objects.Get(ctx, doc.Key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil // claimed elsewhere between move and read
		}
		return fmt.Errorf("scan: read %s: %w", doc.Key, err)
	}

	format, err := normalize.Detect(doc.Key)
	if err != nil {
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, err)
	}
	if format == normalize.FormatEmail {
		return s.processEmail(ctx, doc, data, sum)
	}

	// Filename screening rejects obvious non-submissions without spending
	// a capability call. Amendment-looking names and names carrying a
	// reference identifier still go through classification.
	base := path.Base(doc.Key)
	if ok, reason := classify.IsSubmissionName(base); !ok {
		if !classify.LooksLikeAmendment(base) && s.classifier.ExtractRef(base) == "" {
			s.logger.Debug("filename screened out", "document", doc.ID, "reason", reason)
			sum.add(&sum.Archived)
			return s.manager.Transition(ctx, doc, lifecycle.StatusArchived)
		}
	}

	text, err := normalize.Text(doc.Key, data)
	if err != nil {
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, err)
	}

	category, err := s.classifier.Document(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, err)
	}
	doc.Category = string(category)
	s.logger.Info("document classified", "document", doc.ID, "category", category)

	switch category {
	case classify.CategoryIrrelevant:
		sum.add(&sum.Archived)
		return s.manager.Transition(ctx, doc, lifecycle.StatusArchived)
	case classify.CategoryNew:
		return s.runReport(ctx, doc, text, sum)
	case classify.CategoryAmendment:
		return s.runAmendment(ctx, doc, text, sum)
	default:
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, fmt.Errorf("scan: unhandled category %q", category))
	}
}

// processEmail handles .email.json sidecars: notification classification
// instead of document classification. An amendment notice is reconciled
// like any amendment document; everything else is archived.
func (s *Scanner) processEmail(ctx context.Context, doc *lifecycle.Document, data []byte, sum *Summary) error {
	email, err := normalize.ParseEmail(data)
	if err != nil {
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, err)
	}
	notice, err := s.classifier.Notification(ctx, email.Subject, email.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, err)
	}
	s.logger.Info("notification classified", "document", doc.ID, "notice", notice)

	if notice != classify.NoticeAmendment {
		sum.add(&sum.Archived)
		return s.manager.Transition(ctx, doc, lifecycle.StatusArchived)
	}
	doc.Category = string(classify.CategoryAmendment)
	return s.runAmendment(ctx, doc, email.Combined(), sum)
}

// runReport drives the new-submission pipeline.
func (s *Scanner) runReport(ctx context.Context, doc *lifecycle.Document, text string, sum *Summary) error {
	rep, err := s.orchestrator.Run(ctx, doc, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		sum.add(&sum.Failed)
		return err
	}
	if rep != nil && rep.State == report.StateComplete {
		sum.add(&sum.Reports)
	}
	return nil
}

// runAmendment resolves the amendment's reference identifier and
// reconciles it. Unresolved originals park the document; in-progress
// originals leave it queued in classified/.
func (s *Scanner) runAmendment(ctx context.Context, doc *lifecycle.Document, text string, sum *Summary) error {
	if doc.RefID == "" {
		doc.RefID = s.resolveRef(doc.Key, text)
	}
	if doc.RefID == "" {
		// No identifier anywhere means this amendment can never be
		// matched. Permanent.
		sum.add(&sum.Failed)
		return s.fail(ctx, doc, fmt.Errorf("scan: amendment %s has no reference identifier", doc.ID))
	}

	_, err := s.reconciler.Reconcile(ctx, doc, text)
	switch {
	case err == nil:
		sum.add(&sum.Amended)
		return nil
	case errors.Is(err, amend.ErrOriginalNotFound):
		s.logger.Info("amendment parked, original unknown",
			"document", doc.ID, "original", doc.RefID)
		sum.add(&sum.Parked)
		return s.manager.Transition(ctx, doc, lifecycle.StatusPendingAmendment)
	case errors.Is(err, amend.ErrOriginalInProgress):
		s.logger.Info("amendment requeued, original in progress",
			"document", doc.ID, "original", doc.RefID)
		sum.add(&sum.Requeued)
		return nil
	case errors.Is(err, context.Canceled):
		return err
	default:
		sum.add(&sum.Failed)
		return err
	}
}

// resolveRef looks for the reference identifier in the storage key first,
// then in the document text.
func (s *Scanner) resolveRef(key, text string) string {
	if ref := s.classifier.ExtractRef(path.Base(key)); ref != "" {
		return ref
	}
	return s.classifier.ExtractRef(text)
}

// resumeProcessing adopts documents stranded in processing/. A document
// with a report row resumes the report pipeline from its last completed
// section; one without a row was an amendment mid-reconcile and is
// reconciled again.
func (s *Scanner) resumeProcessing(ctx context.Context, sum *Summary) error {
	var keys []string
	err := s.objects.List(ctx, lifecycle.PrefixProcessing, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan: list %s: %w", lifecycle.PrefixProcessing, err)
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc, err := s.manager.Resume(key)
		if err != nil {
			s.logger.Error("resume failed", "key", key, "error", err)
			continue
		}
		sum.add(&sum.Resumed)
		s.logger.Info("resuming stranded document", "document", doc.ID)

		rep, err := s.reports.Get(ctx, doc.ID)
		if err != nil {
			return err
		}

		data, err := s.objects.Get(ctx, doc.Key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("scan: read %s: %w", doc.Key, err)
		}
		text, err := normalize.Text(doc.Key, data)
		if err != nil {
			sum.add(&sum.Failed)
			if ferr := s.fail(ctx, doc, err); ferr != nil {
				return ferr
			}
			continue
		}

		if rep != nil {
			doc.Category = string(classify.CategoryNew)
			if err := s.runReport(ctx, doc, text, sum); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("resume of report pipeline failed", "document", doc.ID, "error", err)
			}
			continue
		}

		// No report row: this was an amendment. If its original is still
		// unresolved we cannot park from processing/; fail it so an
		// operator can re-deposit.
		doc.Category = string(classify.CategoryAmendment)
		doc.RefID = s.resolveRef(doc.Key, text)
		_, err = s.reconciler.Reconcile(ctx, doc, text)
		switch {
		case err == nil:
			sum.add(&sum.Amended)
		case errors.Is(err, amend.ErrOriginalNotFound), errors.Is(err, amend.ErrOriginalInProgress):
			sum.add(&sum.Failed)
			if ferr := s.fail(ctx, doc, err); ferr != nil {
				return ferr
			}
		case errors.Is(err, context.Canceled):
			return err
		default:
			sum.add(&sum.Failed)
			s.logger.Error("resume of amendment failed", "document", doc.ID, "error", err)
		}
	}
	return nil
}

// sweepClassified re-drives documents already sitting in classified/: a
// crash between claim and routing, or an amendment requeued by an earlier
// pass. Runs before the main pass so freshly claimed work is not
// double-processed.
func (s *Scanner) sweepClassified(ctx context.Context, sum *Summary) error {
	var keys []string
	err := s.objects.List(ctx, lifecycle.PrefixClassified, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan: list %s: %w", lifecycle.PrefixClassified, err)
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc, err := s.manager.Resume(key)
		if err != nil {
			s.logger.Error("resume failed", "key", key, "error", err)
			continue
		}
		sum.add(&sum.Resumed)
		if err := s.process(ctx, doc, sum); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("requeued document failed", "document", doc.ID, "error", err)
		}
	}
	return nil
}

// sweepPending re-checks parked amendments. One whose original's Report
// has since completed returns to classified/ and reconciles immediately;
// the rest stay parked.
func (s *Scanner) sweepPending(ctx context.Context, sum *Summary) error {
	var keys []string
	err := s.objects.List(ctx, lifecycle.PrefixPendingAmendment, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan: list %s: %w", lifecycle.PrefixPendingAmendment, err)
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc, err := s.manager.Resume(key)
		if err != nil {
			s.logger.Error("resume failed", "key", key, "error", err)
			continue
		}

		data, err := s.objects.Get(ctx, doc.Key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("scan: read %s: %w", doc.Key, err)
		}
		text, err := normalize.Text(doc.Key, data)
		if err != nil {
			s.logger.Error("parked amendment unreadable", "document", doc.ID, "error", err)
			continue
		}

		doc.Category = string(classify.CategoryAmendment)
		doc.RefID = s.resolveRef(doc.Key, text)
		if doc.RefID == "" {
			s.logger.Warn("parked amendment has no reference identifier", "document", doc.ID)
			continue
		}
		rep, err := s.reports.Get(ctx, doc.RefID)
		if err != nil {
			return err
		}
		if rep == nil || rep.State != report.StateComplete {
			continue // still blocked
		}

		if err := s.manager.Transition(ctx, doc, lifecycle.StatusClassified); err != nil {
			if errors.Is(err, lifecycle.ErrGone) {
				continue
			}
			return err
		}
		sum.add(&sum.Unblocked)
		s.logger.Info("parked amendment unblocked", "document", doc.ID, "original", doc.RefID)
		if err := s.runAmendment(ctx, doc, text, sum); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("unblocked amendment failed", "document", doc.ID, "error", err)
		}
	}
	return nil
}

// fail moves a document to failed/. From classified/ the state machine
// requires passing through processing/ first.
func (s *Scanner) fail(ctx context.Context, doc *lifecycle.Document, cause error) error {
	s.logger.Error("document failed", "document", doc.ID, "error", cause)
	if doc.Status == lifecycle.StatusClassified {
		if err := s.manager.Transition(ctx, doc, lifecycle.StatusProcessing); err != nil {
			return errors.Join(cause, err)
		}
	}
	if doc.Status == lifecycle.StatusProcessing {
		if err := s.manager.Transition(ctx, doc, lifecycle.StatusFailed); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}
