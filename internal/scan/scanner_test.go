package scan

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cbrane/nexus/internal/amend"
	"github.com/cbrane/nexus/internal/analysis"
	"github.com/cbrane/nexus/internal/classify"
	"github.com/cbrane/nexus/internal/lifecycle"
	"github.com/cbrane/nexus/internal/report"
	"github.com/cbrane/nexus/internal/store"
	"github.com/cbrane/nexus/internal/testutil"
)

type harness struct {
	scanner  *Scanner
	objects  *store.Mem
	reports  *report.Store
	records  *amend.Records
	analyzer *testutil.ScriptedAnalyzer
	manager  *lifecycle.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.OpenTestDB(t)
	objects := store.NewMem()
	manager := lifecycle.NewManager(objects, nil)
	reports := report.NewStore(database)
	records := amend.NewRecords(database)

	analyzer := testutil.NewScriptedAnalyzer(map[string]string{
		amend.TaskAmendmentSummary: "Deadline extended by two weeks.",
		"bid":                      "OVERALL_RECOMMENDATION=BID",
	})
	analyzer.Respond = func(taskID, contextText string) (string, bool) {
		switch taskID {
		case classify.TaskClassifyDocument:
			if strings.Contains(contextText, "Amendment") {
				return "amendment", true
			}
			return "new", true
		case classify.TaskClassifyNotification:
			if strings.Contains(contextText, "Amendment") {
				return "amendment", true
			}
			if strings.Contains(contextText, "industry day") {
				return "industry", true
			}
			return "unrelated", true
		}
		return "", false
	}

	catalog, err := report.NewCatalog([]report.Task{
		{Name: "extract", Ordinal: 1},
		{Name: "bid", Ordinal: 2, DependsOn: []string{"extract"}},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	retry := analysis.Retry{MaxAttempts: 3, BaseDelay: time.Millisecond}
	refs, err := classify.NewRefExtractor("")
	if err != nil {
		t.Fatalf("NewRefExtractor: %v", err)
	}
	classifier := classify.New(analyzer, refs)
	orchestrator := report.NewOrchestrator(analyzer, retry, catalog, reports, objects, manager, nil, nil)
	reconciler := amend.NewReconciler(analyzer, retry, reports, records, objects, manager, nil, nil)

	return &harness{
		scanner:  New(objects, manager, classifier, orchestrator, reconciler, reports, 2, nil),
		objects:  objects,
		reports:  reports,
		records:  records,
		analyzer: analyzer,
		manager:  manager,
	}
}

func (h *harness) deposit(t *testing.T, key, content string) {
	t.Helper()
	if err := h.objects.Put(context.Background(), key, []byte(content)); err != nil {
		t.Fatalf("Put %s: %v", key, err)
	}
}

func (h *harness) run(t *testing.T) *Summary {
	t.Helper()
	sum, err := h.scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sum
}

func hasKey(s *store.Mem, key string) bool {
	for _, k := range s.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

const originalContent = "RS3-24-0007 Request for Proposal for engineering services"
const amendmentContent = "Amendment 1 to RS3-24-0007: the response deadline is extended"

func TestScanNewSubmissionEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, "unprocessed/RS3-24-0007.txt", originalContent)

	sum := h.run(t)
	if sum.Claimed != 1 || sum.Reports != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}

	if !hasKey(h.objects, "archived/RS3-24-0007.txt") {
		t.Errorf("document not archived; keys: %v", h.objects.Keys())
	}
	if !hasKey(h.objects, "reports/RS3-24-0007-report.md") {
		t.Errorf("report artifact missing; keys: %v", h.objects.Keys())
	}
	if hasKey(h.objects, "unprocessed/RS3-24-0007.txt") {
		t.Error("source still in unprocessed/")
	}

	rep, err := h.reports.Get(context.Background(), "RS3-24-0007")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rep == nil || rep.State != report.StateComplete || len(rep.Sections) != 2 {
		t.Errorf("report = %+v", rep)
	}

	data, err := h.objects.Get(context.Background(), "reports/RS3-24-0007-report.md")
	if err != nil {
		t.Fatalf("Get report: %v", err)
	}
	if !strings.Contains(string(data), "# Recommendation: Bid") {
		t.Errorf("rendered report missing recommendation:\n%s", data)
	}
}

func TestScanAmendmentAfterOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.deposit(t, "unprocessed/RS3-24-0007.txt", originalContent)
	h.run(t)

	h.deposit(t, "unprocessed/RS3-24-0007-amendment-1.txt", amendmentContent)
	sum := h.run(t)
	if sum.Amended != 1 || sum.Parked != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}

	if !hasKey(h.objects, "archived/RS3-24-0007-amendment-1.txt") {
		t.Errorf("amendment not archived; keys: %v", h.objects.Keys())
	}
	if !hasKey(h.objects, "reports/RS3-24-0007-amendment-1.md") {
		t.Errorf("summary artifact missing; keys: %v", h.objects.Keys())
	}

	records, err := h.records.ListByOriginal(ctx, "RS3-24-0007")
	if err != nil {
		t.Fatalf("ListByOriginal: %v", err)
	}
	if len(records) != 1 || records[0].AmendmentDocumentID != "RS3-24-0007-amendment-1" {
		t.Errorf("records = %+v", records)
	}
}

// An amendment arriving before its original parks until a later pass
// completes the original, then reconciles in that same pass.
func TestScanAmendmentBeforeOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.deposit(t, "unprocessed/RS3-24-0007-amendment-1.txt", amendmentContent)
	sum := h.run(t)
	if sum.Parked != 1 || sum.Amended != 0 {
		t.Errorf("first pass summary = %+v", sum)
	}
	if !hasKey(h.objects, "pending-amendment/RS3-24-0007-amendment-1.txt") {
		t.Errorf("amendment not parked; keys: %v", h.objects.Keys())
	}

	// Second pass with nothing new: the amendment stays parked.
	sum = h.run(t)
	if sum.Unblocked != 0 || !hasKey(h.objects, "pending-amendment/RS3-24-0007-amendment-1.txt") {
		t.Errorf("parked amendment moved without its original; summary = %+v", sum)
	}

	// The original arrives; its report completes and the parked amendment
	// unblocks within the same pass.
	h.deposit(t, "unprocessed/RS3-24-0007.txt", originalContent)
	sum = h.run(t)
	if sum.Reports != 1 || sum.Unblocked != 1 || sum.Amended != 1 {
		t.Errorf("third pass summary = %+v", sum)
	}
	if !hasKey(h.objects, "archived/RS3-24-0007-amendment-1.txt") {
		t.Errorf("amendment not archived; keys: %v", h.objects.Keys())
	}
	records, _ := h.records.ListByOriginal(ctx, "RS3-24-0007")
	if len(records) != 1 {
		t.Errorf("records = %+v", records)
	}
}

func TestScanAmendmentRequeuedWhileOriginalInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// An original mid-pipeline: report row exists, not complete.
	if _, err := h.reports.Create(ctx, "RS3-24-0010"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.deposit(t, "unprocessed/RS3-24-0010-amendment-1.txt",
		"Amendment 1 to RS3-24-0010: scope change")

	sum := h.run(t)
	if sum.Requeued != 1 || sum.Amended != 0 || sum.Parked != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if !hasKey(h.objects, "classified/RS3-24-0010-amendment-1.txt") {
		t.Errorf("requeued amendment not in classified/; keys: %v", h.objects.Keys())
	}

	// Original completes; the classified sweep picks the amendment up.
	if err := h.reports.SetState(ctx, "RS3-24-0010", report.StateComplete); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	sum = h.run(t)
	if sum.Amended != 1 {
		t.Errorf("second pass summary = %+v", sum)
	}
	if !hasKey(h.objects, "archived/RS3-24-0010-amendment-1.txt") {
		t.Errorf("amendment not archived; keys: %v", h.objects.Keys())
	}
}

func TestScanIrrelevantFilenameArchivedWithoutCapabilityCall(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, "unprocessed/meeting notes.txt", "nothing relevant")

	sum := h.run(t)
	if sum.Archived != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if !hasKey(h.objects, "archived/meeting notes.txt") {
		t.Errorf("document not archived; keys: %v", h.objects.Keys())
	}
	if calls := len(h.analyzer.Calls()); calls != 0 {
		t.Errorf("capability called %d times for screened-out document", calls)
	}
}

func TestScanEmailNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Complete the original first.
	h.deposit(t, "unprocessed/RS3-24-0007.txt", originalContent)
	h.run(t)

	h.deposit(t, "unprocessed/notice-1.email.json",
		`{"subject":"Amendment 1 issued","body":"Amendment to RS3-24-0007 posted today."}`)
	h.deposit(t, "unprocessed/notice-2.email.json",
		`{"subject":"Upcoming industry day","body":"Join the industry day next month."}`)

	sum := h.run(t)
	if sum.Amended != 1 {
		t.Errorf("amendment notice not reconciled; summary = %+v", sum)
	}
	if sum.Archived != 1 {
		t.Errorf("industry-event notice not archived; summary = %+v", sum)
	}
	if !hasKey(h.objects, "archived/notice-2.email.json") {
		t.Errorf("industry notice not archived; keys: %v", h.objects.Keys())
	}
	records, _ := h.records.ListByOriginal(ctx, "RS3-24-0007")
	if len(records) != 1 || records[0].AmendmentDocumentID != "notice-1" {
		t.Errorf("records = %+v", records)
	}
}

func TestScanResumesStrandedProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Crash simulation: one section persisted, object left in processing/.
	if _, err := h.reports.Create(ctx, "RS3-24-0007"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.reports.AppendSection(ctx, "RS3-24-0007", "extract", "pre-crash output"); err != nil {
		t.Fatalf("AppendSection: %v", err)
	}
	h.deposit(t, "processing/RS3-24-0007.txt", originalContent)

	sum := h.run(t)
	if sum.Resumed != 1 || sum.Reports != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if calls := h.analyzer.CallsFor("extract"); len(calls) != 0 {
		t.Errorf("completed task re-invoked %d times after resume", len(calls))
	}
	rep, _ := h.reports.Get(ctx, "RS3-24-0007")
	if rep.State != report.StateComplete {
		t.Errorf("report state = %q, want complete", rep.State)
	}
	if text, _ := rep.SectionText("extract"); text != "pre-crash output" {
		t.Errorf("pre-crash section replaced: %q", text)
	}
	if !hasKey(h.objects, "archived/RS3-24-0007.txt") {
		t.Errorf("document not archived; keys: %v", h.objects.Keys())
	}
}

func TestScanFailureSurfacesInFailedPrefix(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, "unprocessed/RS3-24-0007.txt", originalContent)

	// Exactly one pass worth of transient failures: the retry budget is
	// exhausted now, but the reprocess pass succeeds.
	h.analyzer.FailNTimes("extract", 3,
		analysis.TransientError("extract", fmt.Errorf("503")))

	sum := h.run(t)
	if sum.Failed != 1 || sum.Reports != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if !hasKey(h.objects, "failed/RS3-24-0007.txt") {
		t.Errorf("document not in failed/; keys: %v", h.objects.Keys())
	}

	// Operator reprocess resumes instead of restarting.
	if _, err := h.manager.Reprocess(context.Background(), "RS3-24-0007"); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	sum = h.run(t)
	if sum.Reports != 1 {
		t.Errorf("reprocess pass summary = %+v", sum)
	}
	if !hasKey(h.objects, "archived/RS3-24-0007.txt") {
		t.Errorf("document not archived after reprocess; keys: %v", h.objects.Keys())
	}
}

func TestScanUnsupportedFormatFails(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, "unprocessed/RS3-24-0007.zip", "binary blob")

	sum := h.run(t)
	if sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !hasKey(h.objects, "failed/RS3-24-0007.zip") {
		t.Errorf("unreadable document not in failed/; keys: %v", h.objects.Keys())
	}
}
