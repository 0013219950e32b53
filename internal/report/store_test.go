package report

import (
	"context"
	"strings"
	"testing"

	"github.com/cbrane/nexus/internal/testutil"
)

func TestStoreCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testutil.OpenTestDB(t))

	rep, err := s.Create(ctx, "RS3-24-0007")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rep.State != StateInProgress {
		t.Errorf("state = %q, want in-progress", rep.State)
	}
	if len(rep.Sections) != 0 {
		t.Errorf("new report has %d sections", len(rep.Sections))
	}

	if err := s.AppendSection(ctx, "RS3-24-0007", "extract_requirements", "reqs"); err != nil {
		t.Fatalf("AppendSection: %v", err)
	}
	again, err := s.Create(ctx, "RS3-24-0007")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if len(again.Sections) != 1 {
		t.Errorf("re-create clobbered sections: %d", len(again.Sections))
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := NewStore(testutil.OpenTestDB(t))
	rep, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rep != nil {
		t.Error("missing report should be nil")
	}
}

func TestStoreAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testutil.OpenTestDB(t))
	if _, err := s.Create(ctx, "doc"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tasks := []string{"first", "second", "third"}
	for _, task := range tasks {
		if err := s.AppendSection(ctx, "doc", task, "out of "+task); err != nil {
			t.Fatalf("AppendSection(%s): %v", task, err)
		}
	}

	rep, err := s.Get(ctx, "doc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := rep.CompletedTasks()
	for i, task := range tasks {
		if got[i] != task {
			t.Errorf("section[%d] = %q, want %q", i, got[i], task)
		}
	}
	if text, ok := rep.SectionText("second"); !ok || text != "out of second" {
		t.Errorf("SectionText(second) = %q, %v", text, ok)
	}
}

func TestStoreAppendRejectsDuplicateTask(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testutil.OpenTestDB(t))
	if _, err := s.Create(ctx, "doc"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.AppendSection(ctx, "doc", "task", "one"); err != nil {
		t.Fatalf("AppendSection: %v", err)
	}
	err := s.AppendSection(ctx, "doc", "task", "two")
	if err == nil {
		t.Fatal("expected duplicate-task rejection")
	}
	if !strings.Contains(err.Error(), "already has a section") {
		t.Errorf("unexpected error: %v", err)
	}

	rep, _ := s.Get(ctx, "doc")
	if text, _ := rep.SectionText("task"); text != "one" {
		t.Errorf("original section overwritten: %q", text)
	}
}

func TestStoreAppendWithoutRow(t *testing.T) {
	s := NewStore(testutil.OpenTestDB(t))
	if err := s.AppendSection(context.Background(), "ghost", "task", "text"); err == nil {
		t.Fatal("expected error appending to missing report")
	}
}

func TestStoreSetState(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testutil.OpenTestDB(t))
	if _, err := s.Create(ctx, "doc"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetState(ctx, "doc", StateComplete); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	rep, _ := s.Get(ctx, "doc")
	if rep.State != StateComplete {
		t.Errorf("state = %q, want complete", rep.State)
	}
	if err := s.SetState(ctx, "ghost", StateFailed); err == nil {
		t.Fatal("expected error for missing row")
	}
}
