package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "fs" || cfg.Store.Root != "data" {
		t.Errorf("store defaults = %+v", cfg.Store)
	}
	if cfg.DB.Path != "nexus.db" {
		t.Errorf("db path = %q", cfg.DB.Path)
	}
	if cfg.Analysis.MaxAttempts != 4 || cfg.Analysis.BaseDelaySeconds != 2 || cfg.Analysis.TimeoutSeconds != 120 {
		t.Errorf("analysis defaults = %+v", cfg.Analysis)
	}
	if cfg.Identifier.Pattern == "" {
		t.Error("identifier pattern default missing")
	}
	if cfg.Scanner.MaxConcurrent != 4 {
		t.Errorf("scanner max_concurrent = %d", cfg.Scanner.MaxConcurrent)
	}
	for _, task := range []string{"classify_document", "classify_notification", "amendment_summary"} {
		if cfg.Analysis.Prompts[task] == "" {
			t.Errorf("no default prompt for %s", task)
		}
	}
}

func TestLoadDefaultCatalog(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	want := []string{
		"extract_requirements",
		"title_summary",
		"capability_fit",
		"requirement_matches",
		"scope_consistency",
		"bid_recommendation",
	}
	if len(catalog) != len(want) {
		t.Fatalf("catalog has %d tasks, want %d", len(catalog), len(want))
	}
	for i, name := range want {
		if catalog[i].Name != name {
			t.Errorf("catalog[%d] = %q, want %q", i, catalog[i].Name, name)
		}
	}
	// Final task consumes every prior analysis.
	last := catalog[len(catalog)-1]
	if len(last.DependsOn) != 4 {
		t.Errorf("bid_recommendation depends on %v", last.DependsOn)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	content := `
store:
  backend: s3
  bucket: proposals
db:
  path: /var/lib/nexus/index.db
analysis:
  model: gpt-4.1
  max_attempts: 6
identifier:
  pattern: 'SOL-\d{4}'
scanner:
  max_concurrent: 8
tasks:
  - name: only_task
    ordinal: 1
    prompt: do the thing
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "s3" || cfg.Store.Bucket != "proposals" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.DB.Path != "/var/lib/nexus/index.db" {
		t.Errorf("db path = %q", cfg.DB.Path)
	}
	if cfg.Analysis.Model != "gpt-4.1" || cfg.Analysis.MaxAttempts != 6 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	// Unset analysis fields still get defaults.
	if cfg.Analysis.TimeoutSeconds != 120 {
		t.Errorf("timeout = %d, want defaulted 120", cfg.Analysis.TimeoutSeconds)
	}
	if cfg.Identifier.Pattern != `SOL-\d{4}` {
		t.Errorf("pattern = %q", cfg.Identifier.Pattern)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(catalog) != 1 || catalog[0].Name != "only_task" {
		t.Errorf("catalog = %+v", catalog)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
