// Package config loads the engine configuration from a YAML file and
// fills in defaults, including the standard task catalog used when none is
// configured.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cbrane/nexus/internal/report"
)

// Config is the top-level engine configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	DB         DBConfig         `yaml:"db"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Identifier IdentifierConfig `yaml:"identifier"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Tasks      []report.Task    `yaml:"tasks"`
}

// StoreConfig selects and parameterizes the object store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // fs | s3
	Bucket  string `yaml:"bucket"`  // s3 bucket name
	Root    string `yaml:"root"`    // fs root directory
}

// DBConfig locates the index database.
type DBConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig parameterizes the analysis capability and its retry
// policy.
type AnalysisConfig struct {
	Model            string            `yaml:"model"`
	MaxAttempts      int               `yaml:"max_attempts"`
	BaseDelaySeconds int               `yaml:"base_delay_seconds"`
	TimeoutSeconds   int               `yaml:"timeout_seconds"`
	Prompts          map[string]string `yaml:"prompts"` // classification task instructions
}

// IdentifierConfig holds the reference identifier pattern for amendment
// matching.
type IdentifierConfig struct {
	Pattern string `yaml:"pattern"`
}

// ScannerConfig bounds scan pass concurrency.
type ScannerConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Load reads a YAML configuration file and applies defaults. An empty path
// yields the pure-default configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "fs"
	}
	if c.Store.Root == "" {
		c.Store.Root = "data"
	}
	if c.DB.Path == "" {
		c.DB.Path = "nexus.db"
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4o"
	}
	if c.Analysis.MaxAttempts <= 0 {
		c.Analysis.MaxAttempts = 4
	}
	if c.Analysis.BaseDelaySeconds <= 0 {
		c.Analysis.BaseDelaySeconds = 2
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		c.Analysis.TimeoutSeconds = 120
	}
	if c.Identifier.Pattern == "" {
		c.Identifier.Pattern = `RS[23]-\d{2}-\d{4}`
	}
	if c.Scanner.MaxConcurrent <= 0 {
		c.Scanner.MaxConcurrent = 4
	}
	if c.Analysis.Prompts == nil {
		c.Analysis.Prompts = map[string]string{}
	}
	for task, prompt := range defaultPrompts {
		if _, ok := c.Analysis.Prompts[task]; !ok {
			c.Analysis.Prompts[task] = prompt
		}
	}
	if len(c.Tasks) == 0 {
		c.Tasks = DefaultTasks()
	}
}

// defaultPrompts covers the capability tasks that live outside the report
// catalog: classification and amendment summarization.
var defaultPrompts = map[string]string{
	"classify_document": "Classify the document as exactly one of: new (a fresh solicitation or submission), " +
		"amendment (a modification to a previously issued one), or irrelevant. Answer with the single word.",
	"classify_notification": "Classify the email as exactly one of: amendment (it announces a modification to a " +
		"solicitation), industry (an industry day or event announcement), or unrelated. Answer with the single word.",
	"amendment_summary": "Summarize what the amendment changes relative to the original analysis: " +
		"scope, dates, requirements, and evaluation criteria. Be specific and cite the affected sections.",
}

// Catalog validates the configured tasks and returns them in execution
// order.
func (c *Config) Catalog() (report.Catalog, error) {
	return report.NewCatalog(c.Tasks)
}

// DefaultTasks is the standard six-stage submission analysis pipeline.
func DefaultTasks() []report.Task {
	return []report.Task{
		{
			Name:    "extract_requirements",
			Ordinal: 1,
			Prompt:  "Extract every requirement, deliverable, and evaluation criterion from the submission. Quote section numbers where present.",
		},
		{
			Name:    "title_summary",
			Ordinal: 2,
			Prompt:  "Produce a one-paragraph executive summary of the submission: issuing agency, subject, scope, and key dates.",
		},
		{
			Name:      "capability_fit",
			Ordinal:   3,
			DependsOn: []string{"extract_requirements"},
			Prompt:    "Assess how well our capabilities cover the extracted requirements. Call out gaps explicitly.",
		},
		{
			Name:      "requirement_matches",
			Ordinal:   4,
			DependsOn: []string{"extract_requirements"},
			Prompt:    "For each extracted requirement, state whether we have directly relevant past performance and name it.",
		},
		{
			Name:      "scope_consistency",
			Ordinal:   5,
			DependsOn: []string{"extract_requirements"},
			Prompt:    "Check the submission for internal scope inconsistencies between the statement of work and the evaluation criteria.",
		},
		{
			Name:      "bid_recommendation",
			Ordinal:   6,
			DependsOn: []string{"extract_requirements", "capability_fit", "requirement_matches", "scope_consistency"},
			Prompt:    "Given the prior analyses, recommend whether to bid. End with exactly one line: OVERALL_RECOMMENDATION=BID or OVERALL_RECOMMENDATION=NO_BID.",
		},
	}
}
