package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbrane/nexus/internal/amend"
	"github.com/cbrane/nexus/internal/analysis"
	"github.com/cbrane/nexus/internal/classify"
	"github.com/cbrane/nexus/internal/config"
	"github.com/cbrane/nexus/internal/db"
	"github.com/cbrane/nexus/internal/lifecycle"
	"github.com/cbrane/nexus/internal/normalize"
	"github.com/cbrane/nexus/internal/notify"
	"github.com/cbrane/nexus/internal/report"
	"github.com/cbrane/nexus/internal/scan"
	"github.com/cbrane/nexus/internal/store"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nexus",
		Short: "Procurement document lifecycle engine",
		Long: `Nexus discovers procurement documents deposited in an object store,
classifies them, runs the analysis pipeline over new submissions, and
reconciles amendments against completed reports.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("nexus %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	// init command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize the index database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig()
			if err := db.Init(cfg.DB.Path); err != nil {
				exitErr("Failed to initialize database: %v", err)
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "db_path": cfg.DB.Path})
			} else {
				fmt.Printf("✓ Database: %s\n", cfg.DB.Path)
			}
		},
	})

	// scan command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Run one processing pass over the store",
		Long: `Scan claims everything under unprocessed/, classifies it, runs the
report pipeline for new submissions, reconciles amendments, and
re-checks parked amendments. Interrupting a scan is safe; the next
pass resumes from durable state.`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng := mustEngine(ctx)
			defer eng.Close()

			sum, err := eng.Scanner.Run(ctx)
			if err != nil {
				exitErr("Scan pass failed: %v", err)
			}
			if jsonOutput {
				printJSON(map[string]int{
					"claimed":   sum.Claimed,
					"resumed":   sum.Resumed,
					"reports":   sum.Reports,
					"amended":   sum.Amended,
					"parked":    sum.Parked,
					"requeued":  sum.Requeued,
					"archived":  sum.Archived,
					"failed":    sum.Failed,
					"unblocked": sum.Unblocked,
				})
			} else {
				fmt.Printf("✓ Scan complete: %d claimed, %d reports, %d amendments, %d parked, %d archived, %d failed\n",
					sum.Claimed, sum.Reports, sum.Amended, sum.Parked, sum.Archived, sum.Failed)
			}
		},
	})

	// combine command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "combine <dest-key> <src-key>...",
		Short: "Merge multi-attachment PDF submissions into one document",
		Long: `Combine merges several PDF objects into a single PDF deposited at the
destination key, usually under unprocessed/ so the next scan analyzes
the attachments as one submission. Sources are merged in argument
order.`,
		Args: cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			cfg := mustConfig()
			logger := newLogger()
			objects, err := newStore(ctx, cfg, logger)
			if err != nil {
				exitErr("Failed to open object store: %v", err)
			}

			docs := make([][]byte, 0, len(args)-1)
			for _, key := range args[1:] {
				data, err := objects.Get(ctx, key)
				if err != nil {
					exitErr("Failed to read %s: %v", key, err)
				}
				docs = append(docs, data)
			}
			merged, err := normalize.CombinePDFs(docs)
			if err != nil {
				exitErr("Failed to merge: %v", err)
			}
			if err := objects.Put(ctx, args[0], merged); err != nil {
				exitErr("Failed to write %s: %v", args[0], err)
			}
			if jsonOutput {
				printJSON(map[string]any{"key": args[0], "sources": len(args) - 1, "bytes": len(merged)})
			} else {
				fmt.Printf("✓ Merged %d documents into %s (%d bytes)\n", len(args)-1, args[0], len(merged))
			}
		},
	})

	// reprocess command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "reprocess <document-id>",
		Short: "Return a failed document to unprocessed/ for another attempt",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			eng := mustEngine(ctx)
			defer eng.Close()

			key, err := eng.Manager.Reprocess(ctx, args[0])
			if err != nil {
				exitErr("Failed to reprocess %s: %v", args[0], err)
			}
			if jsonOutput {
				printJSON(map[string]string{"document_id": args[0], "key": key})
			} else {
				fmt.Printf("✓ %s re-deposited at %s\n", args[0], key)
			}
		},
	})

	// report command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "report <document-id>",
		Short: "Show a document's report",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			eng := mustEngine(ctx)
			defer eng.Close()

			rep, err := eng.Reports.Get(ctx, args[0])
			if err != nil {
				exitErr("Failed to load report: %v", err)
			}
			if rep == nil {
				exitErr("No report for %s", args[0])
			}
			if jsonOutput {
				printJSON(rep)
			} else {
				fmt.Printf("Report %s [%s]\n", rep.DocumentID, rep.State)
				fmt.Printf("Recommendation: %s\n", report.Recommendation(rep))
				for _, s := range rep.Sections {
					fmt.Printf("  ✓ %s\n", s.Task)
				}
			}
		},
	})

	// amendments command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "amendments <original-document-id>",
		Short: "List amendment records for an original document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			eng := mustEngine(ctx)
			defer eng.Close()

			records, err := eng.Records.ListByOriginal(ctx, args[0])
			if err != nil {
				exitErr("Failed to list amendments: %v", err)
			}
			if jsonOutput {
				printJSON(records)
				return
			}
			if len(records) == 0 {
				fmt.Printf("No amendments recorded for %s\n", args[0])
				return
			}
			for i, rec := range records {
				fmt.Printf("%d. %s (applied %s)\n", i+1, rec.AmendmentDocumentID,
					time.Unix(0, rec.AppliedAt).Format(time.RFC3339))
				fmt.Printf("   %s\n", rec.ChangeSummary)
			}
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine holds the wired components behind the CLI commands.
type engine struct {
	Manager  *lifecycle.Manager
	Reports  *report.Store
	Records  *amend.Records
	Scanner  *scan.Scanner
	database *sql.DB
}

func (e *engine) Close() {
	if e.database != nil {
		e.database.Close()
	}
}

func mustConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("%v", err)
	}
	return cfg
}

func mustEngine(ctx context.Context) *engine {
	cfg := mustConfig()
	logger := newLogger()

	objects, err := newStore(ctx, cfg, logger)
	if err != nil {
		exitErr("Failed to open object store: %v", err)
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		exitErr("%v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		database.Close()
		exitErr("%v", err)
	}

	prompts := catalog.Prompts()
	for task, prompt := range cfg.Analysis.Prompts {
		prompts[task] = prompt
	}
	analyzer, err := analysis.NewOpenAI(os.Getenv("OPENAI_API_KEY"), cfg.Analysis.Model, prompts)
	if err != nil {
		database.Close()
		exitErr("%v (set OPENAI_API_KEY)", err)
	}
	retry := analysis.Retry{
		MaxAttempts: cfg.Analysis.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Analysis.BaseDelaySeconds) * time.Second,
		CallTimeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		Logger:      logger,
	}

	refs, err := classify.NewRefExtractor(cfg.Identifier.Pattern)
	if err != nil {
		database.Close()
		exitErr("%v", err)
	}

	manager := lifecycle.NewManager(objects, logger)
	reports := report.NewStore(database)
	records := amend.NewRecords(database)
	classifier := classify.New(analyzer, refs)
	notifier := notify.Log{Logger: logger}

	orchestrator := report.NewOrchestrator(analyzer, retry, catalog, reports, objects, manager, notifier, logger)
	reconciler := amend.NewReconciler(analyzer, retry, reports, records, objects, manager, notifier, logger)
	scanner := scan.New(objects, manager, classifier, orchestrator, reconciler, reports,
		cfg.Scanner.MaxConcurrent, logger)

	return &engine{
		Manager:  manager,
		Reports:  reports,
		Records:  records,
		Scanner:  scanner,
		database: database,
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "fs":
		return store.NewFS(cfg.Store.Root, logger)
	case "s3":
		if cfg.Store.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires store.bucket")
		}
		return store.NewS3(ctx, cfg.Store.Bucket, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func exitErr(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		printJSON(map[string]any{"ok": false, "message": msg})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
