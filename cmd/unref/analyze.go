package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"unref/internal/config"
	"unref/internal/deadcode"
	"unref/internal/report"
	"unref/internal/storage"
	"unref/internal/version"
	"unref/internal/workspace"
)

// analyzeFlags holds the flags of the analyze command. Flags that were not
// set leave the configuration untouched.
type analyzeFlags struct {
	format         string
	kinds          []string
	maxInFlight    int
	fileWorkers    int
	exclude        []string
	includeFiles   []string
	excludeFiles   []string
	noCascade      bool
	skipGenerated  bool
	skipTests      bool
	root           string
	baseline       string
	writeBaseline  string
	sqlite         string
	failOnFindings bool
}

func newAnalyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Report unreferenced declarations",
		Long: `Analyze codebases and report the declarations nothing references.

Each path is a directory containing .scip/index.scip (or index.scip), a
SCIP index file (.scip, .scip.gz, .scip.zst), or a workspace manifest
(.toml) listing several indexed projects. Without a path the current
directory is analyzed. Paths are analyzed one after another; a path that
cannot be opened is reported and skipped.

Examples:
  unref analyze
  unref analyze build/index.scip.zst --root .
  unref analyze workspace.toml --kinds method,property,field
  unref analyze --format sarif > unref.sarif
  unref analyze --baseline unref-baseline.toml --fail-on-findings
  unref analyze --write-baseline unref-baseline.toml
  unref analyze --exclude "Dispose" --exclude-files "**/Migrations/**"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.format, "format", "f", "human", "Output format (human, json, yaml, sarif)")
	f.StringSliceVar(&flags.kinds, "kinds", nil, "Declaration kinds to analyze, or all (default: method,property)")
	f.IntVar(&flags.maxInFlight, "max-in-flight", 0, "Maximum declarations classified at once (0: 4x CPUs, -1: unbounded)")
	f.IntVar(&flags.fileWorkers, "file-workers", 0, "Maximum files enumerated at once (0: CPUs)")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "Globs on paths or declaration names to skip (can be repeated)")
	f.StringSliceVar(&flags.includeFiles, "include-files", nil, "Only analyze files matching these globs")
	f.StringSliceVar(&flags.excludeFiles, "exclude-files", nil, "Do not analyze files matching these globs")
	f.BoolVar(&flags.noCascade, "no-cascade", false, "Do not follow implementation relationships when searching references")
	f.BoolVar(&flags.skipGenerated, "skip-generated", true, "Skip declarations in generated files")
	f.BoolVar(&flags.skipTests, "skip-tests", false, "Skip declarations in test files")
	f.StringVar(&flags.root, "root", "", "Source root of a single index (default: the index's project root)")
	f.StringVar(&flags.baseline, "baseline", "", "Drop findings accepted in this baseline file")
	f.StringVar(&flags.writeBaseline, "write-baseline", "", "Write every current finding to this baseline file")
	f.StringVar(&flags.sqlite, "sqlite", "", "Export the analysis runs to this SQLite database")
	f.BoolVar(&flags.failOnFindings, "fail-on-findings", false, "Exit with status 1 when findings remain")
	return cmd
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
}

// applyAnalyzeFlags overrides cfg with the flags the user set.
func applyAnalyzeFlags(cfg *config.Config, flags analyzeFlags, changed func(string) bool) {
	if changed("format") {
		cfg.Output.Format = flags.format
	}
	if changed("kinds") {
		cfg.Analysis.Kinds = flags.kinds
	}
	if changed("max-in-flight") {
		cfg.Analysis.MaxInFlight = flags.maxInFlight
	}
	if changed("file-workers") {
		cfg.Analysis.FileWorkers = flags.fileWorkers
	}
	if changed("exclude") {
		cfg.Analysis.Exclude = append(cfg.Analysis.Exclude, flags.exclude...)
	}
	if changed("include-files") {
		cfg.Files.Include = flags.includeFiles
	}
	if changed("exclude-files") {
		cfg.Files.Exclude = append(cfg.Files.Exclude, flags.excludeFiles...)
	}
	if changed("no-cascade") {
		cfg.Analysis.Cascade = !flags.noCascade
	}
	if changed("skip-generated") {
		cfg.Analysis.SkipGenerated = flags.skipGenerated
	}
	if changed("skip-tests") {
		cfg.Analysis.SkipTests = flags.skipTests
	}
	if changed("baseline") {
		cfg.Output.Baseline = flags.baseline
	}
	if changed("sqlite") {
		cfg.Output.SQLite = flags.sqlite
	}
}

func runAnalyze(cmd *cobra.Command, args []string, flags analyzeFlags) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cfg, flags, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger, closer, err := newLogger(cmd, cfg, runID)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var baseline *report.Baseline
	if cfg.Output.Baseline != "" {
		if baseline, err = report.LoadBaseline(cfg.Output.Baseline); err != nil {
			return err
		}
		logger.Debug("Loaded baseline", "path", cfg.Output.Baseline, "entries", baseline.Len())
	}

	kinds := cfg.Kinds()
	analyzer := deadcode.NewAnalyzer(logger, deadcode.Options{
		Kinds:       kinds,
		MaxInFlight: cfg.Analysis.MaxInFlight,
		FileWorkers: cfg.Analysis.FileWorkers,
		Exclusions:  deadcode.NewExclusionRules(cfg.Analysis.Exclude, cfg.Analysis.SkipGenerated, cfg.Analysis.SkipTests),
	})
	loader := workspace.Loader(workspace.Options{
		Root:    flags.root,
		Cascade: cfg.Analysis.Cascade,
		Include: cfg.Files.Include,
		Exclude: cfg.Files.Exclude,
		Logger:  logger,
	})

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{"."}
	}
	logger.Info("Starting analysis",
		"inputs", strings.Join(inputs, ","),
		"kinds", kinds.Sorted(),
		"cascade", cfg.Analysis.Cascade)

	results, loadDiags, err := analyzer.AnalyzeAll(ctx, inputs, loader)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("analysis interrupted: %w", err)
		}
		return err
	}
	duration := time.Since(start)

	doc := report.Build(results, loadDiags)
	if flags.writeBaseline != "" {
		b := report.NewBaseline(doc)
		if err := b.Write(flags.writeBaseline); err != nil {
			return err
		}
		logger.Info("Wrote baseline", "path", flags.writeBaseline, "entries", b.Len())
	}
	if baseline != nil {
		baseline.ApplyTo(doc)
	}

	if cfg.Output.SQLite != "" {
		rec := storage.RunRecord{
			Invocation:  runID,
			ToolVersion: version.Version,
			Kinds:       kinds.Sorted(),
			StartedAt:   start,
			Duration:    duration,
		}
		if err := exportRuns(ctx, cfg.Output.SQLite, rec, results, loadDiags, logger); err != nil {
			return err
		}
	}

	if err := report.Render(cmd.OutOrStdout(), doc, format, version.Version); err != nil {
		return err
	}

	logger.Info("Analysis completed",
		"codebases", doc.Summary.Codebases,
		"findings", doc.Summary.Findings,
		"baselined", doc.Summary.Baselined,
		"diagnostics", doc.Summary.Diagnostics,
		"duration", duration.Milliseconds())

	switch {
	case len(results) == 0 && len(loadDiags) > 0:
		return &exitError{code: exitFailure}
	case flags.failOnFindings && doc.HasFindings():
		return &exitError{code: exitFindings}
	}
	return nil
}

// exportRuns stores one run per analyzed codebase, plus the diagnostics of
// inputs that failed to load. rec carries the fields shared by every run.
func exportRuns(ctx context.Context, path string, rec storage.RunRecord, results []*deadcode.Result, loadDiags []deadcode.Diagnostic, logger *slog.Logger) error {
	db, err := storage.Open(path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveLoadDiagnostics(ctx, rec.Invocation, loadDiags); err != nil {
		return err
	}

	for _, res := range results {
		rec.Result = res
		id, err := db.SaveRun(ctx, rec)
		if err != nil {
			return err
		}
		logger.Debug("Exported run", "codebase", res.Codebase, "id", id, "path", path)
	}
	return nil
}
