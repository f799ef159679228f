package deadcode

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options configures the analyzer.
type Options struct {
	// Kinds selects the declaration kinds to analyze (default: methods and
	// properties).
	Kinds KindSet

	// MaxInFlight bounds the number of declarations being classified at
	// once across all files. Zero selects a default, a negative value
	// removes the bound.
	MaxInFlight int

	// FileWorkers bounds the number of files being enumerated at once.
	// Zero selects a default.
	FileWorkers int

	// Exclusions drops declarations before classification.
	Exclusions *ExclusionRules

	// OnFileDone is called after a file has been fully analyzed. It may be
	// called from several goroutines at once.
	OnFileDone func(FileResult)
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	procs := runtime.GOMAXPROCS(0)
	return Options{
		Kinds:       DefaultKinds(),
		MaxInFlight: 4 * procs,
		FileWorkers: procs,
	}
}

// Analyzer finds unreferenced declarations in a codebase.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(logger *slog.Logger, opts Options) *Analyzer {
	defaults := DefaultOptions()
	if opts.Kinds == nil {
		opts.Kinds = defaults.Kinds
	}
	if opts.MaxInFlight == 0 {
		opts.MaxInFlight = defaults.MaxInFlight
	}
	if opts.FileWorkers <= 0 {
		opts.FileWorkers = defaults.FileWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{
		opts:   opts,
		logger: logger,
	}
}

// Analyze classifies every declaration of every file in cb and returns the
// report of unreferenced declarations with the diagnostics collected along
// the way.
//
// Files are processed concurrently and the declarations of each file are
// classified concurrently. A file's findings reach the report only after all
// of its declarations have been classified. When ctx is cancelled, Analyze
// returns ctx's error and no result.
func (a *Analyzer) Analyze(ctx context.Context, cb Codebase) (*Result, error) {
	start := time.Now()
	files := cb.Files()

	a.logger.Debug("Starting usage analysis",
		"codebase", cb.Name(),
		"files", len(files),
		"kinds", a.opts.Kinds.Sorted(),
		"maxInFlight", a.opts.MaxInFlight,
		"fileWorkers", a.opts.FileWorkers)

	var sem *semaphore.Weighted
	if a.opts.MaxInFlight > 0 {
		sem = semaphore.NewWeighted(int64(a.opts.MaxInFlight))
	}

	agg := NewAggregator()
	var (
		statsMu sync.Mutex
		stats   = Stats{Files: len(files)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.FileWorkers)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, fs, err := a.analyzeFile(gctx, cb, path, sem)
			if err != nil {
				return err
			}

			agg.Add(res)

			statsMu.Lock()
			stats.add(fs)
			statsMu.Unlock()

			if a.opts.OnFileDone != nil {
				a.opts.OnFileDone(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := agg.Report()
	diagnostics := agg.Diagnostics()
	stats.Findings = report.Len()

	a.logger.Debug("Usage analysis completed",
		"codebase", cb.Name(),
		"files", stats.Files,
		"filesSkipped", stats.FilesSkipped,
		"declarations", stats.Declarations,
		"excluded", stats.Excluded,
		"unresolved", stats.Unresolved,
		"findings", stats.Findings,
		"duration", time.Since(start))

	return &Result{
		Codebase:    cb.Name(),
		Report:      report,
		Diagnostics: diagnostics,
		Stats:       stats,
	}, nil
}

// fileStats counts the work done for one file.
type fileStats struct {
	skipped      bool
	declarations int
	excluded     int
	classified   int
	unresolved   int
}

func (s *Stats) add(fs fileStats) {
	if fs.skipped {
		s.FilesSkipped++
	}
	s.Declarations += fs.declarations
	s.Excluded += fs.excluded
	s.Classified += fs.classified
	s.Unresolved += fs.unresolved
}

// slot holds the outcome of one declaration. Each slot is written by
// exactly one classification task and read only after the file's join.
type slot struct {
	decl    Declaration
	verdict Verdict
	err     error
}

// analyzeFile enumerates the declarations of one file, classifies them
// concurrently and folds the outcomes in discovery order. The only errors it
// returns are cancellation errors.
func (a *Analyzer) analyzeFile(ctx context.Context, cb Codebase, path string, sem *semaphore.Weighted) (FileResult, fileStats, error) {
	var fs fileStats

	parsed, err := cb.Parse(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return FileResult{}, fs, ctx.Err()
		}
		a.logger.Warn("Skipping file that could not be parsed",
			"path", path,
			"error", err.Error())
		fs.skipped = true
		return FileResult{
			Path: path,
			Diagnostics: []Diagnostic{{
				Severity: SeverityWarning,
				Code:     DiagParseFailed,
				Path:     path,
				Message:  err.Error(),
			}},
		}, fs, nil
	}

	var (
		wg       sync.WaitGroup
		slots    []*slot
		acquired error
	)

	for decl := range parsed.Declarations(a.opts.Kinds) {
		fs.declarations++
		if reason := a.opts.Exclusions.ShouldExclude(decl); reason != "" {
			fs.excluded++
			a.logger.Debug("Excluded declaration",
				"path", decl.Path,
				"name", decl.Name,
				"reason", reason)
			continue
		}

		if sem != nil {
			if acquired = sem.Acquire(ctx, 1); acquired != nil {
				break
			}
		}

		s := &slot{decl: decl}
		slots = append(slots, s)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			s.verdict, s.err = Classify(ctx, cb, s.decl)
		}()
	}
	wg.Wait()

	if acquired != nil {
		return FileResult{}, fs, acquired
	}
	if err := ctx.Err(); err != nil {
		return FileResult{}, fs, err
	}

	res := FileResult{Path: path}
	for _, s := range slots {
		if s.err != nil {
			if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
				return FileResult{}, fs, s.err
			}
			fs.unresolved++
			d := resolutionDiagnostic(s.decl, s.err)
			a.logger.Warn("Declaration excluded from results",
				"path", d.Path,
				"name", d.Name,
				"code", d.Code,
				"error", d.Message)
			res.Diagnostics = append(res.Diagnostics, d)
			continue
		}

		fs.classified++
		if s.verdict.Unused() {
			res.Findings = append(res.Findings, Finding{
				Path:     s.decl.Path,
				Kind:     s.decl.Kind,
				Name:     s.decl.Name,
				Position: s.decl.Position,
			})
		}
	}

	a.logger.Debug("Analyzed file",
		"path", path,
		"declarations", fs.declarations,
		"findings", len(res.Findings),
		"unresolved", fs.unresolved)

	return res, fs, nil
}

func resolutionDiagnostic(decl Declaration, err error) Diagnostic {
	pos := decl.Position
	d := Diagnostic{
		Severity: SeverityWarning,
		Code:     DiagResolutionFailed,
		Path:     decl.Path,
		Name:     decl.Name,
		Position: &pos,
		Message:  err.Error(),
	}
	var re *ResolutionError
	if errors.As(err, &re) && re.Op == OpFindReferences {
		d.Code = DiagReferenceFailed
	}
	return d
}

// LoadFunc opens the codebase described by input.
type LoadFunc func(ctx context.Context, input string) (Codebase, error)

// AnalyzeAll loads and analyzes each input in turn. An input that cannot be
// loaded is reported as a diagnostic and skipped; the remaining inputs are
// still analyzed. Only cancellation stops the loop early.
func (a *Analyzer) AnalyzeAll(ctx context.Context, inputs []string, load LoadFunc) ([]*Result, []Diagnostic, error) {
	var (
		results     []*Result
		diagnostics []Diagnostic
	)

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return results, diagnostics, err
		}

		cb, err := load(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return results, diagnostics, ctx.Err()
			}
			a.logger.Warn("Skipping input that could not be loaded",
				"input", input,
				"error", err.Error())
			diagnostics = append(diagnostics, Diagnostic{
				Severity: SeverityError,
				Code:     DiagLoadFailed,
				Path:     input,
				Message:  err.Error(),
			})
			continue
		}

		res, err := a.Analyze(ctx, cb)
		if err != nil {
			return results, diagnostics, err
		}
		results = append(results, res)
	}

	return results, diagnostics, nil
}
