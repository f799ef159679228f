// Package workspace opens codebases for usage analysis: a SCIP index, a
// directory holding one, or a manifest listing several indexed projects.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"unref/internal/backends/scip"
	"unref/internal/deadcode"
	"unref/internal/errors"
	"unref/internal/symbols"
)

// Options configures how codebases are opened.
type Options struct {
	// Root overrides the source root of a single-index input.
	Root string

	// Cascade follows implementation and reference relationships when
	// searching references.
	Cascade bool

	// Include and Exclude filter the analyzed files (doublestar globs on
	// codebase-relative paths). An empty Include keeps every file.
	Include []string
	Exclude []string

	Logger *slog.Logger
}

// DefaultOptions returns options with reference cascading enabled.
func DefaultOptions() Options {
	return Options{Cascade: true}
}

// Project is one indexed project of a codebase.
type Project struct {
	Name string
	// Root is the directory the index's document paths are relative to.
	Root string
	// Prefix is Root relative to the codebase root, in slash form.
	Prefix string
	Index  *scip.SCIPIndex
}

// fileOwner locates a codebase file inside a project.
type fileOwner struct {
	project *Project
	docPath string
}

// Codebase is a loaded set of projects. It implements deadcode.Codebase and
// is safe for concurrent use.
type Codebase struct {
	name     string
	root     string
	projects []*Project
	files    []string
	owners   map[string]fileOwner
	opts     Options
	logger   *slog.Logger

	// sources holds recently read files of documents whose columns are
	// not byte offsets.
	sources *lru.Cache[string, []byte]
	locals  sync.Map // symbol key -> localSymbol
}

var _ deadcode.Codebase = (*Codebase)(nil)

// Loader adapts Load to deadcode.LoadFunc.
func Loader(opts Options) deadcode.LoadFunc {
	return func(ctx context.Context, input string) (deadcode.Codebase, error) {
		cb, err := Load(ctx, input, opts)
		if err != nil {
			return nil, err
		}
		return cb, nil
	}
}

// Load opens the codebase described by input. Failures are
// *deadcode.LoadError.
func Load(ctx context.Context, input string, opts Options) (*Codebase, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cb, err := load(ctx, input, opts, logger)
	if err != nil {
		return nil, &deadcode.LoadError{Input: input, Err: err}
	}
	return cb, nil
}

func load(ctx context.Context, input string, opts Options, logger *slog.Logger) (*Codebase, error) {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewUnrefError(
				errors.IndexMissing,
				fmt.Sprintf("Input %s does not exist", input),
				err,
				errors.GetSuggestedFixes(errors.IndexMissing),
			)
		}
		return nil, err
	}

	switch {
	case info.IsDir():
		indexPath := findIndexInDir(input)
		if indexPath == "" {
			return nil, errors.NewUnrefError(
				errors.IndexMissing,
				fmt.Sprintf("No SCIP index found in %s (looked for .scip/index.scip and index.scip)", input),
				nil,
				errors.GetSuggestedFixes(errors.IndexMissing),
			)
		}
		root := opts.Root
		if root == "" {
			root = input
		}
		return loadSingle(ctx, filepath.Base(absOrSelf(input)), indexPath, root, opts, logger)

	case strings.EqualFold(filepath.Ext(input), ".toml"):
		return loadManifest(ctx, input, opts, logger)

	case isIndexFile(input):
		return loadSingle(ctx, filepath.Base(input), input, opts.Root, opts, logger)

	default:
		return nil, errors.NewUnrefError(
			errors.UnsupportedInput,
			fmt.Sprintf("Input %s is not a SCIP index, a directory or a workspace manifest", input),
			nil,
			nil,
		)
	}
}

var indexNames = []string{"index.scip", "index.scip.gz", "index.scip.zst"}

func findIndexInDir(dir string) string {
	for _, sub := range []string{".scip", ""} {
		for _, name := range indexNames {
			path := filepath.Join(dir, sub, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

func isIndexFile(path string) bool {
	lower := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(lower, ".scip") ||
		strings.HasSuffix(lower, ".scip.gz") ||
		strings.HasSuffix(lower, ".scip.zst")
}

func loadSingle(ctx context.Context, name, indexPath, root string, opts Options, logger *slog.Logger) (*Codebase, error) {
	idx, err := loadIndex(ctx, indexPath, logger)
	if err != nil {
		return nil, err
	}
	if root == "" {
		root = defaultRoot(idx, indexPath)
	}

	project := &Project{Name: name, Root: root, Prefix: "", Index: idx}
	return newCodebase(name, root, []*Project{project}, opts, logger), nil
}

// defaultRoot picks the source root of a single index: the recorded project
// root when it exists locally, else the directory holding the index (or its
// parent for the conventional .scip directory).
func defaultRoot(idx *scip.SCIPIndex, indexPath string) string {
	if pr := idx.ProjectRoot(); pr != "" {
		if info, err := os.Stat(pr); err == nil && info.IsDir() {
			return pr
		}
	}
	dir := filepath.Dir(indexPath)
	if filepath.Base(dir) == ".scip" {
		return filepath.Dir(dir)
	}
	return dir
}

func loadManifest(ctx context.Context, path string, opts Options, logger *slog.Logger) (*Codebase, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	name := m.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	projects := make([]*Project, 0, len(m.Projects))
	for _, mp := range m.Projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root, indexPath := mp.resolve(dir)
		idx, err := loadIndex(ctx, indexPath, logger)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", mp.Name, err)
		}
		prefix, err := filepath.Rel(dir, root)
		if err != nil || strings.HasPrefix(prefix, "..") {
			return nil, manifestError(path, fmt.Sprintf("project %s root %s lies outside the workspace", mp.Name, mp.Root), err)
		}
		if prefix == "." {
			prefix = ""
		}
		projects = append(projects, &Project{
			Name:   mp.Name,
			Root:   root,
			Prefix: filepath.ToSlash(prefix),
			Index:  idx,
		})
	}

	return newCodebase(name, dir, projects, opts, logger), nil
}

func loadIndex(ctx context.Context, path string, logger *slog.Logger) (*scip.SCIPIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	idx, err := scip.LoadSCIPIndex(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded SCIP index",
		"path", path,
		"documents", len(idx.Documents),
		"symbols", len(idx.Symbols),
		"duration", time.Since(start))
	return idx, nil
}

// sourceCacheSize bounds the number of file contents kept for column
// conversion.
const sourceCacheSize = 512

func newCodebase(name, root string, projects []*Project, opts Options, logger *slog.Logger) *Codebase {
	sources, err := lru.New[string, []byte](sourceCacheSize)
	if err != nil {
		panic(err)
	}
	cb := &Codebase{
		name:     name,
		root:     root,
		projects: projects,
		owners:   make(map[string]fileOwner),
		opts:     opts,
		logger:   logger,
		sources:  sources,
	}

	for _, p := range projects {
		for _, doc := range p.Index.Documents {
			docPath := filepath.ToSlash(doc.RelativePath)
			if !symbols.Supported(docPath) {
				continue
			}
			path := joinPath(p.Prefix, docPath)
			if !cb.selected(path) {
				continue
			}
			if _, dup := cb.owners[path]; dup {
				continue
			}
			cb.owners[path] = fileOwner{project: p, docPath: docPath}
			cb.files = append(cb.files, path)
		}
	}
	slices.Sort(cb.files)

	return cb
}

func (cb *Codebase) selected(path string) bool {
	if len(cb.opts.Include) > 0 {
		included := false
		for _, pattern := range cb.opts.Include {
			if ok, _ := doublestar.Match(pattern, path); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range cb.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	return true
}

func joinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "/" + path
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Name identifies the codebase in reports.
func (cb *Codebase) Name() string {
	return cb.name
}

// Files lists the codebase-relative paths of the source files to analyze,
// sorted.
func (cb *Codebase) Files() []string {
	return cb.files
}

// Parse reads and parses one file of the codebase.
func (cb *Codebase) Parse(ctx context.Context, path string) (deadcode.ParsedFile, error) {
	owner, ok := cb.owners[path]
	if !ok {
		return nil, &deadcode.ParseError{Path: path, Err: deadcode.ErrNoDocument}
	}

	source, err := os.ReadFile(filepath.Join(owner.project.Root, filepath.FromSlash(owner.docPath)))
	if err != nil {
		return nil, &deadcode.ParseError{Path: path, Err: err}
	}

	f, err := symbols.Parse(ctx, path, source)
	if err != nil {
		return nil, &deadcode.ParseError{Path: path, Err: err}
	}
	if f.HasErrors() {
		cb.logger.Debug("File has syntax errors, enumerating recovered tree",
			"path", path)
	}

	if doc := owner.project.Index.GetDocument(owner.docPath); doc != nil && needsConversion(doc.PositionEncoding) {
		cb.sources.Add(path, source)
	}
	return f, nil
}
