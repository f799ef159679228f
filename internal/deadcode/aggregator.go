package deadcode

import (
	"cmp"
	"slices"
	"sync"
)

// FileResult is the complete outcome of analyzing one file.
type FileResult struct {
	Path        string
	Findings    []Finding
	Diagnostics []Diagnostic
}

// Aggregator collects per-file results from concurrent workers and turns
// them into a Report. Order is imposed when the Report is built, never
// inherited from the order in which files completed.
type Aggregator struct {
	mu          sync.Mutex
	files       map[string][]Finding
	diagnostics []Diagnostic
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		files: make(map[string][]Finding),
	}
}

// Add records the result of one fully analyzed file. It is safe for
// concurrent use. Adding the same path twice appends to the earlier group.
func (a *Aggregator) Add(res FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(res.Findings) > 0 {
		a.files[res.Path] = append(a.files[res.Path], res.Findings...)
	}
	a.diagnostics = append(a.diagnostics, res.Diagnostics...)
}

// Report builds the file-grouped report: empty groups are dropped, groups
// are sorted by path and findings keep their discovery order.
func (a *Aggregator) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	groups := make([]FileGroup, 0, len(a.files))
	for path, findings := range a.files {
		if len(findings) == 0 {
			continue
		}
		groups = append(groups, FileGroup{
			Path:     path,
			Findings: slices.Clone(findings),
		})
	}
	slices.SortFunc(groups, func(x, y FileGroup) int {
		return cmp.Compare(x.Path, y.Path)
	})
	return Report{Groups: groups}
}

// Diagnostics returns the collected diagnostics in a stable order.
func (a *Aggregator) Diagnostics() []Diagnostic {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := slices.Clone(a.diagnostics)
	SortDiagnostics(out)
	return out
}

// SortDiagnostics orders diagnostics by path, position, code and name.
func SortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(x, y Diagnostic) int {
		if c := cmp.Compare(x.Path, y.Path); c != 0 {
			return c
		}
		if c := comparePosition(x.Position, y.Position); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Code, y.Code); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Name, y.Name); c != 0 {
			return c
		}
		return cmp.Compare(x.Message, y.Message)
	})
}

func comparePosition(x, y *Position) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	return x.Compare(*y)
}
