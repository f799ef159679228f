package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"unref/internal/deadcode"
	"unref/internal/errors"
)

// Baseline is a set of accepted findings. Findings matching an entry are
// dropped from reports.
//
//	[[finding]]
//	path = "src/Invoice.cs"
//	kind = "method"
//	name = "Shop.Invoice.Helper"
type Baseline struct {
	Findings []BaselineEntry `toml:"finding"`

	index map[BaselineEntry]bool
}

// BaselineEntry identifies a finding without its position.
type BaselineEntry struct {
	Path string `toml:"path"`
	Kind string `toml:"kind"`
	Name string `toml:"name"`
}

func entryOf(path string, f deadcode.Finding) BaselineEntry {
	return BaselineEntry{Path: path, Kind: string(f.Kind), Name: f.Name}
}

// LoadBaseline reads a baseline file.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, baselineError(path, "could not be read", err)
	}

	var b Baseline
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, baselineError(path, "could not be decoded", err)
	}
	for i, e := range b.Findings {
		if e.Path == "" || e.Name == "" || !deadcode.Kind(e.Kind).Valid() {
			return nil, baselineError(path, fmt.Sprintf("has an incomplete entry %d", i+1), nil)
		}
	}
	b.reindex()
	return &b, nil
}

// NewBaseline accepts every finding of doc.
func NewBaseline(doc *Document) *Baseline {
	b := &Baseline{}
	seen := make(map[BaselineEntry]bool)
	for _, cb := range doc.Codebases {
		for _, g := range cb.Files {
			for _, f := range g.Findings {
				e := entryOf(g.Path, f)
				if seen[e] {
					continue
				}
				seen[e] = true
				b.Findings = append(b.Findings, e)
			}
		}
	}
	b.reindex()
	return b
}

func (b *Baseline) reindex() {
	b.index = make(map[BaselineEntry]bool, len(b.Findings))
	for _, e := range b.Findings {
		b.index[e] = true
	}
}

// Len returns the number of accepted findings.
func (b *Baseline) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Findings)
}

// Contains reports whether the finding in the file at path is accepted.
func (b *Baseline) Contains(path string, f deadcode.Finding) bool {
	if b == nil {
		return false
	}
	return b.index[entryOf(path, f)]
}

// Apply returns r without the accepted findings, keeping the order of the
// rest and dropping groups left empty, and the number of findings removed.
func (b *Baseline) Apply(r deadcode.Report) (deadcode.Report, int) {
	if b.Len() == 0 {
		return r, 0
	}

	var out deadcode.Report
	removed := 0
	for _, g := range r.Groups {
		kept := make([]deadcode.Finding, 0, len(g.Findings))
		for _, f := range g.Findings {
			if b.Contains(g.Path, f) {
				removed++
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) > 0 {
			out.Groups = append(out.Groups, deadcode.FileGroup{Path: g.Path, Findings: kept})
		}
	}
	return out, removed
}

// ApplyTo filters every codebase of doc and updates its summary.
func (b *Baseline) ApplyTo(doc *Document) {
	total := 0
	for i := range doc.Codebases {
		filtered, removed := b.Apply(deadcode.Report{Groups: doc.Codebases[i].Files})
		if filtered.Groups == nil {
			filtered.Groups = []deadcode.FileGroup{}
		}
		doc.Codebases[i].Files = filtered.Groups
		total += removed
	}
	doc.summarize()
	doc.Summary.Baselined += total
}

// Write saves the baseline to path.
func (b *Baseline) Write(path string) error {
	data, err := toml.Marshal(b)
	if err != nil {
		return baselineError(path, "could not be encoded", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return baselineError(path, "could not be written", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return baselineError(path, "could not be written", err)
	}
	return nil
}

func baselineError(path, what string, cause error) error {
	return errors.NewUnrefError(
		errors.BaselineInvalid,
		fmt.Sprintf("Baseline %s %s", path, what),
		cause,
		nil,
	)
}
