// Package report renders analysis results for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"unref/internal/deadcode"
)

// Format is an output format.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatSARIF Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatHuman, FormatJSON, FormatYAML, FormatSARIF}

// ParseFormat validates a format name (case-insensitive).
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", name)
}

// Document is the complete output of one invocation.
type Document struct {
	Codebases   []Codebase   `json:"codebases" yaml:"codebases"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Summary     Summary      `json:"summary" yaml:"summary"`
}

// Codebase is the report of one analyzed codebase.
type Codebase struct {
	Name  string               `json:"name" yaml:"name"`
	Files []deadcode.FileGroup `json:"files" yaml:"files"`
	Stats deadcode.Stats       `json:"stats" yaml:"stats"`
}

// Diagnostic is a diagnostic attributed to the input it came from.
type Diagnostic struct {
	Codebase            string `json:"codebase,omitempty" yaml:"codebase,omitempty"`
	deadcode.Diagnostic `yaml:",inline"`
}

// Summary totals a document.
type Summary struct {
	Codebases   int            `json:"codebases" yaml:"codebases"`
	Files       int            `json:"files" yaml:"files"`
	Findings    int            `json:"findings" yaml:"findings"`
	Baselined   int            `json:"baselined,omitempty" yaml:"baselined,omitempty"`
	Diagnostics int            `json:"diagnostics" yaml:"diagnostics"`
	ByKind      map[string]int `json:"byKind" yaml:"byKind"`
	Analyzed    deadcode.Stats `json:"analyzed" yaml:"analyzed"`
}

// Build assembles a document from per-codebase results and the diagnostics
// of inputs that could not be loaded.
func Build(results []*deadcode.Result, loadDiagnostics []deadcode.Diagnostic) *Document {
	doc := &Document{
		Codebases:   make([]Codebase, 0, len(results)),
		Diagnostics: make([]Diagnostic, 0, len(loadDiagnostics)),
		Summary:     Summary{ByKind: map[string]int{}},
	}

	for _, d := range loadDiagnostics {
		doc.Diagnostics = append(doc.Diagnostics, Diagnostic{Diagnostic: d})
	}

	for _, r := range results {
		groups := r.Report.Groups
		if groups == nil {
			groups = []deadcode.FileGroup{}
		}
		doc.Codebases = append(doc.Codebases, Codebase{
			Name:  r.Codebase,
			Files: groups,
			Stats: r.Stats,
		})
		for _, d := range r.Diagnostics {
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{Codebase: r.Codebase, Diagnostic: d})
		}
		addStats(&doc.Summary.Analyzed, r.Stats)
	}

	doc.summarize()
	return doc
}

// summarize recomputes the summary counts from the codebases.
func (d *Document) summarize() {
	d.Summary.Codebases = len(d.Codebases)
	d.Summary.Files = 0
	d.Summary.Findings = 0
	d.Summary.Diagnostics = len(d.Diagnostics)
	d.Summary.ByKind = map[string]int{}
	for _, cb := range d.Codebases {
		d.Summary.Files += len(cb.Files)
		for _, g := range cb.Files {
			d.Summary.Findings += len(g.Findings)
			for _, f := range g.Findings {
				d.Summary.ByKind[string(f.Kind)]++
			}
		}
	}
}

func addStats(dst *deadcode.Stats, s deadcode.Stats) {
	dst.Files += s.Files
	dst.FilesSkipped += s.FilesSkipped
	dst.Declarations += s.Declarations
	dst.Excluded += s.Excluded
	dst.Classified += s.Classified
	dst.Unresolved += s.Unresolved
	dst.Findings += s.Findings
}

// HasFindings reports whether any codebase has a finding.
func (d *Document) HasFindings() bool {
	return d.Summary.Findings > 0
}

// Render writes doc to w in the given format. version is recorded by
// formats that name the producing tool.
func Render(w io.Writer, doc *Document, format Format, version string) error {
	switch format {
	case FormatHuman, "":
		return renderHuman(w, doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case FormatSARIF:
		return renderSARIF(w, doc, version)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
