// Package deadcode finds declarations that nothing in a codebase refers to.
//
// The package holds the analysis core: it enumerates candidate declarations
// file by file, asks a Codebase to resolve each one to a symbol and to search
// the whole codebase for references to it, and collects the declarations with
// no references into a Report grouped by file. Parsing, symbol resolution and
// reference search are consumed through the Codebase interface.
package deadcode

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Kind is the kind of a declaration.
type Kind string

const (
	KindMethod      Kind = "method"
	KindProperty    Kind = "property"
	KindConstructor Kind = "constructor"
	KindField       Kind = "field"
	KindEvent       Kind = "event"
	KindFunction    Kind = "function"
	KindType        Kind = "type"
)

// AllKinds lists every declaration kind in display order.
var AllKinds = []Kind{
	KindMethod,
	KindProperty,
	KindConstructor,
	KindField,
	KindEvent,
	KindFunction,
	KindType,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return slices.Contains(AllKinds, k)
}

// KindSet is a set of declaration kinds selected for analysis.
type KindSet map[Kind]bool

// DefaultKinds returns the kinds analyzed when nothing else is configured.
func DefaultKinds() KindSet {
	return NewKindSet(KindMethod, KindProperty)
}

// NewKindSet builds a set from the given kinds.
func NewKindSet(kinds ...Kind) KindSet {
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// ParseKinds converts kind names (case-insensitive) into a KindSet.
// "all" selects every kind.
func ParseKinds(names []string) (KindSet, error) {
	set := make(KindSet)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			return NewKindSet(AllKinds...), nil
		}
		k := Kind(name)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown declaration kind %q", name)
		}
		set[k] = true
	}
	if len(set) == 0 {
		return DefaultKinds(), nil
	}
	return set, nil
}

// Has reports whether k is in the set. A nil set contains the default kinds.
func (s KindSet) Has(k Kind) bool {
	if s == nil {
		return k == KindMethod || k == KindProperty
	}
	return s[k]
}

// Sorted returns the kinds of the set in display order.
func (s KindSet) Sorted() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Position is a 1-based line and column in a source file.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Compare orders positions by line, then column.
func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.Line, o.Line); c != 0 {
		return c
	}
	return cmp.Compare(p.Column, o.Column)
}

// Declaration is a candidate for usage analysis.
type Declaration struct {
	// Path is the codebase-relative path of the declaring file.
	Path string
	// Kind is the declaration kind.
	Kind Kind
	// Name is the qualified name, built from the enclosing scopes outward.
	Name string
	// SimpleName is the declared identifier alone.
	SimpleName string
	// Position is where the declared identifier starts.
	Position Position
}

// Symbol is the canonical identity of a declaration, as handed out by the
// resolver. Distinct declarations may share one Symbol.
type Symbol string

// Location is a site in the codebase.
type Location struct {
	Path     string
	Position Position
}

// Finding is a declaration with no references.
type Finding struct {
	Path     string   `json:"-" yaml:"-"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Name     string   `json:"name" yaml:"name"`
	Position Position `json:"position" yaml:"position"`
}

// FileGroup is the findings of one file, in discovery order.
type FileGroup struct {
	Path     string    `json:"path" yaml:"path"`
	Findings []Finding `json:"findings" yaml:"findings"`
}

// Report is the file-grouped result of an analysis. Groups are ordered by
// path and never empty.
type Report struct {
	Groups []FileGroup `json:"files" yaml:"files"`
}

// Len returns the total number of findings.
func (r *Report) Len() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Findings)
	}
	return n
}

// Files returns the paths of the groups in report order.
func (r *Report) Files() []string {
	paths := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		paths[i] = g.Path
	}
	return paths
}

// Findings returns every finding in report order.
func (r *Report) Findings() []Finding {
	var all []Finding
	for _, g := range r.Groups {
		all = append(all, g.Findings...)
	}
	return all
}

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticCode identifies what went wrong.
type DiagnosticCode string

const (
	DiagLoadFailed       DiagnosticCode = "load_failed"
	DiagParseFailed      DiagnosticCode = "parse_failed"
	DiagResolutionFailed DiagnosticCode = "resolution_failed"
	DiagReferenceFailed  DiagnosticCode = "reference_search_failed"
)

// Diagnostic reports something the analysis could not decide. Declarations
// with a diagnostic are never part of the Report.
type Diagnostic struct {
	Severity Severity       `json:"severity" yaml:"severity"`
	Code     DiagnosticCode `json:"code" yaml:"code"`
	Path     string         `json:"path,omitempty" yaml:"path,omitempty"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Position *Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Message  string         `json:"message" yaml:"message"`
}

// Stats counts what an analysis run looked at.
type Stats struct {
	Files        int `json:"files" yaml:"files"`
	FilesSkipped int `json:"filesSkipped" yaml:"filesSkipped"`
	Declarations int `json:"declarations" yaml:"declarations"`
	Excluded     int `json:"excluded" yaml:"excluded"`
	Classified   int `json:"classified" yaml:"classified"`
	Unresolved   int `json:"unresolved" yaml:"unresolved"`
	Findings     int `json:"findings" yaml:"findings"`
}

// Result is the output of analyzing one codebase.
type Result struct {
	Codebase    string       `json:"codebase" yaml:"codebase"`
	Report      Report       `json:"report" yaml:"report"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Stats       Stats        `json:"stats" yaml:"stats"`
}

// Codebase is a loaded set of source files together with the semantic
// model needed to resolve declarations and search for references.
type Codebase interface {
	// Name identifies the codebase in reports.
	Name() string
	// Files lists the source files to analyze.
	Files() []string
	// Parse parses one file. Failures should be *ParseError.
	Parse(ctx context.Context, path string) (ParsedFile, error)
	// ResolveSymbol maps a declaration to its symbol. Failures should be
	// *ResolutionError.
	ResolveSymbol(ctx context.Context, decl Declaration) (Symbol, error)
	// FindReferences returns every site in the codebase that refers to sym.
	FindReferences(ctx context.Context, sym Symbol) ([]Location, error)
}

// ParsedFile is a parsed source file.
type ParsedFile interface {
	// Declarations yields the declarations of the selected kinds in
	// document order.
	Declarations(kinds KindSet) iter.Seq[Declaration]
}
