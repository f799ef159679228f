package scip

// Occurrence role bits as defined by the SCIP protocol.
const (
	RoleDefinition        int32 = 1
	RoleImport            int32 = 2
	RoleWriteAccess       int32 = 4
	RoleReadAccess        int32 = 8
	RoleGenerated         int32 = 16
	RoleTest              int32 = 32
	RoleForwardDefinition int32 = 64
)

// ReferenceKind classifies an occurrence by its strongest role.
type ReferenceKind string

const (
	RefDefinition ReferenceKind = "definition"
	RefForward    ReferenceKind = "forward_definition"
	RefWrite      ReferenceKind = "write"
	RefRead       ReferenceKind = "read"
	RefImport     ReferenceKind = "import"
	RefReference  ReferenceKind = "reference"
)

// Location is a 0-based range inside a document. EndColumn is exclusive.
type Location struct {
	Path        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Contains reports whether the 0-based position lies inside the location.
func (l *Location) Contains(line, column int) bool {
	switch {
	case line < l.StartLine || line > l.EndLine:
		return false
	case line == l.StartLine && column < l.StartColumn:
		return false
	case line == l.EndLine && column >= l.EndColumn:
		return false
	}
	return true
}

// Reference is one occurrence of a symbol returned by a lookup.
type Reference struct {
	Symbol   string
	Location *Location
	Kind     ReferenceKind
}

// Metadata describes the indexer run that produced an index.
type Metadata struct {
	Tool        string
	ToolVersion string
	// ProjectRoot is the URI the document paths are relative to.
	ProjectRoot string
}

// PositionEncoding is the unit in which a document's columns are counted.
type PositionEncoding int

const (
	// EncodingUnspecified is treated like UTF-8 byte offsets.
	EncodingUnspecified PositionEncoding = iota
	EncodingUTF8
	EncodingUTF16
	EncodingUTF32
)

// Document is one indexed source file.
type Document struct {
	// RelativePath is relative to the project root, in slash form.
	RelativePath     string
	Language         string
	PositionEncoding PositionEncoding
	Occurrences      []*Occurrence
	Symbols          []*SymbolInformation
}

// Occurrence is a raw symbol occurrence of a document.
type Occurrence struct {
	// Range is [line, startCol, endCol] or [line, startCol, endLine, endCol].
	Range       []int32
	Symbol      string
	SymbolRoles int32
}

// IsDefinition reports whether the occurrence defines its symbol.
func (o *Occurrence) IsDefinition() bool {
	return o.SymbolRoles&RoleDefinition != 0
}

// SymbolInformation is what the indexer recorded about a symbol.
type SymbolInformation struct {
	Symbol        string
	DisplayName   string
	Relationships []*Relationship
}

// Relationship links a symbol to another. Only implementation and reference
// relationships make references to one count for the other.
type Relationship struct {
	Symbol           string
	IsReference      bool
	IsImplementation bool
}
