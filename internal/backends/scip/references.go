package scip

import (
	"fmt"
	"path/filepath"
	"slices"
)

// ReferenceOptions narrows FindReferences.
type ReferenceOptions struct {
	// IncludeDefinition keeps definitions and forward definitions.
	IncludeDefinition bool

	// Document restricts the search to one document. Local symbols are
	// only meaningful inside the document that declares them.
	Document string
}

// FindReferences returns the occurrences of a symbol in document order of
// the index. Definitions are left out unless requested.
func (idx *SCIPIndex) FindReferences(symbolId string, options ReferenceOptions) []*Reference {
	refs := make([]*Reference, 0)
	document := filepath.ToSlash(options.Document)

	for _, ref := range idx.occurrences[symbolId] {
		if document != "" && ref.doc.RelativePath != document {
			continue
		}
		kind := determineReferenceKind(ref.occ)
		if (kind == RefDefinition || kind == RefForward) && !options.IncludeDefinition {
			continue
		}
		if location := parseOccurrenceRange(ref.occ, ref.doc.RelativePath); location != nil {
			refs = append(refs, &Reference{Symbol: symbolId, Location: location, Kind: kind})
		}
	}
	return refs
}

// DefinitionAt returns the definition occurrence covering the 0-based
// position in the given document. A definition starting exactly at the
// position wins over one merely containing it.
func (idx *SCIPIndex) DefinitionAt(relativePath string, line, column int) (*Reference, error) {
	doc := idx.GetDocument(relativePath)
	if doc == nil {
		return nil, fmt.Errorf("document not found: %s", relativePath)
	}

	var containing *Reference
	for _, occ := range doc.Occurrences {
		if !occ.IsDefinition() || occ.Symbol == "" {
			continue
		}
		location := parseOccurrenceRange(occ, doc.RelativePath)
		if location == nil {
			continue
		}
		if location.StartLine == line && location.StartColumn == column {
			return &Reference{Symbol: occ.Symbol, Location: location, Kind: RefDefinition}, nil
		}
		if containing == nil && location.Contains(line, column) {
			containing = &Reference{Symbol: occ.Symbol, Location: location, Kind: RefDefinition}
		}
	}

	if containing == nil {
		return nil, nil
	}
	return containing, nil
}

// DefinitionsOnLine returns the definition occurrences starting on the
// 0-based line, in document order.
func (idx *SCIPIndex) DefinitionsOnLine(relativePath string, line int) []*Reference {
	doc := idx.GetDocument(relativePath)
	if doc == nil {
		return nil
	}

	var defs []*Reference
	for _, occ := range doc.Occurrences {
		if !occ.IsDefinition() || occ.Symbol == "" {
			continue
		}
		location := parseOccurrenceRange(occ, doc.RelativePath)
		if location == nil || location.StartLine != line {
			continue
		}
		defs = append(defs, &Reference{Symbol: occ.Symbol, Location: location, Kind: RefDefinition})
	}
	return defs
}

// RelatedSymbols returns the symbols linked to symbolId by an implementation
// or reference relationship, in either direction.
func (idx *SCIPIndex) RelatedSymbols(symbolId string) []string {
	related := slices.Clone(idx.related[symbolId])
	slices.Sort(related)
	return slices.Compact(related)
}

// determineReferenceKind returns the strongest role of an occurrence.
func determineReferenceKind(occ *Occurrence) ReferenceKind {
	roles := occ.SymbolRoles
	switch {
	case roles&RoleDefinition != 0:
		return RefDefinition
	case roles&RoleForwardDefinition != 0:
		return RefForward
	case roles&RoleWriteAccess != 0:
		return RefWrite
	case roles&RoleReadAccess != 0:
		return RefRead
	case roles&RoleImport != 0:
		return RefImport
	default:
		return RefReference
	}
}

// parseOccurrenceRange converts [line, startCol, endCol] or
// [startLine, startCol, endLine, endCol] into a Location.
func parseOccurrenceRange(occ *Occurrence, filePath string) *Location {
	r := occ.Range
	switch len(r) {
	case 3:
		return &Location{Path: filePath, StartLine: int(r[0]), StartColumn: int(r[1]), EndLine: int(r[0]), EndColumn: int(r[2])}
	case 4:
		return &Location{Path: filePath, StartLine: int(r[0]), StartColumn: int(r[1]), EndLine: int(r[2]), EndColumn: int(r[3])}
	default:
		return nil
	}
}
