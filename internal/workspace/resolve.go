package workspace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"unicode/utf16"
	"unicode/utf8"

	"unref/internal/backends/scip"
	"unref/internal/deadcode"
)

// localSymbol is a document-scoped SCIP symbol handed out under a
// codebase-unique key.
type localSymbol struct {
	project *Project
	docPath string
	symbol  string
}

func localKey(p *Project, docPath, symbol string) deadcode.Symbol {
	return deadcode.Symbol("local:" + p.Name + ":" + docPath + ":" + symbol)
}

// ResolveSymbol maps a declaration to the SCIP symbol defined at its
// identifier. When no definition covers the exact position, a definition on
// the same line carrying the declaration's simple name is accepted.
func (cb *Codebase) ResolveSymbol(ctx context.Context, decl deadcode.Declaration) (deadcode.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	owner, ok := cb.owners[decl.Path]
	if !ok {
		return "", resolveError(decl, deadcode.ErrNoDocument)
	}
	idx := owner.project.Index
	doc := idx.GetDocument(owner.docPath)
	if doc == nil {
		return "", resolveError(decl, deadcode.ErrNoDocument)
	}

	line := decl.Position.Line - 1
	column := decl.Position.Column - 1
	if needsConversion(doc.PositionEncoding) {
		if source, err := cb.source(decl.Path); err == nil {
			column = toEncoding(lineAt(source, line), column, doc.PositionEncoding)
		}
	}

	def, err := idx.DefinitionAt(owner.docPath, line, column)
	if err != nil {
		return "", resolveError(decl, err)
	}
	if def == nil {
		for _, candidate := range idx.DefinitionsOnLine(owner.docPath, line) {
			if idx.SimpleName(candidate.Symbol) == decl.SimpleName {
				def = candidate
				break
			}
		}
	}
	if def == nil {
		return "", resolveError(decl, deadcode.ErrNoSymbol)
	}

	if scip.IsLocalSymbol(def.Symbol) {
		key := localKey(owner.project, owner.docPath, def.Symbol)
		cb.locals.Store(key, localSymbol{project: owner.project, docPath: owner.docPath, symbol: def.Symbol})
		return key, nil
	}
	return deadcode.Symbol(def.Symbol), nil
}

// FindReferences returns every non-definition occurrence of sym in the
// codebase. With cascading enabled, occurrences of symbols related to sym by
// implementation or reference relationships count as well, transitively.
func (cb *Codebase) FindReferences(ctx context.Context, sym deadcode.Symbol) ([]deadcode.Location, error) {
	if v, ok := cb.locals.Load(sym); ok {
		local := v.(localSymbol)
		refs := local.project.Index.FindReferences(local.symbol, scip.ReferenceOptions{Document: local.docPath})
		var out []deadcode.Location
		for _, ref := range refs {
			out = append(out, cb.location(local.project, ref.Location))
		}
		return out, nil
	}

	seen := map[string]bool{string(sym): true}
	queue := []string{string(sym)}
	sites := make(map[deadcode.Location]bool)
	var out []deadcode.Location

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		for _, p := range cb.projects {
			for _, ref := range p.Index.FindReferences(current, scip.ReferenceOptions{}) {
				loc := cb.location(p, ref.Location)
				if sites[loc] {
					continue
				}
				sites[loc] = true
				out = append(out, loc)
			}
			if !cb.opts.Cascade {
				continue
			}
			for _, related := range p.Index.RelatedSymbols(current) {
				if !seen[related] {
					seen[related] = true
					queue = append(queue, related)
				}
			}
		}
	}

	if len(seen) > 1 {
		cb.logger.Debug("Cascaded reference search",
			"symbol", string(sym),
			"symbols", len(seen),
			"references", len(out))
	}
	return out, nil
}

// location converts a 0-based SCIP location into a 1-based codebase location
// with a byte column.
func (cb *Codebase) location(p *Project, loc *scip.Location) deadcode.Location {
	docPath := filepath.ToSlash(loc.Path)
	path := joinPath(p.Prefix, docPath)
	column := loc.StartColumn

	if doc := p.Index.GetDocument(docPath); doc != nil && needsConversion(doc.PositionEncoding) {
		if source, err := cb.source(path); err == nil {
			column = fromEncoding(lineAt(source, loc.StartLine), column, doc.PositionEncoding)
		}
	}

	return deadcode.Location{
		Path:     path,
		Position: deadcode.Position{Line: loc.StartLine + 1, Column: column + 1},
	}
}

// source returns the contents of a codebase file, reading it on first use.
func (cb *Codebase) source(path string) ([]byte, error) {
	if data, ok := cb.sources.Get(path); ok {
		return data, nil
	}
	owner, ok := cb.owners[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(owner.project.Root, filepath.FromSlash(owner.docPath)))
	if err != nil {
		return nil, err
	}
	cb.sources.Add(path, data)
	return data, nil
}

func resolveError(decl deadcode.Declaration, err error) error {
	return &deadcode.ResolutionError{Decl: decl, Op: deadcode.OpResolve, Err: err}
}

func needsConversion(enc scip.PositionEncoding) bool {
	return enc == scip.EncodingUTF16 || enc == scip.EncodingUTF32
}

// lineAt returns the 0-based line of source without its terminator.
func lineAt(source []byte, line int) []byte {
	for i := 0; i < line; i++ {
		nl := bytes.IndexByte(source, '\n')
		if nl < 0 {
			return nil
		}
		source = source[nl+1:]
	}
	if nl := bytes.IndexByte(source, '\n'); nl >= 0 {
		source = source[:nl]
	}
	return bytes.TrimSuffix(source, []byte("\r"))
}

// toEncoding converts a byte offset within line into the document's column
// unit.
func toEncoding(line []byte, byteCol int, enc scip.PositionEncoding) int {
	if !needsConversion(enc) || byteCol <= 0 {
		return byteCol
	}
	if byteCol > len(line) {
		byteCol = len(line)
	}
	prefix := line[:byteCol]
	if enc == scip.EncodingUTF32 {
		return utf8.RuneCount(prefix)
	}
	units := 0
	for len(prefix) > 0 {
		r, size := utf8.DecodeRune(prefix)
		units += utf16Len(r)
		prefix = prefix[size:]
	}
	return units
}

// fromEncoding converts a column in the document's unit into a byte offset
// within line.
func fromEncoding(line []byte, col int, enc scip.PositionEncoding) int {
	if !needsConversion(enc) || col <= 0 {
		return col
	}
	offset, units := 0, 0
	for offset < len(line) && units < col {
		r, size := utf8.DecodeRune(line[offset:])
		if enc == scip.EncodingUTF32 {
			units++
		} else {
			units += utf16Len(r)
		}
		offset += size
	}
	return offset
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
