package scip

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"unref/internal/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// SCIPIndex is a decoded SCIP index with lookup tables for definitions,
// occurrences and relationships. It is read-only after loading and safe for
// concurrent use.
type SCIPIndex struct {
	// Path is the file the index was loaded from.
	Path      string
	Metadata  *Metadata
	Documents []*Document
	// Symbols holds the information of document and external symbols.
	Symbols map[string]*SymbolInformation

	docs        map[string]*Document
	occurrences map[string][]occurrenceRef
	related     map[string][]string
}

// occurrenceRef points at one occurrence inside its document.
type occurrenceRef struct {
	doc *Document
	occ *Occurrence
}

// LoadSCIPIndex loads a SCIP index from the specified path. Plain, gzip and
// zstd compressed indexes are accepted.
func LoadSCIPIndex(path string) (*SCIPIndex, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewUnrefError(
			errors.IndexMissing,
			fmt.Sprintf("SCIP index not found at %s", path),
			err,
			errors.GetSuggestedFixes(errors.IndexMissing),
		)
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewUnrefError(
			errors.InternalError,
			fmt.Sprintf("Failed to read SCIP index from %s", path),
			err,
			nil,
		)
	}

	idx, err := ParseSCIPIndex(data)
	if err != nil {
		return nil, errors.NewUnrefError(
			errors.IndexInvalid,
			fmt.Sprintf("Failed to parse SCIP index from %s", path),
			err,
			[]errors.FixAction{{Type: errors.RunCommand, Description: "Inspect the index with the scip CLI", Command: "scip print " + path}},
		)
	}
	idx.Path = path

	return idx, nil
}

// ParseSCIPIndex decodes an index from raw, gzip or zstd compressed bytes.
func ParseSCIPIndex(data []byte) (*SCIPIndex, error) {
	data, err := decompress(data)
	if err != nil {
		return nil, err
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	return newIndex(&index), nil
}

func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil

	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil

	default:
		return data, nil
	}
}

// newIndex converts the protobuf index and builds the lookup tables.
func newIndex(index *scippb.Index) *SCIPIndex {
	idx := &SCIPIndex{
		Metadata:    convertMetadata(index.Metadata),
		Documents:   make([]*Document, len(index.Documents)),
		Symbols:     make(map[string]*SymbolInformation),
		docs:        make(map[string]*Document),
		occurrences: make(map[string][]occurrenceRef),
		related:     make(map[string][]string),
	}

	for i, pb := range index.Documents {
		doc := convertDocument(pb)
		idx.Documents[i] = doc
		idx.docs[doc.RelativePath] = doc
		for _, sym := range doc.Symbols {
			idx.Symbols[sym.Symbol] = sym
		}
		for _, occ := range doc.Occurrences {
			if occ.Symbol == "" {
				continue
			}
			idx.occurrences[occ.Symbol] = append(idx.occurrences[occ.Symbol], occurrenceRef{doc: doc, occ: occ})
		}
	}
	for _, sym := range index.ExternalSymbols {
		if _, ok := idx.Symbols[sym.Symbol]; !ok {
			idx.Symbols[sym.Symbol] = convertSymbolInformation(sym)
		}
	}

	// Relationships are followed in both directions.
	for _, sym := range idx.Symbols {
		for _, rel := range sym.Relationships {
			if !rel.IsImplementation && !rel.IsReference {
				continue
			}
			idx.related[sym.Symbol] = append(idx.related[sym.Symbol], rel.Symbol)
			idx.related[rel.Symbol] = append(idx.related[rel.Symbol], sym.Symbol)
		}
	}

	return idx
}

// GetDocument returns the document at a project-relative path, or nil.
func (i *SCIPIndex) GetDocument(relativePath string) *Document {
	return i.docs[filepath.ToSlash(relativePath)]
}

// GetSymbol returns what the indexer recorded about a symbol, or nil.
func (i *SCIPIndex) GetSymbol(symbolId string) *SymbolInformation {
	return i.Symbols[symbolId]
}

// ProjectRoot returns the project root recorded by the indexer as a local
// path, or the empty string.
func (i *SCIPIndex) ProjectRoot() string {
	if i.Metadata == nil || i.Metadata.ProjectRoot == "" {
		return ""
	}
	root := i.Metadata.ProjectRoot
	if u, err := url.Parse(root); err == nil && u.Scheme == "file" {
		return filepath.FromSlash(u.Path)
	}
	return root
}

func convertMetadata(meta *scippb.Metadata) *Metadata {
	if meta == nil {
		return nil
	}
	m := &Metadata{ProjectRoot: meta.ProjectRoot}
	if meta.ToolInfo != nil {
		m.Tool = meta.ToolInfo.Name
		m.ToolVersion = meta.ToolInfo.Version
	}
	return m
}

func convertDocument(doc *scippb.Document) *Document {
	d := &Document{
		RelativePath:     filepath.ToSlash(doc.RelativePath),
		Language:         doc.Language,
		PositionEncoding: convertPositionEncoding(doc.PositionEncoding),
		Occurrences:      make([]*Occurrence, len(doc.Occurrences)),
		Symbols:          make([]*SymbolInformation, len(doc.Symbols)),
	}
	for i, occ := range doc.Occurrences {
		d.Occurrences[i] = &Occurrence{Range: occ.Range, Symbol: occ.Symbol, SymbolRoles: occ.SymbolRoles}
	}
	for i, sym := range doc.Symbols {
		d.Symbols[i] = convertSymbolInformation(sym)
	}
	return d
}

func convertPositionEncoding(enc scippb.PositionEncoding) PositionEncoding {
	switch enc {
	case scippb.PositionEncoding_UTF8CodeUnitOffsetFromLineStart:
		return EncodingUTF8
	case scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart:
		return EncodingUTF16
	case scippb.PositionEncoding_UTF32CodeUnitOffsetFromLineStart:
		return EncodingUTF32
	default:
		return EncodingUnspecified
	}
}

func convertSymbolInformation(sym *scippb.SymbolInformation) *SymbolInformation {
	info := &SymbolInformation{Symbol: sym.Symbol, DisplayName: sym.DisplayName}
	for _, rel := range sym.Relationships {
		info.Relationships = append(info.Relationships, &Relationship{
			Symbol:           rel.Symbol,
			IsReference:      rel.IsReference,
			IsImplementation: rel.IsImplementation,
		})
	}
	return info
}
