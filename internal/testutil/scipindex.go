// Package testutil provides testing utilities for building SCIP indexes
// and source trees on disk.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

// Compression selects how WriteIndex encodes the index file.
type Compression int

const (
	Plain Compression = iota
	Gzip
	Zstd
)

// IndexBuilder assembles an in-memory SCIP index.
type IndexBuilder struct {
	index *scippb.Index
}

// NewIndex starts an index for the project rooted at projectRoot (a local
// path; empty for none).
func NewIndex(projectRoot string) *IndexBuilder {
	meta := &scippb.Metadata{
		Version:  scippb.ProtocolVersion_UnspecifiedProtocolVersion,
		ToolInfo: &scippb.ToolInfo{Name: "scip-test", Version: "0.0.0"},
	}
	if projectRoot != "" {
		meta.ProjectRoot = "file://" + filepath.ToSlash(projectRoot)
	}
	return &IndexBuilder{index: &scippb.Index{Metadata: meta}}
}

// Document adds a document and returns a builder for its contents.
func (b *IndexBuilder) Document(relativePath, language string) *DocumentBuilder {
	doc := &scippb.Document{
		RelativePath:     relativePath,
		Language:         language,
		PositionEncoding: scippb.PositionEncoding_UTF8CodeUnitOffsetFromLineStart,
	}
	b.index.Documents = append(b.index.Documents, doc)
	return &DocumentBuilder{doc: doc}
}

// Proto returns the built index.
func (b *IndexBuilder) Proto() *scippb.Index {
	return b.index
}

// Bytes marshals the index with the given compression.
func (b *IndexBuilder) Bytes(t *testing.T, c Compression) []byte {
	t.Helper()

	data, err := proto.Marshal(b.index)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}

	switch c {
	case Gzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip index: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip index: %v", err)
		}
		return buf.Bytes()
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("zstd index: %v", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	default:
		return data
	}
}

// Write writes the index to path, creating parent directories.
func (b *IndexBuilder) Write(t *testing.T, path string, c Compression) string {
	t.Helper()
	WriteFile(t, path, b.Bytes(t, c))
	return path
}

// DocumentBuilder adds occurrences and symbol information to a document.
// Positions are 0-based, as stored in SCIP.
type DocumentBuilder struct {
	doc *scippb.Document
}

// Def records a definition occurrence of symbol on one line.
func (d *DocumentBuilder) Def(symbol string, line, startCol, endCol int) *DocumentBuilder {
	d.doc.Occurrences = append(d.doc.Occurrences, &scippb.Occurrence{
		Range:       []int32{int32(line), int32(startCol), int32(endCol)},
		Symbol:      symbol,
		SymbolRoles: int32(scippb.SymbolRole_Definition),
	})
	return d
}

// Ref records a reference occurrence of symbol on one line.
func (d *DocumentBuilder) Ref(symbol string, line, startCol, endCol int) *DocumentBuilder {
	d.doc.Occurrences = append(d.doc.Occurrences, &scippb.Occurrence{
		Range:       []int32{int32(line), int32(startCol), int32(endCol)},
		Symbol:      symbol,
		SymbolRoles: int32(scippb.SymbolRole_ReadAccess),
	})
	return d
}

// Symbol records symbol information, with optional implementation
// relationships.
func (d *DocumentBuilder) Symbol(symbol, displayName string, implements ...string) *DocumentBuilder {
	info := &scippb.SymbolInformation{Symbol: symbol, DisplayName: displayName}
	for _, target := range implements {
		info.Relationships = append(info.Relationships, &scippb.Relationship{
			Symbol:           target,
			IsImplementation: true,
		})
	}
	d.doc.Symbols = append(d.doc.Symbols, info)
	return d
}

// Encoding overrides the document's position encoding.
func (d *DocumentBuilder) Encoding(enc scippb.PositionEncoding) *DocumentBuilder {
	d.doc.PositionEncoding = enc
	return d
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
