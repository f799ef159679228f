//go:build !cgo

package symbols

import (
	"context"
	"iter"

	"unref/internal/deadcode"
)

// File is a parsed source file.
// This is a stub implementation for non-CGO builds.
type File struct {
	Path     string
	Language Language
}

// Parse returns ErrNoCGO when CGO is disabled.
func Parse(ctx context.Context, path string, source []byte) (*File, error) {
	return nil, ErrNoCGO
}

// HasErrors always returns false.
func (f *File) HasErrors() bool {
	return false
}

// Declarations yields nothing.
func (f *File) Declarations(kinds deadcode.KindSet) iter.Seq[deadcode.Declaration] {
	return func(yield func(deadcode.Declaration) bool) {}
}
