package deadcode

import (
	"errors"
	"fmt"
)

// LoadError reports a codebase that could not be opened.
type LoadError struct {
	Input string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Input, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ParseError reports a source file that could not be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResolutionError reports a declaration that could not be mapped to a
// symbol, or whose references could not be searched.
type ResolutionError struct {
	Decl Declaration
	// Op is OpResolve or OpFindReferences.
	Op  string
	Err error
}

const (
	OpResolve        = "resolve"
	OpFindReferences = "find references"
)

func (e *ResolutionError) Error() string {
	op := e.Op
	if op == "" {
		op = OpResolve
	}
	return fmt.Sprintf("%s %s (%s:%s): %v", op, e.Decl.Name, e.Decl.Path, e.Decl.Position, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ErrNoSymbol is returned by resolvers when no symbol is declared at a
// declaration's position.
var ErrNoSymbol = errors.New("no symbol declared at position")

// ErrNoDocument is returned by resolvers when the semantic model does not
// know the declaring file.
var ErrNoDocument = errors.New("file not present in semantic model")
