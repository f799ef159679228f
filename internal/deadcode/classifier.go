package deadcode

import (
	"context"
	"errors"
)

// Verdict is the classification of one declaration.
type Verdict struct {
	Decl       Declaration
	Symbol     Symbol
	References int
}

// Unused reports whether nothing outside the declaration's own site refers
// to it.
func (v Verdict) Unused() bool {
	return v.References == 0
}

// Classify resolves decl, searches the whole codebase for references to its
// symbol and counts the ones that are not the declaration site itself.
//
// A declaration whose symbol cannot be resolved, or whose references cannot
// be searched, yields a *ResolutionError and no verdict.
func Classify(ctx context.Context, cb Codebase, decl Declaration) (Verdict, error) {
	sym, err := cb.ResolveSymbol(ctx, decl)
	if err != nil {
		return Verdict{}, asResolutionError(decl, err)
	}
	if sym == "" {
		return Verdict{}, &ResolutionError{Decl: decl, Op: OpResolve, Err: ErrNoSymbol}
	}

	refs, err := cb.FindReferences(ctx, sym)
	if err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		return Verdict{}, &ResolutionError{Decl: decl, Op: OpFindReferences, Err: err}
	}

	v := Verdict{Decl: decl, Symbol: sym}
	for _, ref := range refs {
		if isDeclarationSite(decl, ref) {
			continue
		}
		v.References++
	}
	return v, nil
}

func isDeclarationSite(decl Declaration, ref Location) bool {
	return ref.Path == decl.Path && ref.Position == decl.Position
}

func asResolutionError(decl Declaration, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return re
	}
	return &ResolutionError{Decl: decl, Op: OpResolve, Err: err}
}
