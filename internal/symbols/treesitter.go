//go:build cgo

package symbols

import (
	"context"
	"fmt"
	"iter"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"unref/internal/deadcode"
)

// File is a parsed source file.
type File struct {
	Path     string
	Language Language

	source  []byte
	tree    *sitter.Tree
	grammar *grammar
}

// Parse parses source as the language implied by path's extension. Trees
// with syntax errors are returned as-is; tree-sitter recovers around them.
func Parse(ctx context.Context, path string, source []byte) (*File, error) {
	lang, ok := LanguageFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedLanguage)
	}

	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	// sitter.Parser is not safe for concurrent use.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &File{
		Path:     path,
		Language: lang,
		source:   source,
		tree:     tree,
		grammar:  grammars[lang],
	}, nil
}

// HasErrors reports whether tree-sitter had to recover from syntax errors.
func (f *File) HasErrors() bool {
	return f.tree.RootNode().HasError()
}

// Declarations yields the declarations of the selected kinds in document
// order.
func (f *File) Declarations(kinds deadcode.KindSet) iter.Seq[deadcode.Declaration] {
	return func(yield func(deadcode.Declaration) bool) {
		w := &walker{
			file:  f,
			kinds: kinds,
			yield: yield,
		}
		root := f.tree.RootNode()
		var scopes []scope
		if f.grammar.filePrefix != nil {
			if prefix := f.grammar.filePrefix(root, f.source); prefix != "" {
				scopes = append(scopes, scope{name: prefix, kind: scopeNamespace})
			}
		}
		w.walkChildren(root, scopes)
	}
}

// walker visits the tree depth-first, tracking the enclosing scopes.
type walker struct {
	file  *File
	kinds deadcode.KindSet
	yield func(deadcode.Declaration) bool
}

// walkChildren visits the named children of n. A child may extend the scope
// seen by its following siblings (C# file-scoped namespaces).
func (w *walker) walkChildren(n *sitter.Node, scopes []scope) bool {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		var ok bool
		scopes, ok = w.visit(child, scopes)
		if !ok {
			return false
		}
	}
	return true
}

func (w *walker) visit(n *sitter.Node, scopes []scope) ([]scope, bool) {
	v, known := w.file.grammar.variants[n.Type()]
	if !known {
		return scopes, w.walkChildren(n, scopes)
	}

	src := w.file.source
	idents := v.names(n, src)

	enclosing := scopeNone
	if len(scopes) > 0 {
		enclosing = scopes[len(scopes)-1].kind
	}

	kind := v.kind
	if v.refine != nil {
		kind = v.refine(n, src, enclosing)
	}

	if kind != "" && w.kinds.Has(kind) {
		qualifier := qualifiedPrefix(scopes)
		if v.container != nil {
			if c := v.container(n, src); c != "" {
				qualifier = joinName(qualifier, c)
			}
		}
		for _, id := range idents {
			simple := id.Content(src)
			if v.label != nil {
				simple = v.label(id, src)
			}
			p := id.StartPoint()
			d := deadcode.Declaration{
				Path:       w.file.Path,
				Kind:       kind,
				Name:       joinName(qualifier, simple),
				SimpleName: simple,
				Position:   deadcode.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1},
			}
			if !w.yield(d) {
				return scopes, false
			}
		}
	}

	inner := scopes
	if v.scope != scopeNone && len(idents) > 0 {
		inner = append(slices.Clip(scopes), scope{name: idents[0].Content(src), kind: v.scope})
	}
	if !w.walkChildren(n, inner) {
		return scopes, false
	}
	if v.siblings {
		return inner, true
	}
	return scopes, true
}

func qualifiedPrefix(scopes []scope) string {
	var name string
	for _, s := range scopes {
		name = joinName(name, s.name)
	}
	return name
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// getLanguage returns the tree-sitter Language for a given language identifier.
func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangCSharp:
		return csharp.GetLanguage(), nil
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}
