//go:build cgo

package symbols

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"unref/internal/deadcode"
)

type scopeKind int

const (
	scopeNone scopeKind = iota
	scopeNamespace
	scopeType
	scopeFunc
)

// scope is one enclosing named construct.
type scope struct {
	name string
	kind scopeKind
}

// variant describes one declaration node type of a grammar.
type variant struct {
	// kind is the declaration kind, or empty for nodes that only open a scope.
	kind deadcode.Kind
	// names returns the identifier nodes declared by the node. Most nodes
	// declare one name; C#, Java and Go field declarations may declare several.
	names func(n *sitter.Node, src []byte) []*sitter.Node
	// refine, when set, decides the kind from the node and its enclosing scope.
	refine func(n *sitter.Node, src []byte, enclosing scopeKind) deadcode.Kind
	// label, when set, spells the declared name from the name node (C#
	// operators).
	label func(id *sitter.Node, src []byte) string
	// container, when set, names a scope that is not an ancestor in the tree
	// (Go method receivers).
	container func(n *sitter.Node, src []byte) string
	// scope is the scope opened by the node for its children.
	scope scopeKind
	// siblings extends the node's scope over its following siblings.
	siblings bool
}

// grammar is the closed set of declaration variants for one language.
type grammar struct {
	variants map[string]variant
	// filePrefix names a scope implied by the whole file (Go packages).
	filePrefix func(root *sitter.Node, src []byte) string
}

var grammars = map[Language]*grammar{
	LangCSharp:     csharpGrammar,
	LangGo:         goGrammar,
	LangJava:       javaGrammar,
	LangJavaScript: jsGrammar,
	LangTypeScript: tsGrammar,
	LangTSX:        tsGrammar,
	LangPython:     pythonGrammar,
}

var identifierTypes = map[string]bool{
	"identifier":                  true,
	"type_identifier":             true,
	"field_identifier":            true,
	"property_identifier":         true,
	"private_property_identifier": true,
}

// nameField returns the node's "name" field, falling back to its first
// identifier child.
func nameField(n *sitter.Node, _ []byte) []*sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil {
		return []*sitter.Node{name}
	}
	if prop := n.ChildByFieldName("property"); prop != nil {
		return []*sitter.Node{prop}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && identifierTypes[c.Type()] {
			return []*sitter.Node{c}
		}
	}
	return nil
}

// declarators returns the names of every variable_declarator below n,
// without entering nested bodies.
func declarators(n *sitter.Node, src []byte) []*sitter.Node {
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		for i := 0; i < int(c.NamedChildCount()); i++ {
			child := c.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "variable_declarator":
				out = append(out, nameField(child, src)...)
			case "variable_declaration":
				walk(child)
			}
		}
	}
	walk(n)
	return out
}

// childrenOfType returns the direct named children of n with the given type.
func childrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

// firstDescendant returns the first node of type typ below n in document order.
func firstDescendant(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		if c.Type() == typ {
			return c
		}
		if found := firstDescendant(c, typ); found != nil {
			return found
		}
	}
	return nil
}

// hasToken reports whether n has an anonymous child spelled tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func typeDecl() variant {
	return variant{kind: deadcode.KindType, names: nameField, scope: scopeType}
}

var csharpGrammar = &grammar{
	variants: map[string]variant{
		"namespace_declaration":             {names: nameField, scope: scopeNamespace},
		"file_scoped_namespace_declaration": {names: nameField, scope: scopeNamespace, siblings: true},

		"class_declaration":         typeDecl(),
		"struct_declaration":        typeDecl(),
		"interface_declaration":     typeDecl(),
		"enum_declaration":          typeDecl(),
		"record_declaration":        typeDecl(),
		"record_struct_declaration": typeDecl(),
		"delegate_declaration":      {kind: deadcode.KindType, names: nameField},

		"method_declaration":      {kind: deadcode.KindMethod, names: nameField},
		"constructor_declaration": {kind: deadcode.KindConstructor, names: nameField},
		"property_declaration":    {kind: deadcode.KindProperty, names: nameField},
		"event_declaration":       {kind: deadcode.KindEvent, names: nameField},
		"event_field_declaration": {kind: deadcode.KindEvent, names: declarators},
		"field_declaration":       {kind: deadcode.KindField, names: declarators},

		"indexer_declaration": {kind: deadcode.KindProperty, names: thisToken},
		"operator_declaration": {
			kind:  deadcode.KindMethod,
			names: operatorName,
			label: func(id *sitter.Node, src []byte) string { return "operator" + id.Content(src) },
		},
		"conversion_operator_declaration": {
			kind:  deadcode.KindMethod,
			names: operatorName,
			label: func(id *sitter.Node, src []byte) string { return "operator " + id.Content(src) },
		},
	},
}

// thisToken returns the "this" keyword naming a C# indexer.
func thisToken(n *sitter.Node, _ []byte) []*sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == "this" {
			return []*sitter.Node{c}
		}
	}
	return nil
}

// operatorName returns the node after the "operator" keyword of a C#
// operator: the operator token, or the target type of a conversion.
func operatorName(n *sitter.Node, _ []byte) []*sitter.Node {
	seen := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch {
		case !seen:
			seen = !c.IsNamed() && c.Type() == "operator"
		case !c.IsNamed() && c.Type() == "checked":
		default:
			return []*sitter.Node{c}
		}
	}
	return nil
}

var goGrammar = &grammar{
	variants: map[string]variant{
		"function_declaration": {kind: deadcode.KindFunction, names: nameField},
		"method_declaration": {
			kind:      deadcode.KindMethod,
			names:     nameField,
			container: goReceiverType,
		},
		"type_spec":  typeDecl(),
		"type_alias": {kind: deadcode.KindType, names: nameField},
		"field_declaration": {
			kind: deadcode.KindField,
			names: func(n *sitter.Node, _ []byte) []*sitter.Node {
				return childrenOfType(n, "field_identifier")
			},
		},
		"method_spec": {kind: deadcode.KindMethod, names: nameField},
		"method_elem": {kind: deadcode.KindMethod, names: nameField},
	},
	filePrefix: func(root *sitter.Node, src []byte) string {
		for _, clause := range childrenOfType(root, "package_clause") {
			if id := firstDescendant(clause, "package_identifier"); id != nil {
				return id.Content(src)
			}
		}
		return ""
	},
}

// goReceiverType returns the receiver's type name without pointer or type
// parameters.
func goReceiverType(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	if id := firstDescendant(recv, "type_identifier"); id != nil {
		return id.Content(src)
	}
	return ""
}

var javaGrammar = &grammar{
	variants: map[string]variant{
		"class_declaration":           typeDecl(),
		"interface_declaration":       typeDecl(),
		"enum_declaration":            typeDecl(),
		"record_declaration":          typeDecl(),
		"annotation_type_declaration": typeDecl(),

		"method_declaration":                  {kind: deadcode.KindMethod, names: nameField},
		"constructor_declaration":             {kind: deadcode.KindConstructor, names: nameField},
		"compact_constructor_declaration":     {kind: deadcode.KindConstructor, names: nameField},
		"field_declaration":                   {kind: deadcode.KindField, names: declarators},
		"constant_declaration":                {kind: deadcode.KindField, names: declarators},
		"annotation_type_element_declaration": {kind: deadcode.KindMethod, names: nameField},
	},
	filePrefix: func(root *sitter.Node, src []byte) string {
		for _, pkg := range childrenOfType(root, "package_declaration") {
			for i := 0; i < int(pkg.NamedChildCount()); i++ {
				c := pkg.NamedChild(i)
				if c != nil && (c.Type() == "scoped_identifier" || c.Type() == "identifier") {
					return c.Content(src)
				}
			}
		}
		return ""
	},
}

// jsMethodKind separates accessors and constructors from plain methods.
func jsMethodKind(n *sitter.Node, src []byte, _ scopeKind) deadcode.Kind {
	if hasToken(n, "get") || hasToken(n, "set") {
		return deadcode.KindProperty
	}
	if name := n.ChildByFieldName("name"); name != nil && name.Content(src) == "constructor" {
		return deadcode.KindConstructor
	}
	return deadcode.KindMethod
}

func jsVariants() map[string]variant {
	return map[string]variant{
		"class_declaration":              typeDecl(),
		"function_declaration":           {kind: deadcode.KindFunction, names: nameField, scope: scopeFunc},
		"generator_function_declaration": {kind: deadcode.KindFunction, names: nameField, scope: scopeFunc},
		"method_definition":              {names: nameField, refine: jsMethodKind, scope: scopeFunc},
		"field_definition":               {kind: deadcode.KindProperty, names: nameField},
	}
}

var jsGrammar = &grammar{variants: jsVariants()}

var tsGrammar = func() *grammar {
	v := jsVariants()
	v["abstract_class_declaration"] = typeDecl()
	v["interface_declaration"] = typeDecl()
	v["enum_declaration"] = variant{kind: deadcode.KindType, names: nameField}
	v["type_alias_declaration"] = variant{kind: deadcode.KindType, names: nameField}
	v["public_field_definition"] = variant{kind: deadcode.KindProperty, names: nameField}
	v["abstract_method_signature"] = variant{names: nameField, refine: jsMethodKind}
	v["method_signature"] = variant{names: nameField, refine: jsMethodKind}
	v["property_signature"] = variant{kind: deadcode.KindProperty, names: nameField}
	return &grammar{variants: v}
}()

// pythonFunctionKind classifies a def by where it sits: module and nested
// functions are functions, defs directly in a class body are methods,
// properties or constructors.
func pythonFunctionKind(n *sitter.Node, src []byte, enclosing scopeKind) deadcode.Kind {
	if enclosing != scopeType {
		return deadcode.KindFunction
	}
	if parent := n.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		for _, dec := range childrenOfType(parent, "decorator") {
			text := strings.TrimSpace(strings.TrimPrefix(dec.Content(src), "@"))
			if text == "property" || text == "functools.cached_property" || text == "cached_property" ||
				strings.HasSuffix(text, ".setter") || strings.HasSuffix(text, ".getter") || strings.HasSuffix(text, ".deleter") {
				return deadcode.KindProperty
			}
		}
	}
	if name := n.ChildByFieldName("name"); name != nil && name.Content(src) == "__init__" {
		return deadcode.KindConstructor
	}
	return deadcode.KindMethod
}

var pythonGrammar = &grammar{
	variants: map[string]variant{
		"class_definition":    typeDecl(),
		"function_definition": {names: nameField, refine: pythonFunctionKind, scope: scopeFunc},
	},
}
