// Package symbols enumerates member declarations in source files using
// tree-sitter.
package symbols

import (
	"errors"
	"path/filepath"
	"strings"
)

type Language string

const (
	LangCSharp     Language = "csharp"
	LangGo         Language = "go"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoCGO               = errors.New("declaration parsing requires CGO (tree-sitter)")
)

var extensions = map[string]Language{
	".cs":   LangCSharp,
	".go":   LangGo,
	".java": LangJava,
	".js":   LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".jsx":  LangJavaScript,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".pyw":  LangPython,
}

// LanguageFromPath maps a file extension, case-insensitively.
func LanguageFromPath(path string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Supported reports whether the file at path can be enumerated.
func Supported(path string) bool {
	_, ok := LanguageFromPath(path)
	return ok
}
