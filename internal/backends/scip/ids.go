package scip

import (
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
)

// IsLocalSymbol reports whether the symbol is document-local.
// Example: "local 12"
func IsLocalSymbol(symbolId string) bool {
	return strings.HasPrefix(symbolId, "local ")
}

// SimpleName extracts the name of the innermost descriptor of a symbol.
// Examples:
//   - "scip-dotnet nuget . . Shop/Invoice#Helper()." -> "Helper"
//   - "scip-go gomod shop v1 `shop`/Cart#Total()." -> "Total"
//   - "local 3" -> "3"
func (idx *SCIPIndex) SimpleName(symbolId string) string {
	if info := idx.Symbols[symbolId]; info != nil && info.DisplayName != "" {
		return info.DisplayName
	}
	return SimpleName(symbolId)
}

// SimpleName extracts the name of the innermost descriptor of a symbol
// without consulting an index.
func SimpleName(symbolId string) string {
	if IsLocalSymbol(symbolId) {
		return strings.TrimPrefix(symbolId, "local ")
	}
	sym, err := scippb.ParseSymbol(symbolId)
	if err != nil || len(sym.Descriptors) == 0 {
		return ""
	}
	return sym.Descriptors[len(sym.Descriptors)-1].Name
}
