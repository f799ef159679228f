package deadcode

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExclusionRules decides which declarations are left out of the analysis.
// Excluded declarations are neither classified nor reported.
type ExclusionRules struct {
	patterns      []string
	skipGenerated bool
	skipTests     bool
}

// NewExclusionRules builds rules from doublestar globs. A glob excludes a
// declaration when it matches its file path, qualified name or simple name.
func NewExclusionRules(patterns []string, skipGenerated, skipTests bool) *ExclusionRules {
	return &ExclusionRules{
		patterns:      patterns,
		skipGenerated: skipGenerated,
		skipTests:     skipTests,
	}
}

// ShouldExclude returns why decl is excluded, or "".
func (r *ExclusionRules) ShouldExclude(decl Declaration) string {
	if r == nil {
		return ""
	}
	switch {
	case r.skipGenerated && isGeneratedFile(decl.Path):
		return "generated file"
	case r.skipTests && IsTestFile(decl.Path):
		return "test file"
	}

	subjects := [...]string{filepath.ToSlash(decl.Path), decl.Name, decl.SimpleName}
	for _, pattern := range r.patterns {
		for _, s := range subjects {
			if ok, _ := doublestar.Match(pattern, s); ok && s != "" {
				return "matches exclusion pattern: " + pattern
			}
		}
	}
	return ""
}

// Lower-cased fragments of generated file paths.
var generatedMarkers = []string{
	".designer.cs", ".g.cs", ".g.i.cs", ".generated.cs", "assemblyinfo.cs",
	"_generated.go", "_gen.go", ".pb.go", ".pb.gw.go", "_string.go", "zz_generated",
	"mock_", "mocks/", "generated/", "obj/",
}

func isGeneratedFile(p string) bool {
	p = strings.ToLower(filepath.ToSlash(p))
	for _, m := range generatedMarkers {
		if strings.Contains(p, m) {
			return true
		}
	}
	return false
}

var (
	testSuffixes = []string{
		"_test.go", "Tests.cs", "Test.cs",
		".test.ts", ".test.js", ".spec.ts", ".spec.js", "_test.py",
	}
	testDirs = []string{".Tests/", ".UnitTests/", "/test/", "/tests/", "/__tests__/"}
)

// IsTestFile reports whether the path names a test source or sits in a test
// project or directory.
func IsTestFile(p string) bool {
	p = filepath.ToSlash(p)
	if strings.HasPrefix(path.Base(p), "test_") {
		return true
	}
	for _, s := range testSuffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	for _, d := range testDirs {
		if strings.Contains(p, d) {
			return true
		}
	}
	return false
}
