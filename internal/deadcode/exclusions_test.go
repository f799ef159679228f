package deadcode

import (
	"testing"
)

func TestIsTestFile(t *testing.T) {
	tests := map[string]bool{
		"src/Billing/InvoiceTests.cs":      true,
		"src/Billing/InvoiceTest.cs":       true,
		"src/Billing.Tests/Fixtures.cs":    true,
		"src/Billing.UnitTests/Helpers.cs": true,
		"src/Billing/Invoice.cs":           false,
		"src/Billing/Testing.cs":           false,
		"internal/deadcode/sweep_test.go":  true,
		"internal/deadcode/sweep.go":       false,
		"web/cart/Cart.test.ts":            true,
		"web/cart/price.spec.js":           true,
		"web/cart/Cart.tsx":                false,
		"tools/test_export.py":             true,
		"tools/export_test.py":             true,
		"tools/export.py":                  false,
		"web/__tests__/Cart.tsx":           true,
		"pkg/tests/unit.go":                true,
		"testdata/sample.json":             false,
	}

	for p, want := range tests {
		if got := IsTestFile(p); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestIsGeneratedFile(t *testing.T) {
	tests := map[string]bool{
		"src/Forms/Main.Designer.cs":                   true,
		"src/Views/Page.g.cs":                          true,
		"src/Views/Page.g.i.cs":                        true,
		"src/Properties/AssemblyInfo.cs":               true,
		"src/App/obj/Debug/net8.0/App.AssemblyInfo.cs": true,
		"api/billing.pb.go":                            true,
		"pkg/kind_string.go":                           true,
		"src/Forms/Main.cs":                            false,
		"internal/deadcode/sweep.go":                   false,
	}

	for p, want := range tests {
		if got := isGeneratedFile(p); got != want {
			t.Errorf("isGeneratedFile(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestExclusionRules_ShouldExclude(t *testing.T) {
	tests := []struct {
		name          string
		patterns      []string
		skipGenerated bool
		skipTests     bool
		decl          Declaration
		excluded      bool
	}{
		{
			name:     "no rules",
			decl:     Declaration{Path: "src/A.cs", Name: "App.A.Run", SimpleName: "Run"},
			excluded: false,
		},
		{
			name:          "generated file",
			skipGenerated: true,
			decl:          Declaration{Path: "src/A.Designer.cs", Name: "App.A.Init", SimpleName: "Init"},
			excluded:      true,
		},
		{
			name:          "generated file kept when not skipping",
			skipGenerated: false,
			decl:          Declaration{Path: "src/A.Designer.cs", Name: "App.A.Init", SimpleName: "Init"},
			excluded:      false,
		},
		{
			name:      "test file",
			skipTests: true,
			decl:      Declaration{Path: "src/ATests.cs", Name: "App.ATests.Setup", SimpleName: "Setup"},
			excluded:  true,
		},
		{
			name:     "path glob",
			patterns: []string{"src/legacy/**"},
			decl:     Declaration{Path: "src/legacy/old/B.cs", Name: "App.B.Run", SimpleName: "Run"},
			excluded: true,
		},
		{
			name:     "qualified name glob",
			patterns: []string{"App.Interop.*"},
			decl:     Declaration{Path: "src/Native.cs", Name: "App.Interop.Load", SimpleName: "Load"},
			excluded: true,
		},
		{
			name:     "simple name",
			patterns: []string{"Dispose"},
			decl:     Declaration{Path: "src/A.cs", Name: "App.A.Dispose", SimpleName: "Dispose"},
			excluded: true,
		},
		{
			name:     "no match",
			patterns: []string{"src/legacy/**", "Dispose"},
			decl:     Declaration{Path: "src/A.cs", Name: "App.A.Run", SimpleName: "Run"},
			excluded: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rules := NewExclusionRules(tc.patterns, tc.skipGenerated, tc.skipTests)
			reason := rules.ShouldExclude(tc.decl)
			if (reason != "") != tc.excluded {
				t.Errorf("ShouldExclude(%+v) = %q, want excluded=%v", tc.decl, reason, tc.excluded)
			}
		})
	}
}

func TestExclusionRules_Nil(t *testing.T) {
	var rules *ExclusionRules
	if reason := rules.ShouldExclude(Declaration{Path: "src/A.Designer.cs"}); reason != "" {
		t.Errorf("nil rules excluded declaration: %q", reason)
	}
}
