package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	scippb "github.com/sourcegraph/scip/bindings/go/scip"

	"unref/internal/backends/scip"
	"unref/internal/deadcode"
	unreferrors "unref/internal/errors"
	"unref/internal/symbols"
	"unref/internal/testutil"
)

const (
	symInvoice    = "scip-dotnet nuget . . Shop/Invoice#"
	symValue      = "scip-dotnet nuget . . Shop/Invoice#Value."
	symHelper     = "scip-dotnet nuget . . Shop/Invoice#Helper()."
	symPrint      = "scip-dotnet nuget . . Shop/Invoice#Print()."
	symIPrintable = "scip-dotnet nuget . . Shop/IPrintable#"
	symIFacePrint = "scip-dotnet nuget . . Shop/IPrintable#Print()."
	symProgram    = "scip-dotnet nuget . . Shop/Program#"
	symMain       = "scip-dotnet nuget . . Shop/Program#Main()."
	symGroesse    = "scip-dotnet nuget . . Shop/A#Größe()."
)

const invoiceSource = `namespace Shop
{
    public class Invoice
    {
        public int Value { get; set; }
        public void Helper() { }
        public void Print() { }
    }
}
`

const printableSource = `namespace Shop
{
    public interface IPrintable
    {
        void Print();
    }
}
`

const programSource = `namespace Shop
{
    public static class Program
    {
        public static void Main()
        {
            var invoice = new Invoice();
            invoice.Value = 1;
            IPrintable p = invoice;
            p.Print();
        }
    }
}
`

// unicodeSource has non-ASCII identifiers before the declarations so that
// UTF-16 columns and byte columns differ.
const unicodeSource = "class Ä { void Größe() { } }\n  void Ü() { Größe(); }\n"

// writeShop writes the shop sources under root and returns the index
// describing them.
func writeShop(t *testing.T, root string) *testutil.IndexBuilder {
	t.Helper()

	testutil.WriteFile(t, filepath.Join(root, "src", "Invoice.cs"), []byte(invoiceSource))
	testutil.WriteFile(t, filepath.Join(root, "src", "IPrintable.cs"), []byte(printableSource))
	testutil.WriteFile(t, filepath.Join(root, "src", "Program.cs"), []byte(programSource))
	testutil.WriteFile(t, filepath.Join(root, "src", "Unicode.cs"), []byte(unicodeSource))
	testutil.WriteFile(t, filepath.Join(root, "README.md"), []byte("# shop\n"))

	b := testutil.NewIndex("")
	b.Document("src/Invoice.cs", "csharp").
		Def(symInvoice, 2, 17, 24).
		Def(symValue, 4, 19, 24).
		Def(symHelper, 5, 20, 26).
		Def(symPrint, 6, 20, 25).
		Ref("local 0", 4, 8, 14).
		Symbol(symInvoice, "Invoice").
		Symbol(symValue, "Value").
		Symbol(symHelper, "Helper").
		Symbol(symPrint, "Print", symIFacePrint)
	b.Document("src/IPrintable.cs", "csharp").
		Def(symIPrintable, 2, 21, 31).
		Def(symIFacePrint, 4, 13, 18).
		Symbol(symIFacePrint, "Print")
	b.Document("src/Program.cs", "csharp").
		Def(symProgram, 2, 24, 31).
		Def(symMain, 4, 27, 31).
		Def("local 0", 6, 16, 23).
		Ref(symInvoice, 6, 30, 37).
		Ref("local 0", 7, 12, 19).
		Ref(symValue, 7, 20, 25).
		Ref(symIPrintable, 8, 12, 22).
		Ref(symIFacePrint, 9, 14, 19)
	b.Document("src/Unicode.cs", "csharp").
		Encoding(scippb.PositionEncoding_UTF16CodeUnitOffsetFromLineStart).
		Def(symGroesse, 0, 15, 20).
		Ref(symGroesse, 1, 13, 18).
		Symbol(symGroesse, "Größe")
	b.Document("README.md", "markdown")
	return b
}

// newShop writes the shop project with its index in .scip/ and loads the
// directory.
func newShop(t *testing.T, opts Options) *Codebase {
	t.Helper()
	root := t.TempDir()
	writeShop(t, root).Write(t, filepath.Join(root, ".scip", "index.scip"), testutil.Plain)

	cb, err := Load(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cb
}

func TestLoad_Directory(t *testing.T) {
	cb := newShop(t, DefaultOptions())

	want := []string{"src/IPrintable.cs", "src/Invoice.cs", "src/Program.cs", "src/Unicode.cs"}
	if diff := cmp.Diff(want, cb.Files()); diff != "" {
		t.Errorf("Files() mismatch (-want +got):\n%s", diff)
	}
	if cb.Name() != filepath.Base(cb.root) {
		t.Errorf("Name() = %q, want base of root %q", cb.Name(), cb.root)
	}
	if len(cb.projects) != 1 {
		t.Errorf("len(projects) = %d, want 1", len(cb.projects))
	}
}

func TestLoad_IndexFile(t *testing.T) {
	tests := []struct {
		name     string
		index    string
		rootOpt  bool
		wantRoot func(dir string) string
	}{
		{
			name:     "conventional .scip directory",
			index:    ".scip/index.scip.zst",
			wantRoot: func(dir string) string { return dir },
		},
		{
			name:     "index beside sources",
			index:    "index.scip",
			wantRoot: func(dir string) string { return dir },
		},
		{
			name:     "explicit root",
			index:    "out/index.scip.gz",
			rootOpt:  true,
			wantRoot: func(dir string) string { return dir },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			compression := testutil.Plain
			switch filepath.Ext(tt.index) {
			case ".zst":
				compression = testutil.Zstd
			case ".gz":
				compression = testutil.Gzip
			}
			path := writeShop(t, dir).Write(t, filepath.Join(dir, filepath.FromSlash(tt.index)), compression)

			opts := DefaultOptions()
			if tt.rootOpt {
				opts.Root = dir
			}
			cb, err := Load(context.Background(), path, opts)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got, want := cb.root, tt.wantRoot(dir); got != want {
				t.Errorf("root = %q, want %q", got, want)
			}
			if _, err := cb.Parse(context.Background(), "src/Invoice.cs"); err != nil && !errors.Is(err, symbols.ErrNoCGO) {
				t.Errorf("Parse() error = %v", err)
			}
		})
	}
}

func TestLoad_ProjectRootFromIndex(t *testing.T) {
	src := t.TempDir()
	b := writeShop(t, src)
	b.Proto().Metadata.ProjectRoot = "file://" + filepath.ToSlash(src)
	path := b.Write(t, filepath.Join(t.TempDir(), "shop.scip"), testutil.Plain)

	cb, err := Load(context.Background(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cb.root != src {
		t.Errorf("root = %q, want %q", cb.root, src)
	}
	if cb.Name() != "shop.scip" {
		t.Errorf("Name() = %q, want shop.scip", cb.Name())
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("hello"))
	testutil.WriteFile(t, filepath.Join(dir, "bad.toml"), []byte("name = "))
	testutil.WriteFile(t, filepath.Join(dir, "broken", "index.scip"), []byte{0xff, 0xff, 0xff})
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
		want  unreferrors.ErrorCode
	}{
		{"missing input", filepath.Join(dir, "missing"), unreferrors.IndexMissing},
		{"directory without index", filepath.Join(dir, "empty"), unreferrors.IndexMissing},
		{"unsupported file", filepath.Join(dir, "notes.txt"), unreferrors.UnsupportedInput},
		{"malformed manifest", filepath.Join(dir, "bad.toml"), unreferrors.ManifestInvalid},
		{"malformed index", filepath.Join(dir, "broken"), unreferrors.IndexInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := Load(context.Background(), tt.input, DefaultOptions())
			if err == nil {
				t.Fatalf("Load() = %v, want error", cb)
			}
			var le *deadcode.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error %T is not *deadcode.LoadError", err)
			}
			if le.Input != tt.input {
				t.Errorf("LoadError.Input = %q, want %q", le.Input, tt.input)
			}
			if got := unreferrors.CodeOf(err); got != tt.want {
				t.Errorf("CodeOf(err) = %v, want %v (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestLoad_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeShop(t, root).Write(t, filepath.Join(root, "index.scip"), testutil.Plain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, root, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoader_NilOnError(t *testing.T) {
	load := Loader(DefaultOptions())
	cb, err := load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("load() error = nil, want error")
	}
	if cb != nil {
		t.Errorf("load() codebase = %#v, want untyped nil", cb)
	}
}

func TestFiles_IncludeExclude(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{
			name:    "include",
			include: []string{"src/P*.cs"},
			want:    []string{"src/Program.cs"},
		},
		{
			name:    "exclude",
			exclude: []string{"**/I*.cs"},
			want:    []string{"src/Program.cs", "src/Unicode.cs"},
		},
		{
			name:    "both",
			include: []string{"src/**"},
			exclude: []string{"src/Unicode.cs"},
			want:    []string{"src/IPrintable.cs", "src/Invoice.cs", "src/Program.cs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Include = tt.include
			opts.Exclude = tt.exclude
			cb := newShop(t, opts)
			if diff := cmp.Diff(tt.want, cb.Files()); diff != "" {
				t.Errorf("Files() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveSymbol(t *testing.T) {
	cb := newShop(t, DefaultOptions())

	tests := []struct {
		name string
		decl deadcode.Declaration
		want deadcode.Symbol
		err  error
	}{
		{
			name: "exact position",
			decl: deadcode.Declaration{Path: "src/Invoice.cs", SimpleName: "Helper", Position: deadcode.Position{Line: 6, Column: 21}},
			want: symHelper,
		},
		{
			name: "same line by name",
			decl: deadcode.Declaration{Path: "src/Invoice.cs", SimpleName: "Print", Position: deadcode.Position{Line: 7, Column: 2}},
			want: symPrint,
		},
		{
			name: "utf-16 document",
			decl: deadcode.Declaration{Path: "src/Unicode.cs", SimpleName: "Größe", Position: deadcode.Position{Line: 1, Column: 17}},
			want: symGroesse,
		},
		{
			name: "nothing declared",
			decl: deadcode.Declaration{Path: "src/Invoice.cs", SimpleName: "Nope", Position: deadcode.Position{Line: 2, Column: 1}},
			err:  deadcode.ErrNoSymbol,
		},
		{
			name: "unknown file",
			decl: deadcode.Declaration{Path: "src/Other.cs", SimpleName: "Helper", Position: deadcode.Position{Line: 6, Column: 21}},
			err:  deadcode.ErrNoDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cb.ResolveSymbol(context.Background(), tt.decl)
			if tt.err != nil {
				var re *deadcode.ResolutionError
				if !errors.As(err, &re) || re.Op != deadcode.OpResolve {
					t.Fatalf("ResolveSymbol() error = %v, want *ResolutionError", err)
				}
				if !errors.Is(err, tt.err) {
					t.Errorf("ResolveSymbol() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSymbol() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveSymbol() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindReferences(t *testing.T) {
	loc := func(path string, line, column int) deadcode.Location {
		return deadcode.Location{Path: path, Position: deadcode.Position{Line: line, Column: column}}
	}

	tests := []struct {
		name    string
		symbol  deadcode.Symbol
		cascade bool
		want    []deadcode.Location
	}{
		{
			name:   "direct references",
			symbol: symValue,
			want:   []deadcode.Location{loc("src/Program.cs", 8, 21)},
		},
		{
			name:   "no references",
			symbol: symHelper,
			want:   nil,
		},
		{
			name:   "implementation without cascade",
			symbol: symPrint,
			want:   nil,
		},
		{
			name:    "implementation with cascade",
			symbol:  symPrint,
			cascade: true,
			want:    []deadcode.Location{loc("src/Program.cs", 10, 15)},
		},
		{
			name:    "interface member with cascade",
			symbol:  symIFacePrint,
			cascade: true,
			want:    []deadcode.Location{loc("src/Program.cs", 10, 15)},
		},
		{
			name:   "utf-16 columns converted to bytes",
			symbol: symGroesse,
			want:   []deadcode.Location{loc("src/Unicode.cs", 2, 15)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Cascade = tt.cascade
			cb := newShop(t, opts)

			got, err := cb.FindReferences(context.Background(), tt.symbol)
			if err != nil {
				t.Fatalf("FindReferences() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindReferences(%q) mismatch (-want +got):\n%s", tt.symbol, diff)
			}
		})
	}
}

func TestFindReferences_LocalSymbolStaysInDocument(t *testing.T) {
	cb := newShop(t, DefaultOptions())
	ctx := context.Background()

	sym, err := cb.ResolveSymbol(ctx, deadcode.Declaration{
		Path:       "src/Program.cs",
		SimpleName: "invoice",
		Position:   deadcode.Position{Line: 7, Column: 17},
	})
	if err != nil {
		t.Fatalf("ResolveSymbol() error = %v", err)
	}
	if sym == "local 0" {
		t.Fatalf("ResolveSymbol() = %q, want a document-scoped key", sym)
	}

	got, err := cb.FindReferences(ctx, sym)
	if err != nil {
		t.Fatalf("FindReferences() error = %v", err)
	}
	want := []deadcode.Location{{Path: "src/Program.cs", Position: deadcode.Position{Line: 8, Column: 13}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindReferences() mismatch (-want +got):\n%s", diff)
	}
}

func TestFindReferences_Cancelled(t *testing.T) {
	cb := newShop(t, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cb.FindReferences(ctx, symValue); !errors.Is(err, context.Canceled) {
		t.Errorf("FindReferences() error = %v, want context.Canceled", err)
	}
}

func TestLineAt(t *testing.T) {
	source := []byte("first\r\nsecond\nthird")

	tests := []struct {
		line int
		want string
	}{
		{0, "first"},
		{1, "second"},
		{2, "third"},
		{3, ""},
	}
	for _, tt := range tests {
		if got := string(lineAt(source, tt.line)); got != tt.want {
			t.Errorf("lineAt(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	line := []byte("a😀é b")

	tests := []struct {
		name    string
		enc     scip.PositionEncoding
		byteCol int
		want    int
	}{
		{"utf-16 after emoji", scip.EncodingUTF16, 5, 3},
		{"utf-16 after accent", scip.EncodingUTF16, 7, 4},
		{"utf-32 after emoji", scip.EncodingUTF32, 5, 2},
		{"utf-32 after accent", scip.EncodingUTF32, 7, 3},
		{"utf-8 unchanged", scip.EncodingUTF8, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toEncoding(line, tt.byteCol, tt.enc)
			if got != tt.want {
				t.Errorf("toEncoding() = %d, want %d", got, tt.want)
			}
			if back := fromEncoding(line, got, tt.enc); back != tt.byteCol {
				t.Errorf("fromEncoding(%d) = %d, want %d", got, back, tt.byteCol)
			}
		})
	}
}
