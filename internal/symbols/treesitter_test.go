//go:build cgo

package symbols

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"unref/internal/deadcode"
)

type declSummary struct {
	Kind   deadcode.Kind
	Name   string
	Line   int
	Column int
}

func enumerate(t *testing.T, path, source string, kinds deadcode.KindSet) []declSummary {
	t.Helper()

	f, err := Parse(context.Background(), path, []byte(source))
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", path, err)
	}

	var out []declSummary
	for d := range f.Declarations(kinds) {
		if d.Path != path {
			t.Errorf("declaration %s has path %q, want %q", d.Name, d.Path, path)
		}
		out = append(out, declSummary{Kind: d.Kind, Name: d.Name, Line: d.Position.Line, Column: d.Position.Column})
	}
	return out
}

var all = deadcode.NewKindSet(deadcode.AllKinds...)

const csharpSource = `namespace Shop.Billing
{
    public class Invoice
    {
        private int total, count;
        public event EventHandler Paid;
        public Invoice() { }
        public decimal Value { get; set; }
        public void Helper() { }
        private class Line
        {
            public void Print() { }
        }
    }
}
`

func TestDeclarations_CSharp(t *testing.T) {
	got := enumerate(t, "src/Invoice.cs", csharpSource, all)
	want := []declSummary{
		{deadcode.KindType, "Shop.Billing.Invoice", 3, 18},
		{deadcode.KindField, "Shop.Billing.Invoice.total", 5, 21},
		{deadcode.KindField, "Shop.Billing.Invoice.count", 5, 28},
		{deadcode.KindEvent, "Shop.Billing.Invoice.Paid", 6, 35},
		{deadcode.KindConstructor, "Shop.Billing.Invoice.Invoice", 7, 16},
		{deadcode.KindProperty, "Shop.Billing.Invoice.Value", 8, 24},
		{deadcode.KindMethod, "Shop.Billing.Invoice.Helper", 9, 21},
		{deadcode.KindType, "Shop.Billing.Invoice.Line", 10, 23},
		{deadcode.KindMethod, "Shop.Billing.Invoice.Line.Print", 12, 25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_CSharpDefaultKinds(t *testing.T) {
	got := enumerate(t, "src/Invoice.cs", csharpSource, deadcode.DefaultKinds())
	want := []declSummary{
		{deadcode.KindProperty, "Shop.Billing.Invoice.Value", 8, 24},
		{deadcode.KindMethod, "Shop.Billing.Invoice.Helper", 9, 21},
		{deadcode.KindMethod, "Shop.Billing.Invoice.Line.Print", 12, 25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_CSharpIndexersAndOperators(t *testing.T) {
	source := `namespace Shop
{
    public struct Money
    {
        public int this[int i] => i;
        public static Money operator +(Money a, Money b) => a;
        public static Money operator -(Money a) => a;
        public static implicit operator decimal(Money m) => 0;
    }
}
`
	tests := []struct {
		name  string
		kinds deadcode.KindSet
		want  []declSummary
	}{
		{
			name:  "all kinds",
			kinds: all,
			want: []declSummary{
				{deadcode.KindType, "Shop.Money", 3, 19},
				{deadcode.KindProperty, "Shop.Money.this", 5, 20},
				{deadcode.KindMethod, "Shop.Money.operator+", 6, 38},
				{deadcode.KindMethod, "Shop.Money.operator-", 7, 38},
				{deadcode.KindMethod, "Shop.Money.operator decimal", 8, 41},
			},
		},
		{
			name:  "properties only",
			kinds: deadcode.NewKindSet(deadcode.KindProperty),
			want: []declSummary{
				{deadcode.KindProperty, "Shop.Money.this", 5, 20},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enumerate(t, "src/Money.cs", source, tt.kinds)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeclarations_CSharpFileScopedNamespace(t *testing.T) {
	source := `namespace Shop.Api;

public class Controller
{
    public void Get() { }
}
`
	got := enumerate(t, "Controller.cs", source, deadcode.DefaultKinds())
	want := []declSummary{
		{deadcode.KindMethod, "Shop.Api.Controller.Get", 5, 17},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_Go(t *testing.T) {
	source := `package shop

type Cart struct {
	Items []string
	a, b  int
}

func (c *Cart) Total() int { return 0 }

func New() *Cart { return nil }
`
	got := enumerate(t, "shop/cart.go", source, all)
	want := []declSummary{
		{deadcode.KindType, "shop.Cart", 3, 6},
		{deadcode.KindField, "shop.Cart.Items", 4, 2},
		{deadcode.KindField, "shop.Cart.a", 5, 2},
		{deadcode.KindField, "shop.Cart.b", 5, 5},
		{deadcode.KindMethod, "shop.Cart.Total", 8, 16},
		{deadcode.KindFunction, "shop.New", 10, 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_Java(t *testing.T) {
	source := `package shop;

public class Order {
    private int id, qty;

    public Order() {}

    public void ship() {}
}
`
	got := enumerate(t, "Order.java", source, all)
	want := []declSummary{
		{deadcode.KindType, "shop.Order", 3, 14},
		{deadcode.KindField, "shop.Order.id", 4, 17},
		{deadcode.KindField, "shop.Order.qty", 4, 21},
		{deadcode.KindConstructor, "shop.Order.Order", 6, 12},
		{deadcode.KindMethod, "shop.Order.ship", 8, 17},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_TypeScript(t *testing.T) {
	source := `export class Store {
  private count = 0;
  constructor() {}
  get size(): number { return 0; }
  load(): void {}
}

export function create(): Store { return new Store(); }
`
	got := enumerate(t, "src/store.ts", source, all)
	want := []declSummary{
		{deadcode.KindType, "Store", 1, 14},
		{deadcode.KindProperty, "Store.count", 2, 11},
		{deadcode.KindConstructor, "Store.constructor", 3, 3},
		{deadcode.KindProperty, "Store.size", 4, 7},
		{deadcode.KindMethod, "Store.load", 5, 3},
		{deadcode.KindFunction, "create", 8, 17},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_Python(t *testing.T) {
	source := `class Account:
    def __init__(self):
        pass

    @property
    def balance(self):
        return 0

    def deposit(self, amount):
        def inner():
            pass
        return inner


def helper():
    pass
`
	got := enumerate(t, "bank/account.py", source, all)
	want := []declSummary{
		{deadcode.KindType, "Account", 1, 7},
		{deadcode.KindConstructor, "Account.__init__", 2, 9},
		{deadcode.KindProperty, "Account.balance", 6, 9},
		{deadcode.KindMethod, "Account.deposit", 9, 9},
		{deadcode.KindFunction, "Account.deposit.inner", 10, 13},
		{deadcode.KindFunction, "helper", 15, 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarations_StopsEarly(t *testing.T) {
	f, err := Parse(context.Background(), "src/Invoice.cs", []byte(csharpSource))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var seen int
	for range f.Declarations(all) {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("seen = %d, want 1", seen)
	}
}

func TestDeclarations_Repeatable(t *testing.T) {
	f, err := Parse(context.Background(), "src/Invoice.cs", []byte(csharpSource))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var first, second []deadcode.Declaration
	for d := range f.Declarations(all) {
		first = append(first, d)
	}
	for d := range f.Declarations(all) {
		second = append(second, d)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second enumeration differs (-first +second):\n%s", diff)
	}
}

func TestParse_SyntaxErrorsTolerated(t *testing.T) {
	source := `class A
{
    void Good() { }
    void Broken( { }
}
`
	f, err := Parse(context.Background(), "A.cs", []byte(source))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !f.HasErrors() {
		t.Errorf("HasErrors() = false, want true")
	}

	var names []string
	for d := range f.Declarations(deadcode.DefaultKinds()) {
		names = append(names, d.Name)
	}
	found := false
	for _, n := range names {
		if n == "A.Good" {
			found = true
		}
	}
	if !found {
		t.Errorf("declarations = %v, want A.Good among them", names)
	}
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	_, err := Parse(context.Background(), "script.rb", []byte("def x; end"))
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("Parse(script.rb) error = %v, want ErrUnsupportedLanguage", err)
	}
}
