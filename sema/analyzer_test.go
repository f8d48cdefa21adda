package sema

import (
	"testing"

	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/lexer"
	"github.com/dr8co/hammer/parser"
	"github.com/dr8co/hammer/strtable"
)

func analyzeSrc(t *testing.T, src string) (*ast.Module, *Table) {
	t.Helper()
	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	strs := strtable.New()
	return mod, Analyze(mod, strs)
}

func TestResolveLocal(t *testing.T) {
	mod, tab := analyzeSrc(t, `
func main() {
    var x = 1;
    x + 1
}
`)
	fn := mod.Items[0].(*ast.FuncItem)
	block := fn.Body
	tail := block.Tail.(*ast.InfixExpr)
	ident := tail.Left.(*ast.Identifier)

	sym, ok := tab.SymbolFor(ident.ID())
	if !ok {
		t.Fatalf("expected identifier %q to resolve to a symbol", ident.Value)
	}
	if sym.Kind != SymLocal {
		t.Fatalf("expected Local symbol, got %s", sym.Kind)
	}
	if sym.Captured {
		t.Fatalf("expected non-captured local")
	}
}

func TestParameterResolution(t *testing.T) {
	mod, tab := analyzeSrc(t, `
func add(a, b) {
    a + b
}
`)
	fn := mod.Items[0].(*ast.FuncItem)
	tail := fn.Body.Tail.(*ast.InfixExpr)
	a := tail.Left.(*ast.Identifier)

	sym, ok := tab.SymbolFor(a.ID())
	if !ok || sym.Kind != SymParameter {
		t.Fatalf("expected %q to resolve to a Parameter symbol", a.Value)
	}
}

func TestClosureCapture(t *testing.T) {
	_, tab := analyzeSrc(t, `
func outer() {
    var x = 1;
    func() {
        x
    }
}
`)
	var found *Symbol
	for i := range tab.Symbols {
		if tab.Strings.Value(tab.Symbols[i].Name) == "x" {
			found = &tab.Symbols[i]
		}
	}
	if found == nil {
		t.Fatalf("expected a symbol named x")
	}
	if !found.Captured {
		t.Fatalf("expected x to be captured by the nested closure")
	}
}

func TestImplicitGlobal(t *testing.T) {
	mod, tab := analyzeSrc(t, `
func main() {
    print("hi")
}
`)
	fn := mod.Items[0].(*ast.FuncItem)
	call := fn.Body.Tail.(*ast.CallExpr)
	callee := call.Callee.(*ast.Identifier)

	sym, ok := tab.SymbolFor(callee.ID())
	if !ok || sym.Kind != SymGlobal {
		t.Fatalf("expected %q to resolve as an implicit Global, got %v", callee.Value, sym)
	}
}

func TestFunctionHoisting(t *testing.T) {
	_, tab := analyzeSrc(t, `
func a() {
    b()
}
func b() {
    1
}
`)
	if tab.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", tab.Diagnostics.Messages())
	}
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	_, tab := analyzeSrc(t, `
func main() {
    break;
}
`)
	if !tab.Diagnostics.HasErrors() {
		t.Fatalf("expected a diagnostic for break outside a loop")
	}
}

func TestBreakInsideLoopIsFine(t *testing.T) {
	_, tab := analyzeSrc(t, `
func main() {
    while (true) {
        break;
    }
}
`)
	if tab.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", tab.Diagnostics.Messages())
	}
}
