package irbuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/lexer"
	"github.com/dr8co/hammer/parser"
	"github.com/dr8co/hammer/sema"
	"github.com/dr8co/hammer/strtable"
)

func build(t *testing.T, src string) (*ir.Module, *Builder) {
	t.Helper()
	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	require.Empty(t, p.Errors())
	strs := strtable.New()
	tab := sema.Analyze(mod, strs)
	require.False(t, tab.Diagnostics.HasErrors())
	return Build(mod, tab, strs)
}

func funcByName(mod *ir.Module, name string) *ir.Function {
	for _, m := range mod.Members {
		if m.Name == name && m.Function != nil {
			return m.Function
		}
	}
	return nil
}

func TestConstantFoldingInTailExpression(t *testing.T) {
	mod, b := build(t, `func main() { 1 + 2 }`)
	require.False(t, b.Diagnostics.HasErrors())

	fn := funcByName(mod, "main")
	require.NotNil(t, fn)

	entry := fn.Block(fn.Entry)
	ret, ok := entry.Terminator.(ir.Return)
	require.True(t, ok)
	c, ok := fn.Inst(ret.Value).Value.(ir.Constant)
	require.True(t, ok)
	require.Equal(t, ir.ConstInt, c.Kind)
	require.EqualValues(t, 3, c.Int)
}

func TestIfElseProducesPhi(t *testing.T) {
	mod, b := build(t, `
func choose(flag) {
    if (flag) { 1 } else { 2 }
}
`)
	require.False(t, b.Diagnostics.HasErrors())
	fn := funcByName(mod, "choose")
	require.NotNil(t, fn)

	var sawPhi bool
	for _, blk := range fn.Blocks() {
		for _, id := range blk.Insts {
			if _, ok := fn.Inst(id).Value.(*ir.Phi); ok {
				sawPhi = true
			}
		}
	}
	require.True(t, sawPhi, "if/else with two value-producing arms should join through a phi")
}

func TestWhileLoopWithBreakWiresExitPredecessors(t *testing.T) {
	mod, b := build(t, `
func loop() {
    var i = 0
    while (true) {
        if (i == 3) {
            break
        }
        i = i + 1
    }
    i
}
`)
	require.False(t, b.Diagnostics.HasErrors())
	fn := funcByName(mod, "loop")
	require.NotNil(t, fn)

	var exitBlocks int
	for _, blk := range fn.Blocks() {
		if blk.Label == "while.exit" {
			exitBlocks++
			require.NotEmpty(t, blk.Predecessors, "loop exit must have at least the break and the false condition edge")
		}
	}
	require.Equal(t, 1, exitBlocks)
}

func TestClosureCaptureAllocatesEnvironmentSlot(t *testing.T) {
	mod, b := build(t, `
func outer() {
    var x = 10
    func inner() {
        x
    }
    inner
}
`)
	require.False(t, b.Diagnostics.HasErrors())
	fn := funcByName(mod, "outer")
	require.NotNil(t, fn)

	var sawMakeEnv, sawMakeClosure bool
	for _, blk := range fn.Blocks() {
		for _, id := range blk.Insts {
			switch fn.Inst(id).Value.(type) {
			case ir.MakeEnvironment:
				sawMakeEnv = true
			case ir.MakeClosure:
				sawMakeClosure = true
			}
		}
	}
	require.True(t, sawMakeEnv, "capturing x must allocate outer's own environment")
	require.True(t, sawMakeClosure, "building the inner literal must produce a closure value")

	inner := funcByName(mod, "outer$1")
	require.NotNil(t, inner)
	var sawClosureLoad bool
	for _, blk := range inner.Blocks() {
		for _, id := range blk.Insts {
			if u, ok := inner.Inst(id).Value.(ir.UseLValue); ok {
				if _, ok := u.LValue.(ir.LValueClosure); ok {
					sawClosureLoad = true
				}
			}
		}
	}
	require.True(t, sawClosureLoad, "reading a captured outer local must load it from the closure environment")
}

func TestPlainStringWithNoHolesFoldsDirectly(t *testing.T) {
	mod, b := build(t, `func greet() { "hello, world" }`)
	require.False(t, b.Diagnostics.HasErrors())
	fn := funcByName(mod, "greet")
	require.NotNil(t, fn)

	entry := fn.Block(fn.Entry)
	ret := entry.Terminator.(ir.Return)
	c, ok := fn.Inst(ret.Value).Value.(ir.Constant)
	require.True(t, ok)
	require.Equal(t, ir.ConstString, c.Kind)
	require.Equal(t, "hello, world", c.Str)
}

func TestInterpolatedStringBuildsFormatString(t *testing.T) {
	mod, b := build(t, `func greet(name) { "hello, ${name}!" }`)
	require.False(t, b.Diagnostics.HasErrors())
	fn := funcByName(mod, "greet")
	require.NotNil(t, fn)

	entry := fn.Block(fn.Entry)
	ret := entry.Terminator.(ir.Return)
	fs, ok := fn.Inst(ret.Value).Value.(ir.FormatString)
	require.True(t, ok)
	require.Len(t, fs.Parts, 3)

	first, ok := fn.Inst(fs.Parts[0]).Value.(ir.Constant)
	require.True(t, ok)
	require.Equal(t, "hello, ", first.Str)

	last, ok := fn.Inst(fs.Parts[2]).Value.(ir.Constant)
	require.True(t, ok)
	require.Equal(t, "!", last.Str)
}

func TestModuleInitializerAlwaysBuilt(t *testing.T) {
	mod, b := build(t, `func main() { 0 }`)
	require.False(t, b.Diagnostics.HasErrors())
	init := funcByName(mod, initMemberName)
	require.NotNil(t, init, "$init must exist even with no top-level vars")
}

func TestRecordLiteralFieldOrderIsCanonical(t *testing.T) {
	mod, b := build(t, `
func a() { record { y: 1, x: 2 } }
func b() { record { x: 3, y: 4 } }
`)
	require.False(t, b.Diagnostics.HasErrors())

	var templates []ir.RecordID
	for _, name := range []string{"a", "b"} {
		fn := funcByName(mod, name)
		require.NotNil(t, fn)
		entry := fn.Block(fn.Entry)
		ret := entry.Terminator.(ir.Return)
		mr, ok := fn.Inst(ret.Value).Value.(ir.MakeRecord)
		require.True(t, ok)
		templates = append(templates, mr.Template)
	}
	require.Equal(t, templates[0], templates[1], "record literals naming the same fields in different orders must share one template")
}
