package hammer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/vmvalue"
)

func drainInit(t *testing.T, ctx *Context, mod *vmvalue.Module) {
	t.Helper()
	for !mod.Initialized {
		_, _, ok := ctx.Sched.RunReady()
		require.True(t, ok, "ready queue emptied before module finished initializing")
	}
}

func TestCompileAndInvokeAddsTwoLiterals(t *testing.T) {
	ctx := NewContext(nil, nil)
	mod, err := Compile(ctx, "arith", `export func f() { return 1 + 2; }`)
	require.NoError(t, err)
	drainInit(t, ctx, mod)

	fn, err := Lookup(mod, "f")
	require.NoError(t, err)

	result, err := Invoke(ctx, "f", fn, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), result.SmallInt())
}

func TestCompileAndInvokeSumsLoopAccumulator(t *testing.T) {
	ctx := NewContext(nil, nil)
	src := `export func g(n) { var s = 0; for (var i = 0; i < n; i = i + 1) { s = s + i; }; return s; }`
	mod, err := Compile(ctx, "loopy", src)
	require.NoError(t, err)
	drainInit(t, ctx, mod)

	fn, err := Lookup(mod, "g")
	require.NoError(t, err)

	result, err := Invoke(ctx, "g", fn, []vmvalue.Value{vmvalue.NewSmallInt(10)})
	require.NoError(t, err)
	require.Equal(t, int64(45), result.SmallInt())
}

func TestCompileAndInvokeClosesOverLocal(t *testing.T) {
	ctx := NewContext(nil, nil)
	src := `export func h() { const c = { var x = 0; func() { x = x + 1; return x; }; }; return c() + c() + c(); }`
	mod, err := Compile(ctx, "closures", src)
	require.NoError(t, err)
	drainInit(t, ctx, mod)

	fn, err := Lookup(mod, "h")
	require.NoError(t, err)

	result, err := Invoke(ctx, "h", fn, nil)
	require.NoError(t, err)
	require.Equal(t, int64(6), result.SmallInt())
}

func TestCompileFoldsAdjacentStringLiterals(t *testing.T) {
	ctx := NewContext(nil, nil)
	mod, err := Compile(ctx, "strings", `export func p() { return "Hello " + "World"; }`)
	require.NoError(t, err)
	drainInit(t, ctx, mod)

	fn, err := Lookup(mod, "p")
	require.NoError(t, err)

	result, err := Invoke(ctx, "p", fn, nil)
	require.NoError(t, err)
	require.Equal(t, "Hello World", result.Object().(*vmvalue.String).Value)
}

func TestCompileReportsParseErrors(t *testing.T) {
	ctx := NewContext(nil, nil)
	_, err := Compile(ctx, "broken", `export func f( { return; }`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "parse", ce.Stage)
}

func TestInvokeReturnsPanicAsError(t *testing.T) {
	ctx := NewContext(nil, nil)
	mod, err := Compile(ctx, "oob", `export func r() { return [1,2,3][5]; }`)
	require.NoError(t, err)
	drainInit(t, ctx, mod)

	fn, err := Lookup(mod, "r")
	require.NoError(t, err)

	_, err = Invoke(ctx, "r", fn, nil)
	require.Error(t, err)
}

func TestCompileLinksImportedModuleByName(t *testing.T) {
	ctx := NewContext(nil, nil)
	base, err := Compile(ctx, "base", `export func seven() { return 7; }`)
	require.NoError(t, err)
	drainInit(t, ctx, base)

	dependent, err := Compile(ctx, "dependent", `import base; export func useIt() { return base.seven(); }`)
	require.NoError(t, err)
	drainInit(t, ctx, dependent)

	fn, err := Lookup(dependent, "useIt")
	require.NoError(t, err)

	result, err := Invoke(ctx, "useIt", fn, nil)
	require.NoError(t, err)
	require.Equal(t, int64(7), result.SmallInt())
}
