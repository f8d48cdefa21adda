package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/irpass"
	"github.com/dr8co/hammer/regalloc"
	"github.com/dr8co/hammer/strtable"
)

func pipeline(fn *ir.Function) {
	irpass.SplitCriticalEdges(fn)
	irpass.ConstructCSSA(fn)
	irpass.EliminateDeadCode(fn)
}

func TestEmitFunctionArithmeticRoundTripsThroughDisassembly(t *testing.T) {
	fn := ir.NewFunction(1, "f", 0)
	entry := fn.NewBlock("entry")
	fn.Entry = entry

	a := fn.NewInst(ir.Constant{Kind: ir.ConstInt, Int: 2})
	b := fn.NewInst(ir.Constant{Kind: ir.ConstInt, Int: 3})
	sum := fn.NewInst(ir.BinaryOp{Op: ir.BinAdd, LHS: a, RHS: b})
	fn.Block(entry).Insts = []ir.InstID{a, b, sum}
	fn.Block(entry).Terminator = ir.Return{Value: sum}

	pipeline(fn)
	alloc := regalloc.Allocate(fn)
	strs := strtable.New()

	out, err := EmitFunction(fn, alloc, strs)
	require.NoError(t, err)
	dis := bytecode.Instructions(out.Code).String()
	require.Contains(t, dis, "LoadInt")
	require.Contains(t, dis, "Add")
	require.Contains(t, dis, "Return")
	require.True(t, out.NumRegisters >= 1)
}

func TestEmitFunctionBranchPatchesJumpTargets(t *testing.T) {
	fn := ir.NewFunction(1, "f", 1)
	entry := fn.NewBlock("entry")
	thenB := fn.NewBlock("then")
	joinB := fn.NewBlock("join")
	fn.Entry = entry

	cond := fn.NewInst(ir.ParamRead{Param: fn.Params[0]})
	fn.Block(entry).Insts = []ir.InstID{cond}
	fn.Block(entry).Terminator = ir.Branch{Cond: cond, IfTrue: thenB, IfFalse: joinB}
	fn.Block(thenB).Predecessors = []ir.BlockID{entry}

	one := fn.NewInst(ir.Constant{Kind: ir.ConstInt, Int: 1})
	fn.Block(thenB).Insts = []ir.InstID{one}
	fn.Block(thenB).Terminator = ir.Jump{Target: joinB}

	fn.Block(joinB).Predecessors = []ir.BlockID{entry, thenB}
	fn.Block(joinB).Terminator = ir.Return{}

	pipeline(fn)
	alloc := regalloc.Allocate(fn)
	strs := strtable.New()

	out, err := EmitFunction(fn, alloc, strs)
	require.NoError(t, err)

	dis := bytecode.Instructions(out.Code).String()
	require.Contains(t, dis, "JmpFalsePop")
	require.Contains(t, dis, "Jmp ")
	require.NotContains(t, dis, "ERROR", "every fixup must have resolved to a real block offset")
}

func TestEmitFunctionInternsStringConstants(t *testing.T) {
	fn := ir.NewFunction(1, "f", 0)
	entry := fn.NewBlock("entry")
	fn.Entry = entry

	s := fn.NewInst(ir.Constant{Kind: ir.ConstString, Str: "hello"})
	fn.Block(entry).Insts = []ir.InstID{s}
	fn.Block(entry).Terminator = ir.Return{Value: s}

	pipeline(fn)
	alloc := regalloc.Allocate(fn)
	strs := strtable.New()

	_, err := EmitFunction(fn, alloc, strs)
	require.NoError(t, err)

	h, ok := strs.Lookup("hello")
	require.True(t, ok)
	require.Equal(t, "hello", strs.Value(h))
}
