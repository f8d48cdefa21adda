package interp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/handle"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/vmvalue"
)

func newMachine() *Machine {
	return New(heap.New(nil), handle.NewStack(), nil)
}

// run builds a one-frame coroutine for fn and runs it to completion.
func run(t *testing.T, m *Machine, fn *vmvalue.Function) (*vmvalue.Coroutine, Outcome, error) {
	t.Helper()
	co := vmvalue.NewCoroutine("test", fn)
	require.NoError(t, m.call(co, vmvalue.FromObject(fn), nil))
	outcome, err := m.Run(co)
	return co, outcome, err
}

func module(members ...vmvalue.Value) *vmvalue.Module {
	mod := vmvalue.NewModule("test", len(members))
	copy(mod.Members, members)
	return mod
}

func closureOf(code []byte, numRegisters int, mod *vmvalue.Module) *vmvalue.Function {
	tmpl := vmvalue.NewFunctionTemplate("test", 0, numRegisters, vmvalue.TemplateNormal, vmvalue.NewCode(code, nil))
	tmpl.Module = mod
	return vmvalue.NewFunction(tmpl, nil)
}

func TestRunReturnsImmediateConstant(t *testing.T) {
	code := append(bytecode.Make(bytecode.LoadInt, 42), bytecode.Make(bytecode.Return)...)
	m := newMachine()
	co, outcome, err := run(t, m, closureOf(code, 0, module()))
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(42), co.Result.SmallInt())
}

func TestRunAddsTwoIntegers(t *testing.T) {
	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadInt, 2)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, 3)...)
	code = append(code, bytecode.Make(bytecode.Add)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	co, outcome, err := run(t, m, closureOf(code, 0, module()))
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(5), co.Result.SmallInt())
}

const bigFactor = 1<<31 - 1

func TestRunPromotesOverflowingMultiplyToInteger(t *testing.T) {
	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadInt, bigFactor)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, bigFactor)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, bigFactor)...)
	code = append(code, bytecode.Make(bytecode.Mul)...)
	code = append(code, bytecode.Make(bytecode.Mul)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	co, outcome, err := run(t, m, closureOf(code, 0, module()))
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, vmvalue.KindInteger, co.Result.Kind())

	want := new(big.Int).Mul(big.NewInt(bigFactor), big.NewInt(bigFactor))
	want.Mul(want, big.NewInt(bigFactor))
	require.Equal(t, want.String(), co.Result.Object().(*vmvalue.Integer).Value.String())
}

func TestRunDivisionByZeroPanics(t *testing.T) {
	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadInt, 1)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, 0)...)
	code = append(code, bytecode.Make(bytecode.Div)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	_, outcome, err := run(t, m, closureOf(code, 0, module()))
	require.Equal(t, OutcomePanicked, outcome)
	var p *Panic
	require.ErrorAs(t, err, &p)
}

func TestRunUnwindsToHandlerRange(t *testing.T) {
	// LoadInt 1; LoadInt 0; Div (panics); [handler target] Pop; LoadInt 9; Return
	prelude := append(bytecode.Make(bytecode.LoadInt, 1), bytecode.Make(bytecode.LoadInt, 0)...)
	prelude = append(prelude, bytecode.Make(bytecode.Div)...)
	target := len(prelude)
	handlerBody := append(bytecode.Make(bytecode.Pop), bytecode.Make(bytecode.LoadInt, 9)...)
	handlerBody = append(handlerBody, bytecode.Make(bytecode.Return)...)
	code := append(prelude, handlerBody...)

	// HandlerFor is consulted against the post-advance PC (step moves f.PC
	// past the faulting instruction before exec runs), so the protected
	// range must extend one byte beyond the last protected instruction.
	tmpl := vmvalue.NewFunctionTemplate("test", 0, 0, vmvalue.TemplateNormal,
		vmvalue.NewCode(code, []vmvalue.HandlerRange{{Start: 0, End: target + 1, Target: target}}))
	tmpl.Module = module()
	fn := vmvalue.NewFunction(tmpl, nil)

	m := newMachine()
	co, outcome, err := run(t, m, fn)
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(9), co.Result.SmallInt())
}

func TestRunCallsUserFunctionAndUsesReturnValue(t *testing.T) {
	calleeCode := append(bytecode.Make(bytecode.LoadInt, 7), bytecode.Make(bytecode.Return)...)
	calleeTmpl := vmvalue.NewFunctionTemplate("callee", 0, 0, vmvalue.TemplateNormal, vmvalue.NewCode(calleeCode, nil))
	mod := module()
	calleeTmpl.Module = mod
	callee := vmvalue.NewFunction(calleeTmpl, nil)
	mod.Members[0] = vmvalue.FromObject(callee)

	var callerCode []byte
	callerCode = append(callerCode, bytecode.Make(bytecode.LoadConst, 0)...)
	callerCode = append(callerCode, bytecode.Make(bytecode.Call, 0)...)
	callerCode = append(callerCode, bytecode.Make(bytecode.Return)...)
	caller := closureOf(callerCode, 0, mod)

	m := newMachine()
	co, outcome, err := run(t, m, caller)
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(7), co.Result.SmallInt())
}

func TestRunCallsNativeFunctionSynchronously(t *testing.T) {
	native := vmvalue.NewNativeFunction("double", func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.NewSmallInt(args[0].SmallInt() * 2), nil
	})
	mod := module(vmvalue.FromObject(native))

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, 21)...)
	code = append(code, bytecode.Make(bytecode.Call, 1)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	co, outcome, err := run(t, m, closureOf(code, 0, mod))
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(42), co.Result.SmallInt())
}

func TestRunSuspendsOnNativeAsyncCall(t *testing.T) {
	var resume func(vmvalue.Value, error)
	async := vmvalue.NewNativeAsyncFunction("fetch", func(args []vmvalue.Value, cb func(vmvalue.Value, error)) {
		resume = func(v vmvalue.Value, err error) { cb(v, err) }
	})
	mod := module(vmvalue.FromObject(async))

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.Call, 0)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	co := vmvalue.NewCoroutine("test", nil)
	fn := closureOf(code, 0, mod)
	require.NoError(t, m.call(co, vmvalue.FromObject(fn), nil))

	outcome, err := m.Run(co)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuspended, outcome)
	require.Equal(t, vmvalue.CoroutineWaiting, co.State)

	resume(vmvalue.NewSmallInt(5), nil)
	require.Equal(t, vmvalue.CoroutineReady, co.State)

	outcome, err = m.Run(co)
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(5), co.Result.SmallInt())
}

func TestRunLoadFieldReadsImportedModuleMemberByName(t *testing.T) {
	imported := vmvalue.NewModule("other", 1)
	imported.Members[0] = vmvalue.NewSmallInt(99)
	imported.MemberNames["answer"] = 0

	mod := module(vmvalue.FromObject(imported), vmvalue.FromObject(vmvalue.NewString("answer")))

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.LoadField, 1)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	co, outcome, err := run(t, m, closureOf(code, 0, mod))
	require.NoError(t, err)
	require.Equal(t, OutcomeReturned, outcome)
	require.Equal(t, int64(99), co.Result.SmallInt())
}

func TestRunLoadFieldOnModuleMissingMemberPanics(t *testing.T) {
	imported := vmvalue.NewModule("other", 0)
	mod := module(vmvalue.FromObject(imported), vmvalue.FromObject(vmvalue.NewString("missing")))

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.LoadField, 1)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	_, outcome, err := run(t, m, closureOf(code, 0, mod))
	require.Equal(t, OutcomePanicked, outcome)
	var p *Panic
	require.ErrorAs(t, err, &p)
}

func TestRunArrayIndexOutOfRangePanics(t *testing.T) {
	arr := vmvalue.NewArray()
	arr.Push(vmvalue.NewSmallInt(1))
	mod := module(vmvalue.FromObject(arr))

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.LoadInt, 5)...)
	code = append(code, bytecode.Make(bytecode.LoadIndex)...)
	code = append(code, bytecode.Make(bytecode.Return)...)

	m := newMachine()
	_, outcome, err := run(t, m, closureOf(code, 0, mod))
	require.Equal(t, OutcomePanicked, outcome)
	var p *Panic
	require.ErrorAs(t, err, &p)
}
