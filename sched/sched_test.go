package sched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/handle"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/interp"
	"github.com/dr8co/hammer/vmvalue"
)

func newScheduler() *Scheduler {
	m := interp.New(heap.New(nil), handle.NewStack(), nil)
	return New(m, nil)
}

func constFunction(n int64) *vmvalue.Function {
	code := append(bytecode.Make(bytecode.LoadInt, n), bytecode.Make(bytecode.Return)...)
	tmpl := vmvalue.NewFunctionTemplate("const", 0, 0, vmvalue.TemplateNormal, vmvalue.NewCode(code, nil))
	tmpl.Module = vmvalue.NewModule("test", 0)
	return vmvalue.NewFunction(tmpl, nil)
}

func TestRunReadyReturnsFalseWhenQueueEmpty(t *testing.T) {
	s := newScheduler()
	_, _, ok := s.RunReady()
	require.False(t, ok)
}

func TestSpawnEnqueuesAndRunReadyCompletesIt(t *testing.T) {
	s := newScheduler()
	co, err := s.Spawn("one", constFunction(41), nil)
	require.NoError(t, err)
	require.True(t, s.HasReady())

	ran, outcome, ok := s.RunReady()
	require.True(t, ok)
	require.Same(t, co, ran)
	require.Equal(t, interp.OutcomeReturned, outcome)
	require.Equal(t, int64(41), co.Result.SmallInt())
	require.False(t, s.HasReady())
}

func TestReadyQueueIsFIFO(t *testing.T) {
	s := newScheduler()
	a, err := s.Spawn("a", constFunction(1), nil)
	require.NoError(t, err)
	b, err := s.Spawn("b", constFunction(2), nil)
	require.NoError(t, err)

	ran, _, ok := s.RunReady()
	require.True(t, ok)
	require.Same(t, a, ran)

	ran, _, ok = s.RunReady()
	require.True(t, ok)
	require.Same(t, b, ran)
}

func TestDrainRunsUntilQueueEmpty(t *testing.T) {
	s := newScheduler()
	_, err := s.Spawn("a", constFunction(1), nil)
	require.NoError(t, err)
	_, err = s.Spawn("b", constFunction(2), nil)
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))
	require.False(t, s.HasReady())
}

func TestDrainStopsOnCanceledContext(t *testing.T) {
	s := newScheduler()
	_, err := s.Spawn("a", constFunction(1), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Drain(ctx))
}

func TestWrapResumeFiresOnceAndRejectsSecondFire(t *testing.T) {
	var got vmvalue.Value
	_, fire := WrapResume(func(v vmvalue.Value, err error) { got = v })

	require.NoError(t, fire(vmvalue.NewSmallInt(9), nil))
	require.Equal(t, int64(9), got.SmallInt())

	require.Error(t, fire(vmvalue.NewSmallInt(10), nil))
}

// asyncFunction returns a caller function that calls a NativeAsyncFunction
// whose fire-once resume closure (wrapped via WrapResume) is stashed into
// *capturedFire for the test to invoke later, at its own pace.
func asyncFunction(capturedFire *func(vmvalue.Value, error) error) *vmvalue.Function {
	native := vmvalue.NewNativeAsyncFunction("wait", func(args []vmvalue.Value, resume func(vmvalue.Value, error)) {
		_, fire := WrapResume(resume)
		*capturedFire = fire
	})
	mod := vmvalue.NewModule("test", 1)
	mod.Members[0] = vmvalue.FromObject(native)

	var code []byte
	code = append(code, bytecode.Make(bytecode.LoadConst, 0)...)
	code = append(code, bytecode.Make(bytecode.Call, 0)...)
	code = append(code, bytecode.Make(bytecode.Return)...)
	tmpl := vmvalue.NewFunctionTemplate("caller", 0, 0, vmvalue.TemplateNormal, vmvalue.NewCode(code, nil))
	tmpl.Module = mod
	return vmvalue.NewFunction(tmpl, nil)
}

func TestSpawnSuspendsOnNativeAsyncAndResumesOnFire(t *testing.T) {
	s := newScheduler()
	var fire func(vmvalue.Value, error) error
	co, err := s.Spawn("waiter", asyncFunction(&fire), nil)
	require.NoError(t, err)

	_, outcome, ok := s.RunReady()
	require.True(t, ok)
	require.Equal(t, interp.OutcomeSuspended, outcome)
	require.Equal(t, vmvalue.CoroutineWaiting, co.State)
	require.False(t, s.HasReady())

	require.NoError(t, fire(vmvalue.NewSmallInt(7), nil))
	require.Equal(t, vmvalue.CoroutineReady, co.State)

	s.Enqueue(co)
	ran, outcome, ok := s.RunReady()
	require.True(t, ok)
	require.Same(t, co, ran)
	require.Equal(t, interp.OutcomeReturned, outcome)
	require.Equal(t, int64(7), co.Result.SmallInt())
}
