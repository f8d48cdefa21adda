package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/vmvalue"
)

type fixedRoots struct {
	values []vmvalue.Value
}

func (r fixedRoots) WalkRoots(fn func(vmvalue.Value)) {
	for _, v := range r.values {
		fn(v)
	}
}

func TestCollectFreesUnreachableObjects(t *testing.T) {
	h := New(nil)
	reachable := h.Allocate(vmvalue.NewString("kept"))
	h.Allocate(vmvalue.NewString("garbage"))

	h.Collect(fixedRoots{values: []vmvalue.Value{reachable}})

	collections, _ := h.Stats()
	require.Equal(t, 1, collections)
	require.Len(t, h.objects, 1)
	require.Equal(t, "kept", h.objects[0].(*vmvalue.String).Value)
}

func TestCollectRunsNativeObjectFinalizerOnSweep(t *testing.T) {
	h := New(nil)
	finalized := false
	h.Allocate(vmvalue.NewNativeObject(nil, func(any) { finalized = true }))

	h.Collect(fixedRoots{})

	require.True(t, finalized)
}

func TestCollectTracesThroughEnvironmentParentChain(t *testing.T) {
	h := New(nil)
	parent := vmvalue.NewEnvironment(nil, 0)
	parentVal := h.Allocate(parent)
	child := vmvalue.NewEnvironment(parent, 1)
	child.Slots[0] = vmvalue.NewSmallInt(1)
	childVal := h.Allocate(child)
	h.Allocate(vmvalue.NewString("garbage"))

	h.Collect(fixedRoots{values: []vmvalue.Value{childVal}})

	require.Len(t, h.objects, 2)
	require.NotNil(t, parentVal)
}

func TestShouldCollectReportsThresholdCrossing(t *testing.T) {
	h := New(nil)
	h.threshold = 1
	require.False(t, h.ShouldCollect())
	h.Allocate(vmvalue.NewString("some bytes to cross the tiny threshold"))
	require.True(t, h.ShouldCollect())
}
