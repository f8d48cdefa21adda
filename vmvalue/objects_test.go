package vmvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashTableSetGetRoundTrips(t *testing.T) {
	h := NewHashTable()
	h.Set(FromObject(NewString("k")), NewSmallInt(1))
	v, ok := h.Get(FromObject(NewString("k")))
	require.True(t, ok)
	require.Equal(t, int64(1), v.SmallInt())
}

func TestHashTableSetOverwritesExistingKey(t *testing.T) {
	h := NewHashTable()
	h.Set(NewSmallInt(1), NewSmallInt(10))
	h.Set(NewSmallInt(1), NewSmallInt(20))
	require.Equal(t, 1, h.Len())
	v, _ := h.Get(NewSmallInt(1))
	require.Equal(t, int64(20), v.SmallInt())
}

func TestHashTableIteratorExhaustsToStopIteration(t *testing.T) {
	h := NewHashTable()
	h.Set(NewSmallInt(1), NewSmallInt(1))
	it := NewHashTableIterator(h)
	first := it.Next()
	require.True(t, first.IsHeapPtr())
	second := it.Next()
	require.Equal(t, StopIteration, second)
}

func TestArrayPushGrowsStorage(t *testing.T) {
	a := NewArray()
	a.Push(NewSmallInt(1))
	a.Push(NewSmallInt(2))
	require.Equal(t, 2, a.Len())
	require.Equal(t, int64(2), a.Get(1).SmallInt())
}

func TestEnvironmentWalkVisitsSlotsThenParent(t *testing.T) {
	parent := NewEnvironment(nil, 1)
	child := NewEnvironment(parent, 2)
	child.Slots[0] = NewSmallInt(5)

	var seen []Value
	child.Walk(func(v Value) { seen = append(seen, v) })
	require.Len(t, seen, 3) // 2 slots + parent
}

func TestCodeHandlerForPicksInnermostRange(t *testing.T) {
	c := NewCode(nil, []HandlerRange{
		{Start: 0, End: 100, Target: 1},
		{Start: 10, End: 20, Target: 2},
	})
	h, ok := c.HandlerFor(15)
	require.True(t, ok)
	require.Equal(t, 2, h.Target)
}

func TestCodeHandlerForReportsNoneOutsideAnyRange(t *testing.T) {
	c := NewCode(nil, []HandlerRange{{Start: 0, End: 5, Target: 1}})
	_, ok := c.HandlerFor(10)
	require.False(t, ok)
}
