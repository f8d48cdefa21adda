// Package handle implements the local/global handle discipline of
// spec.md §4.6, grounded on original_source/lib/hammer/vm/handles.cpp's
// RootBase (a scoped stack entry that restores the previous top on
// destruction). Go has no destructors, so a Scope's Close method plays
// the role of RootBase's destructor — callers must defer it.
package handle

import "github.com/dr8co/hammer/vmvalue"

// Stack is the local handle stack: VM-internal and host code must never
// hold a raw vmvalue.Object across a call that can allocate, only a slot
// on this stack (spec.md §4.6).
type Stack struct {
	slots []vmvalue.Value
}

// NewStack creates an empty local handle stack.
func NewStack() *Stack { return &Stack{} }

// Handle names one slot on the stack. The zero Handle is never issued.
type Handle struct {
	stack *Stack
	index int
}

// New pushes value onto the stack and returns a Handle naming its slot.
func (s *Stack) New(value vmvalue.Value) Handle {
	s.slots = append(s.slots, value)
	return Handle{stack: s, index: len(s.slots) - 1}
}

// Get reads the current value of h's slot.
func (h Handle) Get() vmvalue.Value { return h.stack.slots[h.index] }

// Set overwrites h's slot, e.g. after a call that reassigns what a
// variable refers to.
func (h Handle) Set(v vmvalue.Value) { h.stack.slots[h.index] = v }

// Scope records the stack depth at entry and truncates back to it on
// Close — mirroring RootBase's construct/destruct pair. Every local
// handle created after a Scope is opened is released when that Scope
// closes, regardless of how many were created.
type Scope struct {
	stack *Stack
	depth int
}

// OpenScope starts a new handle scope on s.
func (s *Stack) OpenScope() *Scope {
	return &Scope{stack: s, depth: len(s.slots)}
}

// New pushes value onto the owning stack within this scope.
func (sc *Scope) New(value vmvalue.Value) Handle {
	return sc.stack.New(value)
}

// Close truncates the stack back to the depth recorded at OpenScope,
// releasing every handle this scope (or a nested one that forgot to
// close) created.
func (sc *Scope) Close() {
	sc.stack.slots = sc.stack.slots[:sc.depth]
}

// WalkRoots visits every live slot, for the collector's root-marking pass
// (heap.Roots).
func (s *Stack) WalkRoots(fn func(vmvalue.Value)) {
	for _, v := range s.slots {
		fn(v)
	}
}

// Globals is the flat list of permanently-held slots for VM singletons
// and long-lived caches (spec.md §4.6) — allocation and destruction are
// both explicit, unlike the scoped local stack.
type Globals struct {
	slots []vmvalue.Value
	free  []int
}

// NewGlobals creates an empty global handle list.
func NewGlobals() *Globals { return &Globals{} }

// GlobalHandle names a slot in a Globals list.
type GlobalHandle int

// New allocates a global slot holding value, reusing a freed slot index
// when one is available.
func (g *Globals) New(value vmvalue.Value) GlobalHandle {
	if n := len(g.free); n > 0 {
		idx := g.free[n-1]
		g.free = g.free[:n-1]
		g.slots[idx] = value
		return GlobalHandle(idx)
	}
	g.slots = append(g.slots, value)
	return GlobalHandle(len(g.slots) - 1)
}

// Get reads h's current value.
func (g *Globals) Get(h GlobalHandle) vmvalue.Value { return g.slots[h] }

// Set overwrites h's current value.
func (g *Globals) Set(h GlobalHandle, v vmvalue.Value) { g.slots[h] = v }

// Free releases h's slot for reuse by a later New call.
func (g *Globals) Free(h GlobalHandle) {
	g.slots[h] = vmvalue.Value{}
	g.free = append(g.free, int(h))
}

// WalkRoots visits every slot, including freed ones (they hold the zero
// Value, which WalkRoots's mark callback already ignores as non-heap).
func (g *Globals) WalkRoots(fn func(vmvalue.Value)) {
	for _, v := range g.slots {
		fn(v)
	}
}
