// Package regalloc assigns bytecode registers to SSA instructions.
//
// Input: a function already in conventional SSA form (critical edges
// split, phi operands copied at predecessor ends — see package irpass).
// Output: a register number per instruction and the frame size (register
// count) emission stamps into the function's bytecode header, per
// spec.md §4.3.
package regalloc

import "github.com/dr8co/hammer/ir"

// Allocation is the result of running Allocate over one function.
type Allocation struct {
	Register map[ir.InstID]int
	NumRegs  int
}

// RegisterOf returns the register assigned to id, or -1 if id was never
// given one (a dead instruction DCE should already have removed, or a
// pure side-effect op with no destination).
func (a *Allocation) RegisterOf(id ir.InstID) int {
	if r, ok := a.Register[id]; ok {
		return r
	}
	return -1
}

// Allocate runs the linear-scan algorithm of spec.md §4.3 over fn's
// instructions in dominance-respecting order (reverse postorder on
// blocks, block order within a block). A phi and every CSSA copy that
// feeds it share one register, discovered by following each operand's
// alias chain back to the phi.
func Allocate(fn *ir.Function) *Allocation {
	order := ir.ReversePostorder(fn)

	remaining := countUses(fn, order)
	canon := canonicalize(fn, order)

	a := &Allocation{Register: make(map[ir.InstID]int)}
	free := newFreeList()
	assigned := make(map[ir.InstID]int) // per canonical id

	release := func(operand ir.InstID) {
		if !operand.Valid() {
			return
		}
		key := canon[operand]
		remaining[key]--
		if remaining[key] <= 0 {
			if reg, ok := assigned[key]; ok {
				free.release(reg)
				delete(assigned, key)
			}
		}
	}

	for _, blockID := range order {
		block := fn.Block(blockID)
		for _, id := range block.Insts {
			inst := fn.Inst(id)
			if inst.Value == nil {
				continue
			}
			for _, op := range operandsOf(inst.Value) {
				release(op)
			}

			key := canon[id]
			if _, ok := assigned[key]; ok {
				a.Register[id] = assigned[key]
				continue
			}
			if remaining[key] <= 0 && !hasDestination(inst.Value) {
				continue // no reader and no required destination: nothing to allocate
			}
			reg := free.take()
			assigned[key] = reg
			a.Register[id] = reg
			if reg+1 > a.NumRegs {
				a.NumRegs = reg + 1
			}
		}
		switch t := block.Terminator.(type) {
		case ir.Branch:
			release(t.Cond)
		case ir.Return:
			release(t.Value)
		case ir.Rethrow:
			release(t.Value)
		}
	}
	return a
}

// hasDestination reports whether v produces a value that must occupy a
// register even with zero remaining readers in this pass: true for every
// value except StoreLValue, which produces none.
func hasDestination(v ir.Value) bool {
	switch v.(type) {
	case ir.StoreLValue:
		return false
	default:
		return true
	}
}

type freeList struct {
	free []int
	next int
}

func newFreeList() *freeList { return &freeList{} }

func (f *freeList) take() int {
	if n := len(f.free); n > 0 {
		r := f.free[n-1]
		f.free = f.free[:n-1]
		return r
	}
	r := f.next
	f.next++
	return r
}

func (f *freeList) release(r int) { f.free = append(f.free, r) }

// canonicalize maps every instruction id to the id that should be used as
// its register-allocation key. Two distinct things produce an ir.Alias,
// and they canonicalize in opposite directions:
//
//   - Trivial-phi removal (construction time) replaces a phi's own id
//     in place with Alias{Target}: the id genuinely equals its target
//     forever after, so it collapses onto the target's key.
//   - A CSSA predecessor-end copy (irpass.ConstructCSSA) is a brand-new
//     id whose whole purpose is to be allocatable separately from its
//     source value — it must share the owning phi's key instead, or
//     the copy and the value it copies from would be forced into the
//     same register even when both are simultaneously live.
//
// A copy is told apart from a trivial-phi alias by appearing in some
// phi's Args list: CSSA only ever installs a copy id there, never
// anywhere else, so that membership is an unambiguous signal.
func canonicalize(fn *ir.Function, order []ir.BlockID) map[ir.InstID]ir.InstID {
	phiOwner := make(map[ir.InstID]ir.InstID)
	for _, blockID := range order {
		for _, id := range fn.Block(blockID).Insts {
			phi, ok := fn.Inst(id).Value.(*ir.Phi)
			if !ok {
				continue
			}
			for _, arg := range phi.Args {
				if arg.Valid() {
					phiOwner[arg] = id
				}
			}
		}
	}

	canon := make(map[ir.InstID]ir.InstID)
	var resolve func(id ir.InstID) ir.InstID
	resolve = func(id ir.InstID) ir.InstID {
		if c, ok := canon[id]; ok {
			return c
		}
		if owner, ok := phiOwner[id]; ok && owner != id {
			c := resolve(owner)
			canon[id] = c
			return c
		}
		if a, ok := fn.Inst(id).Value.(ir.Alias); ok {
			c := resolve(a.Target)
			canon[id] = c
			return c
		}
		canon[id] = id
		return id
	}
	for _, blockID := range order {
		for _, id := range fn.Block(blockID).Insts {
			resolve(id)
		}
	}
	return canon
}

// countUses counts, for each canonical instruction, how many remaining
// operand references point at it — decremented as allocation proceeds to
// know when a register can be freed.
func countUses(fn *ir.Function, order []ir.BlockID) map[ir.InstID]int {
	canon := canonicalize(fn, order)
	counts := make(map[ir.InstID]int)
	count := func(id ir.InstID) {
		if id.Valid() {
			counts[canon[id]]++
		}
	}
	for _, blockID := range order {
		block := fn.Block(blockID)
		for _, id := range block.Insts {
			inst := fn.Inst(id)
			if inst.Value == nil {
				continue
			}
			for _, op := range operandsOf(inst.Value) {
				count(op)
			}
		}
		switch t := block.Terminator.(type) {
		case ir.Branch:
			count(t.Cond)
		case ir.Return:
			count(t.Value)
		case ir.Rethrow:
			count(t.Value)
		}
	}
	return counts
}

func operandsOf(v ir.Value) []ir.InstID {
	switch v := v.(type) {
	case ir.UnaryOp:
		return []ir.InstID{v.Operand}
	case ir.BinaryOp:
		return []ir.InstID{v.LHS, v.RHS}
	case ir.Call:
		return append([]ir.InstID{v.Callee}, v.Args...)
	case ir.UseLValue:
		return lvalueOperands(v.LValue)
	case ir.StoreLValue:
		return append(lvalueOperands(v.LValue), v.Value)
	case ir.Alias:
		return []ir.InstID{v.Target}
	case *ir.Phi:
		// Not a real operand list for liveness purposes: each Arg is a
		// CSSA copy processed (and its own Target use counted) at the end
		// of its predecessor block, strictly before this phi is reached.
		// Treating Args as uses here would double-release the phi's own
		// register the moment the phi instruction itself is visited.
		return nil
	case ir.MakeEnvironment:
		if v.Parent.Valid() {
			return []ir.InstID{v.Parent}
		}
	case ir.MakeClosure:
		return []ir.InstID{v.Env}
	case ir.MakeContainer:
		return append([]ir.InstID(nil), v.Elements...)
	case ir.MakeMap:
		ids := append([]ir.InstID(nil), v.Keys...)
		return append(ids, v.Values...)
	case ir.MakeRecord:
		return append([]ir.InstID(nil), v.Fields...)
	case ir.FormatString:
		return append([]ir.InstID(nil), v.Parts...)
	}
	return nil
}

func lvalueOperands(l ir.LValue) []ir.InstID {
	switch l := l.(type) {
	case ir.LValueIndex:
		return []ir.InstID{l.Target, l.Index}
	case ir.LValueField:
		return []ir.InstID{l.Target}
	}
	return nil
}
