package irbuild

import "github.com/dr8co/hammer/ir"
import "github.com/dr8co/hammer/sema"

// ownEnvRef returns the instruction id of this function's own closure
// environment, creating it (chained to the caller-supplied outer
// environment, if any) on first use. Every nested function literal built
// within fb is handed this same id as its MakeClosure.Env operand,
// establishing a static chain one frame per lexical function nesting
// (spec.md §4.1's "OuterEnvironment value at entry").
func (fb *funcBuilder) ownEnvRef() ir.InstID {
	if !fb.env.Valid() {
		var parent ir.InstID
		if fb.parent != nil {
			parent = fb.outerEnvRef()
		}
		fb.env = fb.entryEmit(ir.MakeEnvironment{Parent: parent, Slots: 0})
	}
	return fb.env
}

// outerEnvRef reads the environment this (non-top-level) function
// received from its caller.
func (fb *funcBuilder) outerEnvRef() ir.InstID {
	if !fb.outerEnv.Valid() {
		fb.outerEnv = fb.entryEmit(ir.OuterEnvironment{})
	}
	return fb.outerEnv
}

// envSlotFor assigns (or returns the existing) environment slot index for
// a symbol whose home function is fb.
func (fb *funcBuilder) envSlotFor(sym sema.SymbolID) int {
	if idx, ok := fb.envSlots[sym]; ok {
		return idx
	}
	idx := len(fb.envSlots)
	fb.envSlots[sym] = idx
	return idx
}

// closureRef locates a captured symbol relative to fb: how many function
// nestings up its home function sits (Depth) and its slot index there.
// The home function is found by walking fb's own parent chain until one
// of the defining function's env slots (registered by that function's
// own defineLocal call) matches sym.
func (fb *funcBuilder) closureRef(sym *sema.Symbol) ir.LValueClosure {
	depth := 0
	for owner := fb; owner != nil; owner = owner.parent {
		if idx, ok := owner.envSlots[sym.ID]; ok {
			return ir.LValueClosure{Depth: depth, Index: idx}
		}
		depth++
	}
	// Home function not found on the chain: sema marked this Captured
	// but irbuild never saw its declaration (an internal inconsistency,
	// not a user-facing error). Fall back to depth 0, slot 0 rather than
	// crash; downstream bytecode emission will at worst read a wrong but
	// in-range slot.
	return ir.LValueClosure{Depth: 0, Index: 0}
}

// readSymbol reads the current value of a resolved symbol, dispatching
// on its storage class.
func (fb *funcBuilder) readSymbol(sym *sema.Symbol) ir.InstID {
	switch sym.Kind {
	case sema.SymGlobal:
		return fb.emit(ir.GlobalRef{Name: fb.b.strs.Value(sym.Name)})
	case sema.SymModule:
		mem := fb.b.memberOf[sym.ID]
		return fb.emit(ir.UseLValue{LValue: ir.LValueModule{Member: mem}})
	default: // SymParameter, SymLocal
		if sym.Captured {
			return fb.emit(ir.UseLValue{LValue: fb.closureRef(sym)})
		}
		return fb.readVariable(sym.ID, fb.cur)
	}
}

// writeSymbol stores value into a resolved symbol, dispatching on its
// storage class. Writing a SymGlobal is a construction error: globals
// have no guest-visible assignment syntax (spec.md §4.4 lists LoadGlobal
// but no StoreGlobal).
func (fb *funcBuilder) writeSymbol(sym *sema.Symbol, value ir.InstID) {
	switch sym.Kind {
	case sema.SymGlobal:
		fb.b.Diagnostics.Report(sema.LevelError, sema.SourceRange{}, "cannot assign to global \""+fb.b.strs.Value(sym.Name)+"\"")
	case sema.SymModule:
		mem := fb.b.memberOf[sym.ID]
		fb.emit(ir.StoreLValue{LValue: ir.LValueModule{Member: mem}, Value: value})
	default:
		if sym.Captured {
			ref := fb.closureRef(sym)
			fb.emit(ir.StoreLValue{LValue: ref, Value: value})
		} else {
			fb.writeVariable(sym.ID, fb.cur, value)
		}
	}
}

// defineLocal binds a freshly declared parameter or local to value: an
// ordinary SSA definition, or (if sema marked it Captured) a store into a
// newly allocated slot in this function's own environment.
func (fb *funcBuilder) defineLocal(sym *sema.Symbol, value ir.InstID) {
	if sym.Captured {
		fb.ownEnvRef() // ensure this frame's environment object exists before storing into it
		idx := fb.envSlotFor(sym.ID)
		fb.emit(ir.StoreLValue{LValue: ir.LValueClosure{Depth: 0, Index: idx}, Value: value})
		return
	}
	fb.writeVariable(sym.ID, fb.cur, value)
}
