package irpass

import "github.com/dr8co/hammer/ir"

// sideEffecting reports whether v must be kept even if its result is
// never read, per spec.md §4.2's DCE roots (calls, stores, panics —
// anything whose absence would be observable).
func sideEffecting(v ir.Value) bool {
	switch v.(type) {
	case ir.Call, ir.StoreLValue, ir.MakeEnvironment, ir.OuterEnvironment, ir.SelfClosure:
		return true
	default:
		return false
	}
}

func operandsOf(v ir.Value) []ir.InstID {
	switch v := v.(type) {
	case ir.UnaryOp:
		return []ir.InstID{v.Operand}
	case ir.BinaryOp:
		return []ir.InstID{v.LHS, v.RHS}
	case ir.Call:
		ids := append([]ir.InstID{v.Callee}, v.Args...)
		return ids
	case ir.UseLValue:
		return lvalueOperands(v.LValue)
	case ir.StoreLValue:
		return append(lvalueOperands(v.LValue), v.Value)
	case ir.Alias:
		return []ir.InstID{v.Target}
	case *ir.Phi:
		return append([]ir.InstID(nil), v.Args...)
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

// EliminateDeadCode removes every instruction not reachable, through
// operand edges, from a terminator reference or a side-effecting
// instruction (spec.md §4.2). Unreachable instructions are cleared via
// ir.Function.DeleteInst and compacted out of their block's Insts list.
func EliminateDeadCode(fn *ir.Function) {
	live := make(map[ir.InstID]bool)
	var worklist []ir.InstID

	mark := func(id ir.InstID) {
		if id.Valid() && !live[id] {
			live[id] = true
			worklist = append(worklist, id)
		}
	}

	for _, b := range fn.Blocks() {
		for _, id := range b.Insts {
			inst := fn.Inst(id)
			if inst.Value != nil && sideEffecting(inst.Value) {
				mark(id)
			}
		}
		if b.Terminator != nil {
			switch t := b.Terminator.(type) {
			case ir.Branch:
				mark(t.Cond)
			case ir.Return:
				mark(t.Value)
			case ir.Rethrow:
				mark(t.Value)
			}
		}
	}

	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		inst := fn.Inst(id)
		if inst.Value == nil {
			continue
		}
		for _, op := range operandsOf(inst.Value) {
			mark(op)
		}
	}

	for _, b := range fn.Blocks() {
		kept := b.Insts[:0]
		for _, id := range b.Insts {
			if live[id] {
				kept = append(kept, id)
			} else {
				fn.DeleteInst(id)
			}
		}
		b.Insts = kept
	}
}
