// Package irpass runs the required transformations over an ir.Function
// between construction and register allocation (spec.md §4.2):
// critical-edge splitting, conventional-SSA (CSSA) construction, and
// dead-code elimination, in that order.
package irpass

import "github.com/dr8co/hammer/ir"

// SplitCriticalEdges inserts an empty jump block on every edge A -> B
// where A has more than one successor and B has more than one
// predecessor, so that CSSA's per-predecessor copies always have a block
// of their own to live in. Returns whether the CFG changed.
func SplitCriticalEdges(fn *ir.Function) bool {
	changed := false
	blocks := fn.Blocks()

	predCount := make(map[ir.BlockID]int, len(blocks))
	for _, b := range blocks {
		predCount[b.ID] = len(b.Predecessors)
	}

	for _, a := range blocks {
		succs := a.Terminator.Successors()
		if len(succs) < 2 {
			continue
		}
		for i, target := range succs {
			b := fn.Block(target)
			if predCount[target] < 2 {
				continue
			}
			changed = true
			splitBlock := &ir.Block{Label: "crit.edge", Predecessors: []ir.BlockID{a.ID}, Terminator: ir.Jump{Target: target}}
			splitBlock.ID = ir.BlockID(len(fn.Blocks()) + 1)
			split := fn.AppendBlock(splitBlock)

			redirectSuccessor(a, i, split)
			replacePredecessor(b, a.ID, split)
		}
	}
	return changed
}

func redirectSuccessor(a *ir.Block, index int, newTarget ir.BlockID) {
	switch t := a.Terminator.(type) {
	case ir.Jump:
		a.Terminator = ir.Jump{Target: newTarget}
	case ir.Branch:
		if index == 0 {
			a.Terminator = ir.Branch{Cond: t.Cond, IfTrue: newTarget, IfFalse: t.IfFalse}
		} else {
			a.Terminator = ir.Branch{Cond: t.Cond, IfTrue: t.IfTrue, IfFalse: newTarget}
		}
	}
}

func replacePredecessor(b *ir.Block, old, new_ ir.BlockID) {
	for i, p := range b.Predecessors {
		if p == old {
			b.Predecessors[i] = new_
			return
		}
	}
}
