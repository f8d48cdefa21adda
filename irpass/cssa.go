package irpass

import "github.com/dr8co/hammer/ir"

// ConstructCSSA rewrites fn into conventional SSA form (spec.md §4.2): for
// every phi, a copy of each operand is inserted at the end of its
// defining predecessor and the phi's operand list is rewritten to those
// copies, so that after allocation no two live ranges sharing a register
// can interfere. Must run after critical-edge splitting, since it assumes
// every predecessor of a multi-predecessor block has only one successor.
func ConstructCSSA(fn *ir.Function) {
	for _, b := range fn.Blocks() {
		n := b.PhiCount(fn)
		for i := 0; i < n; i++ {
			phiID := b.Insts[i]
			phi := fn.Inst(phiID).Value.(*ir.Phi)
			for j, pred := range b.Predecessors {
				if j >= len(phi.Args) {
					continue
				}
				copyID := fn.NewInst(ir.Alias{Target: phi.Args[j]})
				predBlock := fn.Block(pred)
				predBlock.Insts = append(predBlock.Insts, copyID)
				phi.Args[j] = copyID
			}
		}
	}
}
