package irbuild

import (
	"fmt"

	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/sema"
)

// funcBuilder lowers one hammer function (top-level or a nested closure
// literal) into one ir.Function. It implements the Braun et al.
// sealed/unsealed-block SSA construction algorithm cited in spec.md §4.1,
// keyed on sema.SymbolID instead of a source-level variable name.
type funcBuilder struct {
	b      *Builder
	fn     *ir.Function
	parent *funcBuilder // lexically enclosing function, nil for top-level
	name   string

	entry ir.BlockID
	cur   ir.BlockID

	defs           map[ir.BlockID]map[sema.SymbolID]ir.InstID
	incompletePhis map[ir.BlockID]map[sema.SymbolID]ir.InstID
	sealed         map[ir.BlockID]bool

	// envSlots assigns a closure-environment slot index to every symbol
	// whose home function is this one and which at least one nested
	// function reads or writes (sym.Captured, per sema).
	envSlots map[sema.SymbolID]int
	env      ir.InstID // this function's own MakeEnvironment, lazily created
	outerEnv ir.InstID // the environment handed in by our caller, lazily read

	loopExit     []ir.BlockID
	loopContinue []ir.BlockID

	lvn map[ir.BlockID]map[string]ir.InstID
}

func (b *Builder) newFuncBuilder(fn *ir.Function, parent *funcBuilder) *funcBuilder {
	fb := &funcBuilder{
		b:              b,
		fn:             fn,
		parent:         parent,
		name:           fn.Name,
		defs:           map[ir.BlockID]map[sema.SymbolID]ir.InstID{},
		incompletePhis: map[ir.BlockID]map[sema.SymbolID]ir.InstID{},
		sealed:         map[ir.BlockID]bool{},
		envSlots:       map[sema.SymbolID]int{},
		lvn:            map[ir.BlockID]map[string]ir.InstID{},
	}
	fb.entry = fn.NewBlock("entry")
	fn.Entry = fb.entry
	fb.cur = fb.entry
	return fb
}

func (fb *funcBuilder) bindParams(params []*ast.Identifier) {
	for i, p := range params {
		sym, _ := fb.b.sema.SymbolFor(p.ID())
		val := fb.emit(ir.ParamRead{Param: fb.fn.Params[i]})
		fb.defineLocal(sym, val)
	}
}

// buildFunctionBody lowers body as this function's complete block, then
// patches the lazily-sized environment's slot count and falls off the end
// with an implicit `return null` if control reaches it (spec.md §8).
func (fb *funcBuilder) buildFunctionBody(body *ast.BlockExpr) {
	val, terminated := fb.buildBlock(body)
	if !terminated {
		fb.setTerminator(ir.Return{Value: val})
	}
	fb.finalizeEnv()
}

func (fb *funcBuilder) finalizeEnv() {
	if !fb.env.Valid() {
		return
	}
	inst := fb.fn.Inst(fb.env)
	menv := inst.Value.(ir.MakeEnvironment)
	menv.Slots = len(fb.envSlots)
	inst.Value = menv
}

// --- basic block plumbing ---

func (fb *funcBuilder) newBlock(label string) ir.BlockID {
	return fb.fn.NewBlock(label)
}

func (fb *funcBuilder) switchTo(id ir.BlockID) { fb.cur = id }

func (fb *funcBuilder) addPred(block, pred ir.BlockID) {
	b := fb.fn.Block(block)
	b.Predecessors = append(b.Predecessors, pred)
}

func (fb *funcBuilder) setTerminator(t ir.Terminator) {
	fb.fn.Block(fb.cur).Terminator = t
}

func (fb *funcBuilder) terminated() bool {
	return fb.fn.Block(fb.cur).Terminator != nil
}

// seal finalizes a block's set of predecessors, resolving any phis the
// builder had to leave incomplete while that block's predecessors were
// still being discovered (the "sealing" step of Braun et al.).
func (fb *funcBuilder) seal(block ir.BlockID) {
	for sym, phi := range fb.incompletePhis[block] {
		fb.addPhiOperands(sym, block, phi)
	}
	delete(fb.incompletePhis, block)
	fb.sealed[block] = true
	fb.fn.Block(block).Sealed = true
}

// emit appends a fresh instruction to the current block, applying local
// value numbering for pure, side-effect-free operations (spec.md §4.1):
// a structurally-equal instruction already in this block is reused
// instead of duplicated.
func (fb *funcBuilder) emit(v ir.Value) ir.InstID {
	if key, pure := lvnKey(v); pure {
		cache := fb.lvn[fb.cur]
		if cache == nil {
			cache = map[string]ir.InstID{}
			fb.lvn[fb.cur] = cache
		}
		if id, ok := cache[key]; ok {
			return id
		}
		id := fb.fn.NewInst(v)
		fb.fn.Block(fb.cur).Insts = append(fb.fn.Block(fb.cur).Insts, id)
		cache[key] = id
		return id
	}
	id := fb.fn.NewInst(v)
	fb.fn.Block(fb.cur).Insts = append(fb.fn.Block(fb.cur).Insts, id)
	return id
}

// entryEmit appends an instruction to the function's entry block
// regardless of the block currently being built — used for
// OuterEnvironment/MakeEnvironment, which must run exactly once, at
// function entry, per spec.md §4.1.
func (fb *funcBuilder) entryEmit(v ir.Value) ir.InstID {
	id := fb.fn.NewInst(v)
	fb.fn.Block(fb.entry).Insts = append(fb.fn.Block(fb.entry).Insts, id)
	return id
}

func lvnKey(v ir.Value) (string, bool) {
	switch v := v.(type) {
	case ir.Constant:
		return fmt.Sprintf("const:%d:%v:%d:%g:%q", v.Kind, v.Bool, v.Int, v.Flt, v.Str), true
	case ir.UnaryOp:
		return fmt.Sprintf("unary:%d:%d", v.Op, v.Operand), true
	case ir.BinaryOp:
		return fmt.Sprintf("binary:%d:%d:%d", v.Op, v.LHS, v.RHS), true
	default:
		return "", false
	}
}

// --- Braun et al. sealed/unsealed SSA construction, keyed by symbol ---

func (fb *funcBuilder) writeVariable(sym sema.SymbolID, block ir.BlockID, value ir.InstID) {
	m := fb.defs[block]
	if m == nil {
		m = map[sema.SymbolID]ir.InstID{}
		fb.defs[block] = m
	}
	m[sym] = value
}

func (fb *funcBuilder) readVariable(sym sema.SymbolID, block ir.BlockID) ir.InstID {
	if v, ok := fb.defs[block][sym]; ok {
		return fb.resolveAlias(v)
	}
	return fb.readVariableRecursive(sym, block)
}

func (fb *funcBuilder) readVariableRecursive(sym sema.SymbolID, block ir.BlockID) ir.InstID {
	var value ir.InstID
	b := fb.fn.Block(block)
	switch {
	case !fb.sealed[block]:
		// Predecessors aren't all known yet; leave a placeholder phi for
		// seal() to fill in later.
		value = fb.newPhi(block)
		m := fb.incompletePhis[block]
		if m == nil {
			m = map[sema.SymbolID]ir.InstID{}
			fb.incompletePhis[block] = m
		}
		m[sym] = value
	case len(b.Predecessors) == 1:
		value = fb.readVariable(sym, b.Predecessors[0])
	default:
		// Break potential cycles (a loop header reading its own
		// induction variable) by writing the phi before recursing into
		// predecessors.
		value = fb.newPhi(block)
		fb.writeVariable(sym, block, value)
		value = fb.addPhiOperands(sym, block, value)
	}
	fb.writeVariable(sym, block, value)
	return value
}

func (fb *funcBuilder) newPhi(block ir.BlockID) ir.InstID {
	id := fb.fn.NewInst(&ir.Phi{})
	b := fb.fn.Block(block)
	b.Insts = append([]ir.InstID{id}, b.Insts...) // phis lead the block (spec.md §4.2)
	return id
}

func (fb *funcBuilder) addPhiOperands(sym sema.SymbolID, block, phi ir.InstID) ir.InstID {
	b := fb.fn.Block(block)
	phiVal := fb.fn.Inst(phi).Value.(*ir.Phi)
	for _, pred := range b.Predecessors {
		phiVal.Args = append(phiVal.Args, fb.readVariable(sym, pred))
	}
	return fb.tryRemoveTrivialPhi(phi)
}

// tryRemoveTrivialPhi turns a phi whose operands are all the same
// instruction (or itself) into an Alias to that instruction, per
// spec.md §4.1.
func (fb *funcBuilder) tryRemoveTrivialPhi(phi ir.InstID) ir.InstID {
	inst := fb.fn.Inst(phi)
	phiVal, ok := inst.Value.(*ir.Phi)
	if !ok {
		return phi
	}
	var same ir.InstID
	for _, op := range phiVal.Args {
		op = fb.resolveAlias(op)
		if op == same || op == phi || !op.Valid() {
			continue
		}
		if same.Valid() {
			return phi // more than one distinct operand: genuinely needed
		}
		same = op
	}
	if !same.Valid() {
		// Every predecessor is unreachable or undefined; keep the
		// (now-useless) phi rather than invent a value.
		return phi
	}
	inst.Value = ir.Alias{Target: same}
	return same
}

// resolveAlias follows a chain of Alias replacements to the instruction
// that should actually be read, so that trivial-phi removal is
// transparent to every caller that already captured the phi's id.
func (fb *funcBuilder) resolveAlias(id ir.InstID) ir.InstID {
	for id.Valid() {
		if a, ok := fb.fn.Inst(id).Value.(ir.Alias); ok {
			id = a.Target
			continue
		}
		return id
	}
	return id
}

// newPhiForPreds builds a phi in block whose operands are taken from
// argsByPred in block's current Predecessors order, used by expression
// lowering (if/&&/||) which constructs a join point's predecessors
// itself rather than through readVariable.
func (fb *funcBuilder) newPhiForPreds(block ir.BlockID, argsByPred map[ir.BlockID]ir.InstID) ir.InstID {
	b := fb.fn.Block(block)
	args := make([]ir.InstID, len(b.Predecessors))
	for i, p := range b.Predecessors {
		args[i] = argsByPred[p]
	}
	id := fb.fn.NewInst(&ir.Phi{Args: args})
	b.Insts = append([]ir.InstID{id}, b.Insts...)
	return fb.tryRemoveTrivialPhi(id)
}
