package ir

// Inst is one SSA instruction: an optional debug name plus the Value
// describing the operation it performs. Instructions are defined exactly
// once; every other instruction's operand referring to this one's InstID
// observes the same value.
type Inst struct {
	ID    InstID
	Name  string // empty unless the instruction binds a named local/parameter
	Value Value
}

// Terminator is the single control-transfer operation that ends a Block.
// Every Block has exactly one, set once its contents are fully built.
type Terminator interface {
	isTerminator()
	// Successors returns the blocks this terminator may transfer control
	// to, in a fixed order (branch: true-target then false-target).
	Successors() []BlockID
}

// Unreachable marks a block that control can never reach the end of,
// e.g. the synthetic continuation after a function that never returns.
// Blocks ending in Unreachable, Return, or Rethrow are Never-typed per
// spec.md §4.1's control-flow lowering rules.
type Unreachable struct{}

func (Unreachable) isTerminator()         {}
func (Unreachable) Successors() []BlockID { return nil }

// Jump transfers control unconditionally to Target.
type Jump struct {
	Target BlockID
}

func (Jump) isTerminator()           {}
func (j Jump) Successors() []BlockID { return []BlockID{j.Target} }

// Branch transfers control to IfTrue when Cond is truthy, IfFalse
// otherwise. This is the sole conditional terminator; if/while/for and
// short-circuit && / || all lower to chains of Branch, never to a
// boolean-valued instruction followed by a test (spec.md §4.1).
type Branch struct {
	Cond            InstID
	IfTrue, IfFalse BlockID
}

func (Branch) isTerminator() {}
func (b Branch) Successors() []BlockID {
	return []BlockID{b.IfTrue, b.IfFalse}
}

// Return ends the current function, yielding Value to the caller (or
// null, represented by the zero InstID, for a function whose body falls
// off the end or whose body is empty per spec.md §8's boundary rule).
type Return struct {
	Value InstID
}

func (Return) isTerminator()         {}
func (Return) Successors() []BlockID { return nil }

// Rethrow propagates a caught panic back to the caller. Lowers `raise`-like
// constructs that re-signal rather than produce a value.
type Rethrow struct {
	Value InstID
}

func (Rethrow) isTerminator()         {}
func (Rethrow) Successors() []BlockID { return nil }

// Block is one basic block: a maximal straight-line instruction sequence
// ending in a single Terminator. Per spec.md §4.2, only the leading Phi
// instructions of a block's Insts may be phi-valued; that invariant is
// established once phi insertion completes and preserved by every later
// pass.
type Block struct {
	ID           BlockID
	Label        string
	Insts        []InstID
	Predecessors []BlockID
	Terminator   Terminator

	// Sealed is true once every predecessor of this block is known to the
	// builder; phis may only be finalized (trivial-phi check performed)
	// after sealing, per the Braun et al. algorithm cited in spec.md §4.1.
	Sealed bool
}

// PhiCount returns how many of Block's leading instructions are
// phi-valued, scanning Insts in order and stopping at the first
// non-phi — the invariant spec.md §4.2's dominance property relies on.
func (b *Block) PhiCount(f *Function) int {
	n := 0
	for _, id := range b.Insts {
		if _, ok := f.Inst(id).Value.(*Phi); !ok {
			break
		}
		n++
	}
	return n
}

// Function is one compiled function: its parameters, its block/instruction
// arenas, and the entry block where execution begins.
type Function struct {
	ID     FuncID
	Name   string
	Params []ParamID
	Entry  BlockID

	blocks []*Block
	insts  []*Inst

	// Valid is cleared the first time a construction error is reported
	// for this function; per spec.md §4.1, the builder keeps going to
	// collect further errors but no bytecode is emitted for an invalid
	// function.
	Valid bool
}

// NewFunction returns an empty function ready for block/instruction
// construction.
func NewFunction(id FuncID, name string, arity int) *Function {
	params := make([]ParamID, arity)
	for i := range params {
		params[i] = ParamID(i + 1)
	}
	return &Function{ID: id, Name: name, Params: params, Valid: true}
}

// NewBlock appends a fresh, unsealed, terminator-less block and returns
// its id.
func (f *Function) NewBlock(label string) BlockID {
	id := BlockID(len(f.blocks) + 1)
	f.blocks = append(f.blocks, &Block{ID: id, Label: label})
	return id
}

// NewInst appends a fresh instruction to the function's arena and returns
// its id; it is the caller's responsibility to also append the id to the
// owning block's Insts.
func (f *Function) NewInst(value Value) InstID {
	id := InstID(len(f.insts) + 1)
	f.insts = append(f.insts, &Inst{ID: id, Value: value})
	return id
}

// Block returns the block with the given id.
func (f *Function) Block(id BlockID) *Block { return f.blocks[id-1] }

// Inst returns the instruction with the given id.
func (f *Function) Inst(id InstID) *Inst { return f.insts[id-1] }

// Blocks returns every block in creation order. Creation order is not a
// traversal order; use [ReversePostorder] for one.
func (f *Function) Blocks() []*Block { return f.blocks }

// NumInsts returns the number of instructions ever allocated in this
// function, including ones later orphaned by dead-code elimination but
// not yet compacted out.
func (f *Function) NumInsts() int { return len(f.insts) }

// SetBlocks replaces the function's block arena wholesale. Used by passes
// that restructure the CFG (critical-edge splitting inserts new blocks;
// DCE never removes blocks, only instructions); callers must first fix up
// every remaining predecessor/terminator reference.
func (f *Function) SetBlocks(blocks []*Block) { f.blocks = blocks }

// AppendBlock appends an already-constructed block (e.g. one inserted by
// critical-edge splitting) to the arena and returns its new id, which the
// caller must have already stamped onto b.ID to keep them consistent.
func (f *Function) AppendBlock(b *Block) BlockID {
	f.blocks = append(f.blocks, b)
	return b.ID
}

// DeleteInst clears an instruction's Value to nil and its Name, marking it
// dead without shifting ids; dead-code elimination (irpass) uses this, and
// later compacts block Insts lists to drop the now-nil entries.
func (f *Function) DeleteInst(id InstID) {
	f.insts[id-1].Value = nil
	f.insts[id-1].Name = ""
}
