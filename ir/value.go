package ir

// Value is the operation computed by one instruction. Every concrete type
// below is a distinct SSA operation kind; the Inst that wraps a Value is
// the only thing other instructions may reference.
type Value interface {
	isValue()
}

// ConstantKind tags the payload carried by a Constant value.
type ConstantKind int

const (
	ConstNull ConstantKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
)

// Constant is a compile-time-known value, either written literally in
// source or produced by constant folding during construction.
type Constant struct {
	Kind ConstantKind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
}

func (Constant) isValue() {}

// ParamRead reads the incoming value of one of the function's parameters.
// Emitted once per parameter at function entry; later reads of the
// parameter's symbol resolve to this instruction's id, not to a fresh
// ParamRead.
type ParamRead struct {
	Param ParamID
}

func (ParamRead) isValue() {}

// Phi joins values flowing in along a block's predecessor edges. Args is
// parallel to the owning Block's Predecessors: Args[i] is the value
// flowing in from Predecessors[i]. A missing entry (zero InstID) means the
// operand has not yet been filled in by the sealing algorithm.
type Phi struct {
	Args []InstID
}

func (*Phi) isValue() {}

// UnaryOpKind enumerates the unary operators of spec.md §4.4's arithmetic
// category.
type UnaryOpKind int

const (
	UnaryPos UnaryOpKind = iota // UAdd
	UnaryNeg                    // USub
	UnaryNot                    // LNot
	UnaryBNot                   // BNot
)

// UnaryOp applies a unary operator to Operand.
type UnaryOp struct {
	Op      UnaryOpKind
	Operand InstID
}

func (UnaryOp) isValue() {}

// BinaryOpKind enumerates the binary operators of spec.md §4.4's
// arithmetic and comparison category.
type BinaryOpKind int

const (
	BinAdd BinaryOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinGt
	BinGte
	BinLt
	BinLte
	BinEq
	BinNEq
)

// BinaryOp applies a binary operator to LHS and RHS, in that order.
type BinaryOp struct {
	Op       BinaryOpKind
	LHS, RHS InstID
}

func (BinaryOp) isValue() {}

// Call invokes Callee with Args.
type Call struct {
	Callee InstID
	Args   []InstID
}

func (Call) isValue() {}

// UseLValue reads the current value of an LValue (a closure-environment
// slot, a module slot, a container index, or a field). Loads of a plain
// local or parameter never need this: they resolve directly to the
// defining instruction's id through the builder's definition map.
type UseLValue struct {
	LValue LValue
}

func (UseLValue) isValue() {}

// StoreLValue writes Value to an LValue. Used for closure-environment and
// module-global assignment, and for container index/field assignment;
// plain local/parameter assignment instead just updates the builder's
// definition map and never reaches the IR as a store.
type StoreLValue struct {
	LValue LValue
	Value  InstID
}

func (StoreLValue) isValue() {}

// Alias stands in for another instruction. Two passes introduce these:
// trivial-phi replacement during construction (a Phi whose operands are
// all the same instruction becomes an Alias to it) and CSSA's
// predecessor-end copies (each rewritten phi operand is defined by a
// fresh Alias at the end of its predecessor block).
type Alias struct {
	Target InstID
}

func (Alias) isValue() {}

// GlobalRef reads a host-provided global by name at runtime (spec.md
// §4.4's LoadGlobal opcode). Globals have no declaration syntax and are
// never assignable from guest code.
type GlobalRef struct {
	Name string
}

func (GlobalRef) isValue() {}

// SelfClosure reads the closure value of the function currently executing,
// as supplied by whatever called it. Used only for a named function
// literal's own name inside its body, so that a recursive call resolves
// without the literal needing to capture anything from its enclosing scope.
type SelfClosure struct{}

func (SelfClosure) isValue() {}

// OuterEnvironment reads the closure environment captured by the current
// function, supplied by the caller at the entry of any function that
// itself captures from an enclosing scope.
type OuterEnvironment struct{}

func (OuterEnvironment) isValue() {}

// MakeEnvironment allocates a new closure-environment record with Slots
// storage cells, chained to Parent (the zero InstID if this function
// captures nothing from further out).
type MakeEnvironment struct {
	Parent InstID
	Slots  int
}

func (MakeEnvironment) isValue() {}

// MakeClosure packages FuncTemplate (a MemberID naming a Function in the
// owning Module) together with Env into a callable closure value.
type MakeClosure struct {
	FuncTemplate MemberID
	Env          InstID
}

func (MakeClosure) isValue() {}

// ContainerKind tags the kind of sequence container a MakeContainer value
// builds.
type ContainerKind int

const (
	ContainerArray ContainerKind = iota
	ContainerTuple
	ContainerSet
)

// MakeContainer builds an Array, Tuple, or Set from Elements, in order.
type MakeContainer struct {
	Kind     ContainerKind
	Elements []InstID
}

func (MakeContainer) isValue() {}

// MakeMap builds a hash table from parallel Keys/Values slices.
type MakeMap struct {
	Keys, Values []InstID
}

func (MakeMap) isValue() {}

// MakeRecord instantiates Template (a RecordID naming the Module's record
// template with a fixed field-name set) with Fields supplying each
// field's value, in the template's field order.
type MakeRecord struct {
	Template RecordID
	Fields   []InstID
}

func (MakeRecord) isValue() {}

// FormatString concatenates Parts (a mix of string-literal constants and
// arbitrary value instructions) into one string, lowering an
// interpolated format-string literal.
type FormatString struct {
	Parts []InstID
}

func (FormatString) isValue() {}

// LValue is an assignable, non-local storage location: a closure slot, a
// module slot, a container index, or a record/object field. Plain locals
// and parameters are never LValues; they are represented purely through
// the builder's definition map and SSA instruction ids.
type LValue interface {
	isLValue()
}

// LValueClosure names a slot Index in the environment Depth steps out
// from the current function (0 = this function's own environment).
type LValueClosure struct {
	Depth int
	Index int
}

func (LValueClosure) isLValue() {}

// LValueModule names slot Member in the current module's member table.
type LValueModule struct {
	Member MemberID
}

func (LValueModule) isLValue() {}

// LValueIndex names Target[Index] — a container subscript.
type LValueIndex struct {
	Target InstID
	Index  InstID
}

func (LValueIndex) isLValue() {}

// LValueField names Target.Name — a record or object field.
type LValueField struct {
	Target InstID
	Name   string
}

func (LValueField) isLValue() {}
