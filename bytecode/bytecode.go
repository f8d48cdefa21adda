// Package bytecode defines the instruction encoding the interpreter
// executes: opcodes, their operand layout, and the byte-level
// encode/decode helpers shared by the emitter and the interpreter.
//
// The wire format generalizes the teacher's stack-machine code package
// (same Definition/Lookup/Make/ReadOperands shape, same big-endian
// encoding/binary use, same Instructions.String() disassembly
// convention) to the opcode repertoire of spec.md §4.4: value loads and
// stores addressed by register/local index rather than bare constant
// pool slots, plus the closure and record construction ops a tree of
// environments and record templates need.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Instructions is a slice of bytes representing a sequence of encoded
// instructions.
type Instructions []byte

// Opcode is a single bytecode operation.
type Opcode byte

const (
	// Loads push one value; operand is the source for everything but the
	// parameterless sentinel loads.
	LoadNull Opcode = iota
	LoadFalse
	LoadTrue
	LoadInt    // <imm:8> int64 immediate, sign-extended
	LoadFloat  // <imm:8> float64 immediate bit pattern
	LoadConst  // <member:2> module constant/member slot
	LoadParam  // <index:2>
	LoadLocal  // <index:2> register-turned-local-slot, per spec.md §4.7
	LoadClosure // <depth:1, index:2>
	LoadModule // <member:2>
	LoadGlobal // <name:2> interned string-table handle
	LoadIndex  // pops target, index; pushes target[index]
	LoadField  // <name:2>, pops target; pushes target.name
	LoadSelfClosure     // pushes the closure currently executing
	LoadOuterEnvironment // pushes the environment captured by the current function

	// Stores pop one value (StoreIndex/StoreField pop an extra index/target).
	StoreParam
	StoreLocal
	StoreClosure // <depth:1, index:2>
	StoreModule  // <member:2>
	StoreMember  // <member:2>
	StoreIndex   // pops target, index, value
	StoreField   // <name:2>, pops target, value

	// Stack shuffling.
	Dup
	Pop
	Rotate2
	Rotate3
	Rotate4

	// Arithmetic and comparison: pop operands, push one result.
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	UAdd
	USub
	LNot
	BNot
	Gt
	Gte
	Lt
	Lte
	Eq
	NEq

	// Control: all jump targets are absolute instruction-byte offsets,
	// patched in the emitter's second pass once every block's final
	// position is known.
	Jmp         // <target:2>
	JmpTrue     // <target:2>, peeks
	JmpTruePop  // <target:2>, pops
	JmpFalse    // <target:2>, peeks
	JmpFalsePop // <target:2>, pops

	// Calls.
	Call        // <argc:1>, pops callee+argc args, pushes result
	Return      // pops return value (LoadNull first for a bare `return`)
	LoadMethod  // <name:2>, pops receiver, pushes bound method
	CallMethod  // <argc:1>

	// Construction: pop N operands in source order, push one aggregate.
	MakeArray      // <count:2>
	MakeTuple      // <count:2>
	MakeMap        // <pairCount:2>, pops 2*pairCount (key,value interleaved)
	MakeSet        // <count:2>
	MakeRecord     // <template:2>, pops the template's field count in order
	MakeClosure    // <template:2>, pops the environment (or nothing, if none)
	MakeEnvironment // <slots:2>, pops the parent environment if it has one

	// Panics. emit lowers an ir.Rethrow terminator to Rethrow, but irbuild
	// never produces one and nothing lowers to AssertFail, so compiled
	// programs contain neither. The interpreter's own dynamic checks (bad
	// index, failed type test) raise a Panic directly, not through these.
	AssertFail // <message:2> module constant slot
	Rethrow

	// FormatConcat pops count parts (in source order) and pushes their
	// string concatenation — the runtime half of an interpolated string
	// literal, whose holes were evaluated by ordinary loads beforehand.
	FormatConcat // <count:2>
)

// Definition names an opcode and the byte width of each of its operands,
// in encoding order.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	LoadNull:  {"LoadNull", nil},
	LoadFalse: {"LoadFalse", nil},
	LoadTrue:  {"LoadTrue", nil},
	LoadInt:   {"LoadInt", []int{8}},
	LoadFloat: {"LoadFloat", []int{8}},
	LoadConst: {"LoadConst", []int{2}},
	LoadParam: {"LoadParam", []int{2}},
	LoadLocal: {"LoadLocal", []int{2}},
	LoadClosure: {"LoadClosure", []int{1, 2}},
	LoadModule: {"LoadModule", []int{2}},
	LoadGlobal: {"LoadGlobal", []int{2}},
	LoadIndex:  {"LoadIndex", nil},
	LoadField:  {"LoadField", []int{2}},
	LoadSelfClosure:      {"LoadSelfClosure", nil},
	LoadOuterEnvironment: {"LoadOuterEnvironment", nil},

	StoreParam:   {"StoreParam", []int{2}},
	StoreLocal:   {"StoreLocal", []int{2}},
	StoreClosure: {"StoreClosure", []int{1, 2}},
	StoreModule:  {"StoreModule", []int{2}},
	StoreMember:  {"StoreMember", []int{2}},
	StoreIndex:   {"StoreIndex", nil},
	StoreField:   {"StoreField", []int{2}},

	Dup:     {"Dup", nil},
	Pop:     {"Pop", nil},
	Rotate2: {"Rotate2", nil},
	Rotate3: {"Rotate3", nil},
	Rotate4: {"Rotate4", nil},

	Add:  {"Add", nil},
	Sub:  {"Sub", nil},
	Mul:  {"Mul", nil},
	Div:  {"Div", nil},
	Mod:  {"Mod", nil},
	Pow:  {"Pow", nil},
	UAdd: {"UAdd", nil},
	USub: {"USub", nil},
	LNot: {"LNot", nil},
	BNot: {"BNot", nil},
	Gt:   {"Gt", nil},
	Gte:  {"Gte", nil},
	Lt:   {"Lt", nil},
	Lte:  {"Lte", nil},
	Eq:   {"Eq", nil},
	NEq:  {"NEq", nil},

	Jmp:         {"Jmp", []int{2}},
	JmpTrue:     {"JmpTrue", []int{2}},
	JmpTruePop:  {"JmpTruePop", []int{2}},
	JmpFalse:    {"JmpFalse", []int{2}},
	JmpFalsePop: {"JmpFalsePop", []int{2}},

	Call:       {"Call", []int{1}},
	Return:     {"Return", nil},
	LoadMethod: {"LoadMethod", []int{2}},
	CallMethod: {"CallMethod", []int{1}},

	MakeArray:       {"MakeArray", []int{2}},
	MakeTuple:       {"MakeTuple", []int{2}},
	MakeMap:         {"MakeMap", []int{2}},
	MakeSet:         {"MakeSet", []int{2}},
	MakeRecord:      {"MakeRecord", []int{2}},
	MakeClosure:     {"MakeClosure", []int{2}},
	MakeEnvironment: {"MakeEnvironment", []int{2}},

	AssertFail: {"AssertFail", []int{2}},
	Rethrow:    {"Rethrow", nil},

	FormatConcat: {"FormatConcat", []int{2}},
}

// Lookup returns op's Definition.
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes one instruction: op followed by operands, each truncated
// (or sign-extended for the 8-byte immediates) to its defined width.
func Make(op Opcode, operands ...int64) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}
	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	ins := make([]byte, length)
	ins[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			ins[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(ins[offset:], uint16(operand))
		case 8:
			binary.BigEndian.PutUint64(ins[offset:], uint64(operand))
		}
		offset += width
	}
	return ins
}

// MakeFloat encodes a LoadFloat instruction from its float64 operand.
func MakeFloat(v float64) []byte {
	return Make(LoadFloat, int64(math.Float64bits(v)))
}

// String disassembles ins into one line per instruction.
func (ins Instructions) String() string {
	var out strings.Builder
	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			_, _ = fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		_, _ = fmt.Fprintf(&out, "%04d %s\n", i, ins.fmtInstruction(def, operands))
		i += read + 1
	}
	return out.String()
}

func (ins Instructions) fmtInstruction(def *Definition, operands []int64) string {
	if len(operands) != len(def.OperandWidths) {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d", len(operands), len(def.OperandWidths))
	}
	switch len(operands) {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}
	return fmt.Sprintf("ERROR: unhandled operand count for %s", def.Name)
}

// ReadOperands decodes the operands following an opcode byte, per def,
// and returns them with the total number of bytes consumed.
func ReadOperands(def *Definition, ins Instructions) ([]int64, int) {
	operands := make([]int64, len(def.OperandWidths))
	offset := 0
	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			operands[i] = int64(ins[offset])
		case 2:
			operands[i] = int64(binary.BigEndian.Uint16(ins[offset:]))
		case 8:
			operands[i] = int64(binary.BigEndian.Uint64(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadFloat decodes a LoadFloat instruction's bit-pattern operand back to
// a float64.
func ReadFloat(bits int64) float64 {
	return math.Float64frombits(uint64(bits))
}
