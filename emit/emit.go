// Package emit lowers an allocated ir.Function into bytecode.Instructions:
// spec.md §4.4's final pipeline stage. It walks the function in reverse
// postorder, translating every register read/write the allocator assigned
// into a LoadLocal/StoreLocal pair around the corresponding opcode
// (spec.md §4.7: "the abstraction is not re-introduced at runtime"),
// and resolves block-to-block jumps in a second pass once every block's
// final byte offset is known — symbolic labels first, patched addresses
// second, grounded on the teacher compiler's emit/backpatch split
// (compiler.go's emit/changeOperand) generalized from ad hoc backpatch
// positions to a block-offset table.
package emit

import (
	"fmt"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/regalloc"
	"github.com/dr8co/hammer/strtable"
)

// Function is one compiled function, ready for the loader to attach to a
// runtime module.
type Function struct {
	Name       string
	NumParams  int
	NumRegisters int
	Code       bytecode.Instructions
}

type fixup struct {
	pos    int // byte offset of the instruction's opcode byte
	op     bytecode.Opcode
	target ir.BlockID
}

type emitter struct {
	fn     *ir.Function
	alloc  *regalloc.Allocation
	strs   *strtable.Table
	buf    []byte
	blockOffset map[ir.BlockID]int
	fixups []fixup
	err    error
}

// EmitFunction emits fn's bytecode body. fn must already be critical-edge
// split, CSSA-constructed, and allocated (packages irpass, regalloc) —
// emission performs no further IR transformation.
func EmitFunction(fn *ir.Function, alloc *regalloc.Allocation, strs *strtable.Table) (*Function, error) {
	e := &emitter{
		fn:          fn,
		alloc:       alloc,
		strs:        strs,
		blockOffset: make(map[ir.BlockID]int),
	}
	order := ir.ReversePostorder(fn)
	for _, id := range order {
		e.blockOffset[id] = len(e.buf)
		block := fn.Block(id)
		for _, instID := range block.Insts {
			inst := fn.Inst(instID)
			if inst.Value == nil {
				continue // dead code already cleared by irpass.EliminateDeadCode
			}
			e.emitValue(instID, inst.Value)
		}
		e.emitTerminator(block.Terminator)
	}
	if e.err != nil {
		return nil, e.err
	}
	for _, fx := range e.fixups {
		target, ok := e.blockOffset[fx.target]
		if !ok {
			return nil, fmt.Errorf("emit: jump target block %d never emitted (unreachable?)", fx.target)
		}
		patched := bytecode.Make(fx.op, int64(target))
		copy(e.buf[fx.pos:], patched)
	}
	return &Function{
		Name:         fn.Name,
		NumParams:    len(fn.Params),
		NumRegisters: alloc.NumRegs,
		Code:         e.buf,
	}, nil
}

func (e *emitter) append(ins []byte) { e.buf = append(e.buf, ins...) }

// loadReg pushes the value an instruction's id refers to. Every
// register-bearing instruction was materialized into its local slot at
// definition time (store()), so a use anywhere else always reads it back
// this way, never by re-evaluating the producing instruction.
func (e *emitter) loadReg(id ir.InstID) {
	if !id.Valid() {
		e.append(bytecode.Make(bytecode.LoadNull))
		return
	}
	reg := e.alloc.RegisterOf(id)
	if reg < 0 {
		e.err = fmt.Errorf("emit: instruction %d has no register but is read", id)
		return
	}
	e.append(bytecode.Make(bytecode.LoadLocal, int64(reg)))
}

// store pops the just-computed value into id's register, or discards it
// with Pop if nothing reads it (an instruction kept alive only because
// dead-code elimination's side-effect root set required it).
func (e *emitter) store(id ir.InstID) {
	reg := e.alloc.RegisterOf(id)
	if reg < 0 {
		e.append(bytecode.Make(bytecode.Pop))
		return
	}
	e.append(bytecode.Make(bytecode.StoreLocal, int64(reg)))
}

func (e *emitter) emitValue(id ir.InstID, v ir.Value) {
	switch val := v.(type) {
	case ir.Constant:
		e.emitConstant(val)
		e.store(id)

	case ir.ParamRead:
		e.append(bytecode.Make(bytecode.LoadParam, int64(val.Param)))
		e.store(id)

	case ir.UnaryOp:
		e.loadReg(val.Operand)
		e.append(bytecode.Make(unaryOpcode(val.Op)))
		e.store(id)

	case ir.BinaryOp:
		e.loadReg(val.LHS)
		e.loadReg(val.RHS)
		e.append(bytecode.Make(binaryOpcode(val.Op)))
		e.store(id)

	case ir.Call:
		e.loadReg(val.Callee)
		for _, a := range val.Args {
			e.loadReg(a)
		}
		e.append(bytecode.Make(bytecode.Call, int64(len(val.Args))))
		e.store(id)

	case ir.UseLValue:
		e.emitLoadLValue(val.LValue)
		e.store(id)

	case ir.StoreLValue:
		e.emitStoreLValue(val.LValue, val.Value)

	case ir.Alias:
		// Coalesced by regalloc's canonicalization: the alias and its
		// target always share a register, so the copy is free.

	case *ir.Phi:
		// No code: every CSSA copy feeding this phi already wrote the
		// phi's own register at the predecessor's end.

	case ir.GlobalRef:
		e.append(bytecode.Make(bytecode.LoadGlobal, int64(e.strs.Intern(val.Name))))
		e.store(id)

	case ir.SelfClosure:
		e.append(bytecode.Make(bytecode.LoadSelfClosure))
		e.store(id)

	case ir.OuterEnvironment:
		e.append(bytecode.Make(bytecode.LoadOuterEnvironment))
		e.store(id)

	case ir.MakeEnvironment:
		if val.Parent.Valid() {
			e.loadReg(val.Parent)
		}
		e.append(bytecode.Make(bytecode.MakeEnvironment, int64(val.Slots)))
		e.store(id)

	case ir.MakeClosure:
		e.loadReg(val.Env)
		e.append(bytecode.Make(bytecode.MakeClosure, int64(val.FuncTemplate)))
		e.store(id)

	case ir.MakeContainer:
		for _, el := range val.Elements {
			e.loadReg(el)
		}
		e.append(bytecode.Make(containerOpcode(val.Kind), int64(len(val.Elements))))
		e.store(id)

	case ir.MakeMap:
		for i := range val.Keys {
			e.loadReg(val.Keys[i])
			e.loadReg(val.Values[i])
		}
		e.append(bytecode.Make(bytecode.MakeMap, int64(len(val.Keys))))
		e.store(id)

	case ir.MakeRecord:
		for _, f := range val.Fields {
			e.loadReg(f)
		}
		e.append(bytecode.Make(bytecode.MakeRecord, int64(val.Template)))
		e.store(id)

	case ir.FormatString:
		for _, p := range val.Parts {
			e.loadReg(p)
		}
		e.append(bytecode.Make(bytecode.FormatConcat, int64(len(val.Parts))))
		e.store(id)

	default:
		e.err = fmt.Errorf("emit: unhandled ir.Value %T", v)
	}
}

func (e *emitter) emitConstant(c ir.Constant) {
	switch c.Kind {
	case ir.ConstNull:
		e.append(bytecode.Make(bytecode.LoadNull))
	case ir.ConstBool:
		if c.Bool {
			e.append(bytecode.Make(bytecode.LoadTrue))
		} else {
			e.append(bytecode.Make(bytecode.LoadFalse))
		}
	case ir.ConstInt:
		e.append(bytecode.Make(bytecode.LoadInt, c.Int))
	case ir.ConstFloat:
		e.append(bytecode.MakeFloat(c.Flt))
	case ir.ConstString:
		e.append(bytecode.Make(bytecode.LoadConst, int64(e.strs.Intern(c.Str))))
	}
}

func (e *emitter) emitLoadLValue(l ir.LValue) {
	switch lv := l.(type) {
	case ir.LValueClosure:
		e.append(bytecode.Make(bytecode.LoadClosure, int64(lv.Depth), int64(lv.Index)))
	case ir.LValueModule:
		e.append(bytecode.Make(bytecode.LoadModule, int64(lv.Member)))
	case ir.LValueIndex:
		e.loadReg(lv.Target)
		e.loadReg(lv.Index)
		e.append(bytecode.Make(bytecode.LoadIndex))
	case ir.LValueField:
		e.loadReg(lv.Target)
		e.append(bytecode.Make(bytecode.LoadField, int64(e.strs.Intern(lv.Name))))
	}
}

func (e *emitter) emitStoreLValue(l ir.LValue, value ir.InstID) {
	switch lv := l.(type) {
	case ir.LValueClosure:
		e.loadReg(value)
		e.append(bytecode.Make(bytecode.StoreClosure, int64(lv.Depth), int64(lv.Index)))
	case ir.LValueModule:
		e.loadReg(value)
		e.append(bytecode.Make(bytecode.StoreModule, int64(lv.Member)))
	case ir.LValueIndex:
		e.loadReg(lv.Target)
		e.loadReg(lv.Index)
		e.loadReg(value)
		e.append(bytecode.Make(bytecode.StoreIndex))
	case ir.LValueField:
		e.loadReg(lv.Target)
		e.loadReg(value)
		e.append(bytecode.Make(bytecode.StoreField, int64(e.strs.Intern(lv.Name))))
	}
}

func (e *emitter) emitTerminator(t ir.Terminator) {
	switch term := t.(type) {
	case ir.Jump:
		e.emitJump(bytecode.Jmp, term.Target)
	case ir.Branch:
		e.loadReg(term.Cond)
		e.emitJump(bytecode.JmpFalsePop, term.IfFalse)
		e.emitJump(bytecode.Jmp, term.IfTrue)
	case ir.Return:
		e.loadReg(term.Value)
		e.append(bytecode.Make(bytecode.Return))
	case ir.Rethrow:
		e.loadReg(term.Value)
		e.append(bytecode.Make(bytecode.Rethrow))
	case ir.Unreachable:
		// No instructions: control must never reach here per construction.
	default:
		e.err = fmt.Errorf("emit: unhandled ir.Terminator %T", t)
	}
}

func (e *emitter) emitJump(op bytecode.Opcode, target ir.BlockID) {
	pos := len(e.buf)
	e.append(bytecode.Make(op, 0))
	e.fixups = append(e.fixups, fixup{pos: pos, op: op, target: target})
}

func unaryOpcode(op ir.UnaryOpKind) bytecode.Opcode {
	switch op {
	case ir.UnaryPos:
		return bytecode.UAdd
	case ir.UnaryNeg:
		return bytecode.USub
	case ir.UnaryNot:
		return bytecode.LNot
	case ir.UnaryBNot:
		return bytecode.BNot
	}
	panic("emit: unknown unary op")
}

func binaryOpcode(op ir.BinaryOpKind) bytecode.Opcode {
	switch op {
	case ir.BinAdd:
		return bytecode.Add
	case ir.BinSub:
		return bytecode.Sub
	case ir.BinMul:
		return bytecode.Mul
	case ir.BinDiv:
		return bytecode.Div
	case ir.BinMod:
		return bytecode.Mod
	case ir.BinPow:
		return bytecode.Pow
	case ir.BinGt:
		return bytecode.Gt
	case ir.BinGte:
		return bytecode.Gte
	case ir.BinLt:
		return bytecode.Lt
	case ir.BinLte:
		return bytecode.Lte
	case ir.BinEq:
		return bytecode.Eq
	case ir.BinNEq:
		return bytecode.NEq
	}
	panic("emit: unknown binary op")
}

func containerOpcode(k ir.ContainerKind) bytecode.Opcode {
	switch k {
	case ir.ContainerArray:
		return bytecode.MakeArray
	case ir.ContainerTuple:
		return bytecode.MakeTuple
	case ir.ContainerSet:
		return bytecode.MakeSet
	}
	panic("emit: unknown container kind")
}
