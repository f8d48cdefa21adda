package ir

import (
	"fmt"
	"strings"
)

// Dump renders fn as human-readable text, one line per instruction and
// terminator, grouped by block — the --dump-ir CLI flag's output format.
func Dump(fn *Function) string {
	var out strings.Builder
	fmt.Fprintf(&out, "func %s(%d params):\n", fn.Name, len(fn.Params))
	for _, b := range fn.Blocks() {
		fmt.Fprintf(&out, "%s:\n", blockLabel(b))
		for _, id := range b.Insts {
			inst := fn.Inst(id)
			if inst.Value == nil {
				continue // dead, compacted by DCE but id not yet reused
			}
			name := inst.Name
			if name == "" {
				name = fmt.Sprintf("%%%d", id)
			}
			fmt.Fprintf(&out, "    %s = %s\n", name, formatValue(inst.Value))
		}
		fmt.Fprintf(&out, "    %s\n", formatTerminator(b.Terminator))
	}
	return out.String()
}

func blockLabel(b *Block) string {
	if b.Label != "" {
		return fmt.Sprintf("b%d (%s)", b.ID, b.Label)
	}
	return fmt.Sprintf("b%d", b.ID)
}

func formatValue(v Value) string {
	switch v := v.(type) {
	case Constant:
		switch v.Kind {
		case ConstNull:
			return "const null"
		case ConstBool:
			return fmt.Sprintf("const %t", v.Bool)
		case ConstInt:
			return fmt.Sprintf("const %d", v.Int)
		case ConstFloat:
			return fmt.Sprintf("const %g", v.Flt)
		case ConstString:
			return fmt.Sprintf("const %q", v.Str)
		}
	case ParamRead:
		return fmt.Sprintf("param %d", v.Param)
	case *Phi:
		return fmt.Sprintf("phi %v", v.Args)
	case UnaryOp:
		return fmt.Sprintf("%s %%%d", unaryOpName(v.Op), v.Operand)
	case BinaryOp:
		return fmt.Sprintf("%%%d %s %%%d", v.LHS, binaryOpName(v.Op), v.RHS)
	case Call:
		return fmt.Sprintf("call %%%d %v", v.Callee, v.Args)
	case GlobalRef:
		return fmt.Sprintf("global %q", v.Name)
	case UseLValue:
		return fmt.Sprintf("load %s", formatLValue(v.LValue))
	case StoreLValue:
		return fmt.Sprintf("store %s <- %%%d", formatLValue(v.LValue), v.Value)
	case Alias:
		return fmt.Sprintf("alias %%%d", v.Target)
	case SelfClosure:
		return "self_closure"
	case OuterEnvironment:
		return "outer_env"
	case MakeEnvironment:
		return fmt.Sprintf("make_env parent=%%%d slots=%d", v.Parent, v.Slots)
	case MakeClosure:
		return fmt.Sprintf("make_closure template=%d env=%%%d", v.FuncTemplate, v.Env)
	case MakeContainer:
		return fmt.Sprintf("%s %v", containerName(v.Kind), v.Elements)
	case MakeMap:
		return fmt.Sprintf("make_map keys=%v values=%v", v.Keys, v.Values)
	case MakeRecord:
		return fmt.Sprintf("make_record template=%d %v", v.Template, v.Fields)
	case FormatString:
		return fmt.Sprintf("format %v", v.Parts)
	}
	return "?"
}

func formatLValue(l LValue) string {
	switch l := l.(type) {
	case LValueClosure:
		return fmt.Sprintf("closure(%d, %d)", l.Depth, l.Index)
	case LValueModule:
		return fmt.Sprintf("module(%d)", l.Member)
	case LValueIndex:
		return fmt.Sprintf("%%%d[%%%d]", l.Target, l.Index)
	case LValueField:
		return fmt.Sprintf("%%%d.%s", l.Target, l.Name)
	}
	return "?"
}

func formatTerminator(t Terminator) string {
	switch t := t.(type) {
	case Unreachable:
		return "unreachable"
	case Jump:
		return fmt.Sprintf("jmp %s", blockRef(t.Target))
	case Branch:
		return fmt.Sprintf("br %%%d, %s, %s", t.Cond, blockRef(t.IfTrue), blockRef(t.IfFalse))
	case Return:
		if t.Value.valid() {
			return fmt.Sprintf("return %%%d", t.Value)
		}
		return "return null"
	case Rethrow:
		return fmt.Sprintf("rethrow %%%d", t.Value)
	}
	return "?"
}

func blockRef(id BlockID) string { return fmt.Sprintf("b%d", id) }

func unaryOpName(op UnaryOpKind) string {
	switch op {
	case UnaryPos:
		return "uadd"
	case UnaryNeg:
		return "usub"
	case UnaryNot:
		return "lnot"
	case UnaryBNot:
		return "bnot"
	}
	return "?"
}

func binaryOpName(op BinaryOpKind) string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinMod:
		return "%"
	case BinPow:
		return "**"
	case BinGt:
		return ">"
	case BinGte:
		return ">="
	case BinLt:
		return "<"
	case BinLte:
		return "<="
	case BinEq:
		return "=="
	case BinNEq:
		return "!="
	}
	return "?"
}

func containerName(k ContainerKind) string {
	switch k {
	case ContainerArray:
		return "make_array"
	case ContainerTuple:
		return "make_tuple"
	case ContainerSet:
		return "make_set"
	}
	return "?"
}
