package irbuild

import (
	"math"

	"github.com/dr8co/hammer/ir"
)

// foldUnary evaluates a unary operator at construction time when its
// operand is a known constant, returning ok=false when folding does not
// apply (non-constant operand, or a type combination left to the
// interpreter to reject at runtime).
func foldUnary(op ir.UnaryOpKind, c ir.Constant, ok bool) (ir.Constant, bool) {
	if !ok {
		return ir.Constant{}, false
	}
	switch op {
	case ir.UnaryNeg:
		switch c.Kind {
		case ir.ConstInt:
			if c.Int == math.MinInt64 {
				return ir.Constant{}, false
			}
			return ir.Constant{Kind: ir.ConstInt, Int: -c.Int}, true
		case ir.ConstFloat:
			return ir.Constant{Kind: ir.ConstFloat, Flt: -c.Flt}, true
		}
	case ir.UnaryPos:
		switch c.Kind {
		case ir.ConstInt, ir.ConstFloat:
			return c, true
		}
	case ir.UnaryNot:
		if c.Kind == ir.ConstBool {
			return ir.Constant{Kind: ir.ConstBool, Bool: !c.Bool}, true
		}
	case ir.UnaryBNot:
		if c.Kind == ir.ConstInt {
			return ir.Constant{Kind: ir.ConstInt, Int: ^c.Int}, true
		}
	}
	return ir.Constant{}, false
}

// foldBinary evaluates a binary operator at construction time when both
// operands are known constants of matching, foldable kinds. Division and
// modulo by zero, and integer results that overflow int64, are
// deliberately left unfolded — the builder must never
// fail or panic (spec.md §4.1), so a zero divisor is left as a live
// BinaryOp for the interpreter to reject with a guest-visible error.
func foldBinary(op ir.BinaryOpKind, l ir.Constant, lok bool, r ir.Constant, rok bool) (ir.Constant, bool) {
	if !lok || !rok {
		return ir.Constant{}, false
	}
	if l.Kind == ir.ConstInt && r.Kind == ir.ConstInt {
		if c, ok := foldIntBinary(op, l.Int, r.Int); ok {
			return c, true
		}
		return ir.Constant{}, false
	}
	if (l.Kind == ir.ConstFloat || l.Kind == ir.ConstInt) && (r.Kind == ir.ConstFloat || r.Kind == ir.ConstInt) {
		lf, rf := asFloat(l), asFloat(r)
		if c, ok := foldFloatBinary(op, lf, rf); ok {
			return c, true
		}
		return ir.Constant{}, false
	}
	if l.Kind == ir.ConstString && r.Kind == ir.ConstString && op == ir.BinAdd {
		return ir.Constant{Kind: ir.ConstString, Str: l.Str + r.Str}, true
	}
	if l.Kind == ir.ConstBool && r.Kind == ir.ConstBool {
		switch op {
		case ir.BinEq:
			return ir.Constant{Kind: ir.ConstBool, Bool: l.Bool == r.Bool}, true
		case ir.BinNEq:
			return ir.Constant{Kind: ir.ConstBool, Bool: l.Bool != r.Bool}, true
		}
	}
	return ir.Constant{}, false
}

func asFloat(c ir.Constant) float64 {
	if c.Kind == ir.ConstInt {
		return float64(c.Int)
	}
	return c.Flt
}

func foldIntBinary(op ir.BinaryOpKind, l, r int64) (ir.Constant, bool) {
	switch op {
	case ir.BinAdd:
		s := l + r
		if (s > l) != (r > 0) {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstInt, Int: s}, true
	case ir.BinSub:
		d := l - r
		if (d < l) != (r > 0) {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstInt, Int: d}, true
	case ir.BinMul:
		p := l * r
		if l != 0 && (p/l != r || (l == -1 && r == math.MinInt64)) {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstInt, Int: p}, true
	case ir.BinDiv:
		if r == 0 || (l == math.MinInt64 && r == -1) {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstInt, Int: l / r}, true
	case ir.BinMod:
		if r == 0 {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstInt, Int: l % r}, true
	case ir.BinGt:
		return ir.Constant{Kind: ir.ConstBool, Bool: l > r}, true
	case ir.BinGte:
		return ir.Constant{Kind: ir.ConstBool, Bool: l >= r}, true
	case ir.BinLt:
		return ir.Constant{Kind: ir.ConstBool, Bool: l < r}, true
	case ir.BinLte:
		return ir.Constant{Kind: ir.ConstBool, Bool: l <= r}, true
	case ir.BinEq:
		return ir.Constant{Kind: ir.ConstBool, Bool: l == r}, true
	case ir.BinNEq:
		return ir.Constant{Kind: ir.ConstBool, Bool: l != r}, true
	}
	return ir.Constant{}, false
}

func foldFloatBinary(op ir.BinaryOpKind, l, r float64) (ir.Constant, bool) {
	switch op {
	case ir.BinAdd:
		return ir.Constant{Kind: ir.ConstFloat, Flt: l + r}, true
	case ir.BinSub:
		return ir.Constant{Kind: ir.ConstFloat, Flt: l - r}, true
	case ir.BinMul:
		return ir.Constant{Kind: ir.ConstFloat, Flt: l * r}, true
	case ir.BinDiv:
		if r == 0 {
			return ir.Constant{}, false
		}
		return ir.Constant{Kind: ir.ConstFloat, Flt: l / r}, true
	case ir.BinGt:
		return ir.Constant{Kind: ir.ConstBool, Bool: l > r}, true
	case ir.BinGte:
		return ir.Constant{Kind: ir.ConstBool, Bool: l >= r}, true
	case ir.BinLt:
		return ir.Constant{Kind: ir.ConstBool, Bool: l < r}, true
	case ir.BinLte:
		return ir.Constant{Kind: ir.ConstBool, Bool: l <= r}, true
	case ir.BinEq:
		return ir.Constant{Kind: ir.ConstBool, Bool: l == r}, true
	case ir.BinNEq:
		return ir.Constant{Kind: ir.ConstBool, Bool: l != r}, true
	}
	return ir.Constant{}, false
}
