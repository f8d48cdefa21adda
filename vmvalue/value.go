package vmvalue

import "math"

// Value is the tagged word spec.md §3 describes: either a heap Object
// pointer, an embedded SmallInteger payload, or one of a handful of
// constant sentinels. Exactly one of obj/small is meaningful, selected by
// kind — callers must not inspect the other.
type Value struct {
	kind  Kind
	small int64 // SmallInteger payload, or packed bool (0/1)
	obj   Object
}

// Null, True, False, Undefined and StopIteration are the constant
// sentinels: package-level values shared by every VM, not re-created per
// call.
var (
	Null          = Value{kind: KindNull}
	True          = Value{kind: KindBoolean, small: 1}
	False         = Value{kind: KindBoolean, small: 0}
	Undefined     = Value{kind: KindUndefined}
	StopIteration = Value{kind: KindStopIteration}
)

// NewSmallInt returns a Value embedding i without any heap allocation.
// Interpreter arithmetic is responsible for promoting to a heap Integer on
// overflow (spec.md §4.7): this constructor never checks range itself.
func NewSmallInt(i int64) Value { return Value{kind: KindSmallInteger, small: i} }

// NewBool returns True or False.
func NewBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromObject wraps a heap object as a Value. Panics if obj is nil.
func FromObject(obj Object) Value {
	if obj == nil {
		panic("vmvalue: FromObject(nil)")
	}
	return Value{kind: obj.Header().Kind, obj: obj}
}

// Kind reports v's runtime type.
func (v Value) Kind() Kind { return v.kind }

// IsHeapPtr reports whether v's payload is a heap Object.
func (v Value) IsHeapPtr() bool { return v.kind.isHeapKind() }

// IsNull reports whether v is the Null sentinel.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Object returns v's heap payload, or nil if v is not heap-backed.
func (v Value) Object() Object {
	if !v.IsHeapPtr() {
		return nil
	}
	return v.obj
}

// Bool returns v's boolean payload. Callers must check Kind first.
func (v Value) Bool() bool { return v.small != 0 }

// SmallInt returns v's embedded integer payload. Callers must check Kind
// first.
func (v Value) SmallInt() int64 { return v.small }

// Equal implements spec.md §4.7's equality tie-breaks: byte-equality for
// strings, pointer identity for symbols and interned strings, false for any
// comparison touching NaN, structural equality for SmallInteger vs heap
// Integer of equal value.
func Equal(a, b Value) bool {
	af, aIsFloat := a.asFloatIfAny()
	bf, bIsFloat := b.asFloatIfAny()
	if aIsFloat || bIsFloat {
		if !aIsFloat {
			af = numericToFloat(a)
		}
		if !bIsFloat {
			bf = numericToFloat(b)
		}
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		return af == bf
	}

	switch a.kind {
	case KindNull, KindUndefined, KindStopIteration:
		return a.kind == b.kind
	case KindBoolean:
		return b.kind == KindBoolean && a.small == b.small
	case KindSmallInteger:
		if b.kind == KindInteger {
			bi := &b.obj.(*Integer).Value
			return bi.IsInt64() && bi.Int64() == a.small
		}
		return b.kind == KindSmallInteger && b.small == a.small
	}
	if a.kind == KindInteger && isIntegerKind(b.kind) {
		if b.kind == KindSmallInteger {
			return Equal(b, a)
		}
		return a.obj.(*Integer).Value.Cmp(&b.obj.(*Integer).Value) == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch obj := a.obj.(type) {
	case *String:
		other, ok := b.obj.(*String)
		return ok && obj.Value == other.Value
	case *Symbol:
		return a.obj == b.obj // pointer identity of the interned name holder
	default:
		return a.obj == b.obj
	}
}

func isIntegerKind(k Kind) bool { return k == KindSmallInteger || k == KindInteger }

func intValue(v Value) int64 {
	if v.kind == KindSmallInteger {
		return v.small
	}
	if bi, ok := v.obj.(*Integer); ok {
		return bi.Value.Int64()
	}
	return 0
}

func (v Value) asFloatIfAny() (float64, bool) {
	if v.kind == KindFloat {
		f, _ := v.obj.(*Float)
		return f.Value, true
	}
	return 0, false
}

func numericToFloat(v Value) float64 {
	return float64(intValue(v))
}

// HashBucket returns a canonical value suitable for use as a Go map key
// when v is used as a HashTable key: NaN collapses to one sentinel bit
// pattern so it can appear (once, unreachable by lookup) as a table key
// per spec.md §4.7.
func HashBucket(v Value) any {
	switch v.kind {
	case KindFloat:
		f := v.obj.(*Float).Value
		if math.IsNaN(f) {
			return "vmvalue:nan"
		}
		return f
	case KindSmallInteger, KindInteger:
		return intValue(v)
	case KindString:
		return v.obj.(*String).Value
	case KindBoolean:
		return v.small != 0
	case KindSymbol:
		return v.obj // pointer identity
	default:
		return v.obj
	}
}
