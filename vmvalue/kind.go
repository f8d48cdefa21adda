// Package vmvalue implements the runtime value and object model: a tagged
// machine word (Value) over a closed set of heap object kinds, grounded on
// spec.md §3 and original_source/lib/hammer/vm/value.cpp's ValueType /
// HAMMER_HEAP_TYPES scheme.
//
// Go gives no safe way to steal the low bits of a real pointer the way the
// C++ original does, so Value here is a small tagged struct rather than a
// literal tagged word: a Kind byte plus the one field that kind actually
// uses. The three-way split the spec describes (heap pointer / embedded
// small integer / constant sentinel) survives as three disjoint groups of
// Kind values, not as pointer bit tricks.
package vmvalue

// Kind identifies what a Value or heap Object holds. The set is closed:
// every variant spec.md §3 lists has exactly one Kind here.
type Kind byte

const (
	KindNull Kind = iota
	KindBoolean
	KindSmallInteger
	KindUndefined
	KindStopIteration

	KindInteger
	KindFloat
	KindString
	KindSymbol
	KindTuple
	KindRecord
	KindArray
	KindArrayStorage
	KindHashTable
	KindHashTableStorage
	KindHashTableIterator
	KindBuffer
	KindCode
	KindFunctionTemplate
	KindEnvironment
	KindFunction
	KindBoundMethod
	KindMethod
	KindModule
	KindType
	KindInternalType
	KindNativeFunction
	KindNativeAsyncFunction
	KindNativeObject
	KindNativePointer
	KindCoroutine
	KindCoroutineStack
	KindStringBuilder
)

var kindNames = map[Kind]string{
	KindNull:                "Null",
	KindBoolean:             "Boolean",
	KindSmallInteger:        "SmallInteger",
	KindUndefined:           "Undefined",
	KindStopIteration:       "StopIteration",
	KindInteger:             "Integer",
	KindFloat:               "Float",
	KindString:              "String",
	KindSymbol:              "Symbol",
	KindTuple:               "Tuple",
	KindRecord:              "Record",
	KindArray:               "Array",
	KindArrayStorage:        "ArrayStorage",
	KindHashTable:           "HashTable",
	KindHashTableStorage:    "HashTableStorage",
	KindHashTableIterator:   "HashTableIterator",
	KindBuffer:              "Buffer",
	KindCode:                "Code",
	KindFunctionTemplate:    "FunctionTemplate",
	KindEnvironment:         "Environment",
	KindFunction:            "Function",
	KindBoundMethod:         "BoundMethod",
	KindMethod:              "Method",
	KindModule:              "Module",
	KindType:                "Type",
	KindInternalType:        "InternalType",
	KindNativeFunction:      "NativeFunction",
	KindNativeAsyncFunction: "NativeAsyncFunction",
	KindNativeObject:        "NativeObject",
	KindNativePointer:       "NativePointer",
	KindCoroutine:           "Coroutine",
	KindCoroutineStack:      "CoroutineStack",
	KindStringBuilder:       "StringBuilder",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "InvalidKind"
}

// isHeapKind reports whether values of k are represented by a heap Object
// pointer rather than inline in the Value struct.
func (k Kind) isHeapKind() bool {
	switch k {
	case KindNull, KindBoolean, KindSmallInteger, KindUndefined, KindStopIteration:
		return false
	default:
		return true
	}
}
