package vmvalue

import (
	"math/big"
	"strings"

	"github.com/dolthub/swiss"
)

func newHeader(k Kind) Header { return Header{Kind: k} }

// Integer is the heap representation SmallInteger promotes to on overflow
// (spec.md §4.7).
type Integer struct {
	hdr   Header
	Value big.Int
}

func NewInteger(v *big.Int) *Integer {
	i := &Integer{hdr: newHeader(KindInteger)}
	i.Value.Set(v)
	return i
}
func (i *Integer) Header() *Header        { return &i.hdr }
func (i *Integer) Walk(func(Value))       {}

// Float is always heap-allocated: spec.md gives no embedded-float tag.
type Float struct {
	hdr   Header
	Value float64
}

func NewFloat(v float64) *Float {
	return &Float{hdr: newHeader(KindFloat), Value: v}
}
func (f *Float) Header() *Header  { return &f.hdr }
func (f *Float) Walk(func(Value)) {}

// String is an immutable heap byte string. Two Strings holding identical
// bytes are distinct objects unless they pass through the same strtable
// interning layer upstream; String equality here is always byte-equality
// (Equal uses this directly), matching spec.md §4.7.
type String struct {
	hdr   Header
	Value string
}

func NewString(s string) *String {
	return &String{hdr: newHeader(KindString), Value: s}
}
func (s *String) Header() *Header  { return &s.hdr }
func (s *String) Walk(func(Value)) {}

// Symbol compares by the pointer identity of the interned name holder
// (spec.md §4.7), so two Symbols for the same text must be the same *Symbol
// — the module loader interns them through a table, never constructs one
// per occurrence.
type Symbol struct {
	hdr  Header
	Name string
}

func NewSymbol(name string) *Symbol {
	return &Symbol{hdr: newHeader(KindSymbol), Name: name}
}
func (s *Symbol) Header() *Header  { return &s.hdr }
func (s *Symbol) Walk(func(Value)) {}

// Tuple is a fixed-size immutable sequence.
type Tuple struct {
	hdr      Header
	Elements []Value
}

func NewTuple(elems []Value) *Tuple {
	return &Tuple{hdr: newHeader(KindTuple), Elements: elems}
}
func (t *Tuple) Header() *Header { return &t.hdr }
func (t *Tuple) Walk(fn func(Value)) {
	for _, v := range t.Elements {
		fn(v)
	}
}

// Record is a fixed-layout key/value aggregate built from a record
// template (member position is assigned at compile time, see ir.RecordTemplate).
type Record struct {
	hdr      Header
	Template *FunctionTemplate // re-used here only to hold the field-name list; see FunctionTemplate doc
	Fields   []Value
}

func NewRecord(tmpl *FunctionTemplate, fields []Value) *Record {
	return &Record{hdr: newHeader(KindRecord), Template: tmpl, Fields: fields}
}
func (r *Record) Header() *Header { return &r.hdr }
func (r *Record) Walk(fn func(Value)) {
	for _, v := range r.Fields {
		fn(v)
	}
}

// ArrayStorage is the growable backing buffer an Array wraps; kept as a
// distinct kind (spec.md §3) so an Array can reallocate its storage
// without changing identity, and so the storage itself is a walkable,
// independently-sized heap object.
type ArrayStorage struct {
	hdr      Header
	Elements []Value
}

func NewArrayStorage(capacity int) *ArrayStorage {
	return &ArrayStorage{hdr: newHeader(KindArrayStorage), Elements: make([]Value, 0, capacity)}
}
func (s *ArrayStorage) Header() *Header { return &s.hdr }
func (s *ArrayStorage) Walk(fn func(Value)) {
	for _, v := range s.Elements {
		fn(v)
	}
}

// Array is a growable, mutable sequence backed by an ArrayStorage.
type Array struct {
	hdr     Header
	Storage *ArrayStorage
}

func NewArray() *Array {
	return &Array{hdr: newHeader(KindArray), Storage: NewArrayStorage(0)}
}
func (a *Array) Header() *Header { return &a.hdr }
func (a *Array) Walk(fn func(Value)) {
	fn(FromObject(a.Storage))
}
func (a *Array) Len() int { return len(a.Storage.Elements) }
func (a *Array) Get(i int) Value { return a.Storage.Elements[i] }
func (a *Array) Push(v Value) {
	a.Storage.Elements = append(a.Storage.Elements, v)
}

// HashTableStorage wraps the swiss-table index that backs a HashTable.
// Kept as a distinct heap kind per spec.md §3: the collector walks it
// directly rather than reaching through HashTable.
type HashTableStorage struct {
	hdr   Header
	index *swiss.Map[any, int]
	keys  []Value
	vals  []Value
}

func newHashTableStorage() *HashTableStorage {
	return &HashTableStorage{
		hdr:   newHeader(KindHashTableStorage),
		index: swiss.NewMap[any, int](8),
	}
}
func (s *HashTableStorage) Header() *Header { return &s.hdr }
func (s *HashTableStorage) Walk(fn func(Value)) {
	for i := range s.keys {
		fn(s.keys[i])
		fn(s.vals[i])
	}
}

// HashTable is the Value-keyed map object. Keys are compared with Equal's
// NaN/identity rules via HashBucket, not Go's native comparison, so a
// dolthub/swiss index keyed on `any` (HashBucket's canonical form) stands
// in for the spec's custom hash/equality table. Entries themselves live
// in insertion-ordered keys/vals slices beside the index; the collector's
// walk and HashTableIterator both go through those slices, not the index.
type HashTable struct {
	hdr     Header
	Storage *HashTableStorage
}

func NewHashTable() *HashTable {
	return &HashTable{hdr: newHeader(KindHashTable), Storage: newHashTableStorage()}
}
func (h *HashTable) Header() *Header { return &h.hdr }
func (h *HashTable) Walk(fn func(Value)) {
	fn(FromObject(h.Storage))
}

func (h *HashTable) Get(key Value) (Value, bool) {
	idx, ok := h.Storage.index.Get(HashBucket(key))
	if !ok {
		return Value{}, false
	}
	return h.Storage.vals[idx], true
}

func (h *HashTable) Set(key, value Value) {
	bucket := HashBucket(key)
	if idx, ok := h.Storage.index.Get(bucket); ok {
		h.Storage.vals[idx] = value
		return
	}
	idx := len(h.Storage.keys)
	h.Storage.keys = append(h.Storage.keys, key)
	h.Storage.vals = append(h.Storage.vals, value)
	h.Storage.index.Put(bucket, idx)
}

func (h *HashTable) Len() int { return len(h.Storage.keys) }

// HashTableIterator walks a HashTable's entries in insertion order,
// exhausting to vmvalue.StopIteration like the host-visible iteration
// protocol spec.md §3 names.
type HashTableIterator struct {
	hdr   Header
	table *HashTable
	next  int
}

func NewHashTableIterator(t *HashTable) *HashTableIterator {
	return &HashTableIterator{hdr: newHeader(KindHashTableIterator), table: t}
}
func (it *HashTableIterator) Header() *Header { return &it.hdr }
func (it *HashTableIterator) Walk(fn func(Value)) {
	fn(FromObject(it.table))
}

// Next returns the next (key, value) Tuple, or StopIteration once every
// entry present at iterator-creation time (plus later Set appends) has
// been visited.
func (it *HashTableIterator) Next() Value {
	if it.next >= len(it.table.Storage.keys) {
		return StopIteration
	}
	k, v := it.table.Storage.keys[it.next], it.table.Storage.vals[it.next]
	it.next++
	return FromObject(NewTuple([]Value{k, v}))
}

// Buffer is a raw mutable byte buffer, the host-visible binary data type.
type Buffer struct {
	hdr  Header
	Data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{hdr: newHeader(KindBuffer), Data: data}
}
func (b *Buffer) Header() *Header  { return &b.hdr }
func (b *Buffer) Walk(func(Value)) {}

// StringBuilder is the mutable accumulator for string concatenation and
// the `FormatConcat` opcode's interpreter-side helper.
type StringBuilder struct {
	hdr Header
	buf strings.Builder
}

func NewStringBuilder() *StringBuilder {
	return &StringBuilder{hdr: newHeader(KindStringBuilder)}
}
func (b *StringBuilder) Header() *Header  { return &b.hdr }
func (b *StringBuilder) Walk(func(Value)) {}
func (b *StringBuilder) WriteString(s string) { b.buf.WriteString(s) }
func (b *StringBuilder) String() string        { return b.buf.String() }

// HandlerRange is one entry of a Code object's handler table: spec.md
// §3's "ordered list of (start-pc, end-pc, target-pc) ranges."
type HandlerRange struct {
	Start, End, Target int
}

// Code is the byte-addressable instruction buffer a FunctionTemplate owns.
type Code struct {
	hdr      Header
	Bytes    []byte
	Handlers []HandlerRange
}

func NewCode(bytes []byte, handlers []HandlerRange) *Code {
	return &Code{hdr: newHeader(KindCode), Bytes: bytes, Handlers: handlers}
}
func (c *Code) Header() *Header  { return &c.hdr }
func (c *Code) Walk(func(Value)) {}

// HandlerFor returns the innermost handler range covering pc, or false if
// none does (spec.md §4.7 step 5: "the innermost covering range is the
// active handler").
func (c *Code) HandlerFor(pc int) (HandlerRange, bool) {
	best := HandlerRange{Start: -1, End: -1, Target: -1}
	found := false
	for _, h := range c.Handlers {
		if pc < h.Start || pc >= h.End {
			continue
		}
		if !found || (h.End-h.Start) < (best.End-best.Start) {
			best, found = h, true
		}
	}
	return best, found
}

// FunctionTemplate is the compile-time-constant part of a function: name,
// arity, frame shape, code, and (for Record templates re-used here as a
// field-name table) nothing executable at all. Kind distinguishes a
// Normal function template from a Closure one, per spec.md §3's bytecode
// function header.
type FunctionTemplateKind byte

const (
	TemplateNormal FunctionTemplateKind = iota
	TemplateClosure
)

type FunctionTemplate struct {
	hdr          Header
	Name         string
	NumParams    int
	NumRegisters int
	Kind         FunctionTemplateKind
	Code         *Code
	FieldNames   []string // populated only when re-used as a record template
	Module       *Module  // owning module, for LoadConst/LoadModule/StoreModule resolution
}

func NewFunctionTemplate(name string, numParams, numRegisters int, kind FunctionTemplateKind, code *Code) *FunctionTemplate {
	return &FunctionTemplate{
		hdr:          newHeader(KindFunctionTemplate),
		Name:         name,
		NumParams:    numParams,
		NumRegisters: numRegisters,
		Kind:         kind,
		Code:         code,
	}
}
func (t *FunctionTemplate) Header() *Header { return &t.hdr }
func (t *FunctionTemplate) Walk(fn func(Value)) {
	if t.Code != nil {
		fn(FromObject(t.Code))
	}
}

// Environment is the fixed-size captured-variable vector spec.md §3
// describes, with an optional parent forming the closure environment
// chain.
type Environment struct {
	hdr    Header
	Parent *Environment
	Slots  []Value
}

func NewEnvironment(parent *Environment, size int) *Environment {
	return &Environment{hdr: newHeader(KindEnvironment), Parent: parent, Slots: make([]Value, size)}
}
func (e *Environment) Header() *Header { return &e.hdr }
func (e *Environment) Walk(fn func(Value)) {
	for _, v := range e.Slots {
		fn(v)
	}
	if e.Parent != nil {
		fn(FromObject(e.Parent))
	}
}

// Function pairs a FunctionTemplate with the environment it closed over;
// a template with no captures is paired with a nil Env.
type Function struct {
	hdr      Header
	Template *FunctionTemplate
	Env      *Environment
}

func NewFunction(tmpl *FunctionTemplate, env *Environment) *Function {
	return &Function{hdr: newHeader(KindFunction), Template: tmpl, Env: env}
}
func (f *Function) Header() *Header { return &f.hdr }
func (f *Function) Walk(fn func(Value)) {
	fn(FromObject(f.Template))
	if f.Env != nil {
		fn(FromObject(f.Env))
	}
}

// Method is an unbound method value read off a Type; BoundMethod pairs one
// with a receiver.
type Method struct {
	hdr      Header
	Name     string
	Function Value
}

func NewMethod(name string, fn Value) *Method {
	return &Method{hdr: newHeader(KindMethod), Name: name, Function: fn}
}
func (m *Method) Header() *Header      { return &m.hdr }
func (m *Method) Walk(fn func(Value))  { fn(m.Function) }

type BoundMethod struct {
	hdr      Header
	Receiver Value
	Method   *Method
}

func NewBoundMethod(receiver Value, method *Method) *BoundMethod {
	return &BoundMethod{hdr: newHeader(KindBoundMethod), Receiver: receiver, Method: method}
}
func (b *BoundMethod) Header() *Header { return &b.hdr }
func (b *BoundMethod) Walk(fn func(Value)) {
	fn(b.Receiver)
	fn(FromObject(b.Method))
}

// Type describes a runtime type for reflection and method dispatch;
// InternalType is the same shape used for the VM's own built-in kinds
// (Integer, String, …) so every Value's Kind has a Type object to report
// through a host-visible `typeof`.
type Type struct {
	hdr     Header
	Name    string
	Methods map[string]*Method
}

func NewType(name string) *Type {
	return &Type{hdr: newHeader(KindType), Name: name, Methods: make(map[string]*Method)}
}
func (t *Type) Header() *Header { return &t.hdr }
func (t *Type) Walk(fn func(Value)) {
	for _, m := range t.Methods {
		fn(FromObject(m))
	}
}

type InternalType struct {
	hdr  Header
	Kind Kind
	Name string
}

func NewInternalType(k Kind) *InternalType {
	return &InternalType{hdr: newHeader(KindInternalType), Kind: k, Name: k.String()}
}
func (t *InternalType) Header() *Header  { return &t.hdr }
func (t *InternalType) Walk(func(Value)) {}

// Module is the runtime form of a loaded bytecode module (package loader
// populates these): named members reachable by both index and name.
type Module struct {
	hdr         Header
	Name        string
	Members     []Value
	MemberNames map[string]int
	Initialized bool
}

func NewModule(name string, numMembers int) *Module {
	return &Module{
		hdr:         newHeader(KindModule),
		Name:        name,
		Members:     make([]Value, numMembers),
		MemberNames: make(map[string]int),
	}
}
func (m *Module) Header() *Header { return &m.hdr }
func (m *Module) Walk(fn func(Value)) {
	for _, v := range m.Members {
		fn(v)
	}
}

// NativeFunc is a host function callable synchronously from bytecode.
type NativeFunc func(args []Value) (Value, error)

type NativeFunction struct {
	hdr  Header
	Name string
	Fn   NativeFunc
}

func NewNativeFunction(name string, fn NativeFunc) *NativeFunction {
	return &NativeFunction{hdr: newHeader(KindNativeFunction), Name: name, Fn: fn}
}
func (n *NativeFunction) Header() *Header  { return &n.hdr }
func (n *NativeFunction) Walk(func(Value)) {}

// NativeAsyncFunc is a host function that may complete synchronously (by
// calling resume before returning) or asynchronously (storing resume and
// calling it later from host callback code) — spec.md §4.8's suspension
// point. resume must be called at most once; sched.WrapResume gives a
// native a closure that rejects a second call.
type NativeAsyncFunc func(args []Value, resume func(Value, error))

type NativeAsyncFunction struct {
	hdr  Header
	Name string
	Fn   NativeAsyncFunc
}

func NewNativeAsyncFunction(name string, fn NativeAsyncFunc) *NativeAsyncFunction {
	return &NativeAsyncFunction{hdr: newHeader(KindNativeAsyncFunction), Name: name, Fn: fn}
}
func (n *NativeAsyncFunction) Header() *Header  { return &n.hdr }
func (n *NativeAsyncFunction) Walk(func(Value)) {}

// NativeObject embeds an arbitrary host payload with an optional finalizer
// — spec.md §4.5 names this the only heap kind the sweep phase finalizes.
type NativeObject struct {
	hdr       Header
	Payload   any
	Finalizer func(any)
}

func NewNativeObject(payload any, finalizer func(any)) *NativeObject {
	return &NativeObject{hdr: newHeader(KindNativeObject), Payload: payload, Finalizer: finalizer}
}
func (n *NativeObject) Header() *Header  { return &n.hdr }
func (n *NativeObject) Walk(func(Value)) {}

// NativePointer wraps an opaque host pointer with no GC-visible fields;
// the VM never dereferences it, only round-trips it through native calls.
type NativePointer struct {
	hdr Header
	Ptr any
}

func NewNativePointer(ptr any) *NativePointer {
	return &NativePointer{hdr: newHeader(KindNativePointer), Ptr: ptr}
}
func (n *NativePointer) Header() *Header  { return &n.hdr }
func (n *NativePointer) Walk(func(Value)) {}
