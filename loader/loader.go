// Package loader implements the module loader of spec.md §4.9: decoding
// the bytecode module file format of spec.md §6 into a runtime
// vmvalue.Module, resolving imports against a module registry, and
// gating a module's exports behind its initializer coroutine.
//
// Grounded on the teacher's two-phase "compile, then run" split in
// main.go, generalized from an in-process hand-off (compiler.Compile
// followed directly by vm.New(bytecode).Run) to a serialized artifact a
// host can persist and reload.
package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/sched"
	"github.com/dr8co/hammer/vmvalue"
)

const (
	magic          = "HAMR"
	formatVersion1 = 1
)

// Member tags, one byte, preceding each member's kind-specific body.
const (
	tagInteger byte = iota + 1
	tagFloat
	tagString
	tagSymbol
	tagFunction
	tagImport
	tagNull
	tagBool
	tagRecordTemplate
)

// Exported aliases of the tag* constants, for assemblers outside this
// package (hammer.Compile) building a Member.Kind without reaching into
// loader internals.
const (
	TagInteger       = tagInteger
	TagFloat         = tagFloat
	TagString        = tagString
	TagSymbol        = tagSymbol
	TagFunction      = tagFunction
	TagImport        = tagImport
	TagNull          = tagNull
	TagBool          = tagBool
	TagRecordTemplate = tagRecordTemplate
)

// CompiledFunction is one function member of a CompiledModule, the
// in-memory form emit.Function is translated into before encoding.
type CompiledFunction struct {
	Name         string
	NumParams    int
	NumRegisters int
	Handlers     []vmvalue.HandlerRange
	Code         []byte
}

// Import names an already-loaded module resolved by Module against a
// Registry at load time; the whole module object becomes the member's
// runtime value, bound under the importing member's own Name (`import
// foo;` binds local name "foo" to the module registered as "foo" — spec.md
// §4.9: "imports are resolved by name against a module registry"). A
// module value's members are then reachable through ordinary field
// access. Unresolved imports are a hard load error.
type Import struct {
	Module string
}

// Member is one entry of a CompiledModule's ordered member list; exactly
// one of Int/Float/Str/Bool/Fields/Function/Import is meaningful,
// discriminated by Kind. Name is the member's exported symbol, used to
// populate the runtime module's name table (vmvalue.Module.MemberNames);
// it is blank for tagFunction (named via Function.Name) and
// tagRecordTemplate (referenced only by member id, never by name — see
// ir.MakeRecord).
type Member struct {
	Kind byte // one of the tag* constants
	Name string

	Int      *big.Int
	Float    float64
	Bool     bool
	Str      string   // tagString and tagSymbol
	Fields   []string // tagRecordTemplate: the template's sorted field names
	Function *CompiledFunction
	Import   *Import
}

// CompiledModule is the pre-serialization description of a module: its
// name and ordered members, plus which member (if any) is the
// initializer function spec.md §4.9 requires be run before any other
// member is observed.
type CompiledModule struct {
	Name              string
	Members           []Member
	InitializerMember int // index into Members, -1 if the module has none
}

// Encode serializes m per spec.md §6's module file layout: a versioned
// header followed by a tagged member sequence.
func Encode(m *CompiledModule) []byte {
	var buf []byte
	buf = append(buf, magic...)
	buf = append(buf, formatVersion1)
	buf = appendString(buf, m.Name)
	buf = append(buf, bytecode.WriteVarUint(uint64(len(m.Members)))...)
	if m.InitializerMember < 0 {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = append(buf, bytecode.WriteVarUint(uint64(m.InitializerMember))...)
	}
	for _, mem := range m.Members {
		buf = append(buf, mem.Kind)
		switch mem.Kind {
		case tagInteger:
			buf = appendString(buf, mem.Name)
			buf = appendBigInt(buf, mem.Int)
		case tagFloat:
			buf = appendString(buf, mem.Name)
			var f [8]byte
			binary.BigEndian.PutUint64(f[:], math.Float64bits(mem.Float))
			buf = append(buf, f[:]...)
		case tagString, tagSymbol:
			buf = appendString(buf, mem.Name)
			buf = appendString(buf, mem.Str)
		case tagNull:
			buf = appendString(buf, mem.Name)
		case tagBool:
			buf = appendString(buf, mem.Name)
			b := byte(0)
			if mem.Bool {
				b = 1
			}
			buf = append(buf, b)
		case tagRecordTemplate:
			buf = append(buf, bytecode.WriteVarUint(uint64(len(mem.Fields)))...)
			for _, f := range mem.Fields {
				buf = appendString(buf, f)
			}
		case tagFunction:
			buf = appendFunction(buf, mem.Function)
		case tagImport:
			buf = appendString(buf, mem.Name)
			buf = appendString(buf, mem.Import.Module)
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, bytecode.WriteVarUint(uint64(len(s)))...)
	return append(buf, s...)
}

func appendBigInt(buf []byte, v *big.Int) []byte {
	sign := byte(0)
	if v.Sign() < 0 {
		sign = 1
	}
	mag := new(big.Int).Abs(v).Bytes()
	buf = append(buf, sign)
	buf = append(buf, bytecode.WriteVarUint(uint64(len(mag)))...)
	return append(buf, mag...)
}

func appendFunction(buf []byte, fn *CompiledFunction) []byte {
	buf = appendString(buf, fn.Name)
	buf = append(buf, bytecode.WriteVarUint(uint64(fn.NumParams))...)
	buf = append(buf, bytecode.WriteVarUint(uint64(fn.NumRegisters))...)
	buf = append(buf, bytecode.WriteVarUint(uint64(len(fn.Handlers)))...)
	for _, h := range fn.Handlers {
		buf = append(buf, bytecode.WriteVarUint(uint64(h.Start))...)
		buf = append(buf, bytecode.WriteVarUint(uint64(h.End))...)
		buf = append(buf, bytecode.WriteVarUint(uint64(h.Target))...)
	}
	buf = append(buf, bytecode.WriteVarUint(uint64(len(fn.Code)))...)
	return append(buf, fn.Code...)
}

// decoder walks a byte slice left to right, tracking how many bytes have
// been consumed; every read method panics on truncated input, recovered
// into an error at the Decode entry point (mirrors the teacher's
// lexer/parser convention of a single recover point per public parse
// entry, rather than threading (n int, err error) through every helper).
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) bytes(n int) []byte {
	if d.pos+n > len(d.data) {
		panic(fmt.Errorf("loader: truncated module at byte %d", d.pos))
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) byte() byte { return d.bytes(1)[0] }

func (d *decoder) varuint() uint64 {
	v, n := bytecode.ReadVarUint(d.data[d.pos:])
	if n == 0 {
		panic(fmt.Errorf("loader: truncated varuint at byte %d", d.pos))
	}
	d.pos += n
	return v
}

func (d *decoder) string() string {
	n := int(d.varuint())
	return string(d.bytes(n))
}

func (d *decoder) bigInt() *big.Int {
	sign := d.byte()
	n := int(d.varuint())
	v := new(big.Int).SetBytes(d.bytes(n))
	if sign == 1 {
		v.Neg(v)
	}
	return v
}

func (d *decoder) function() *CompiledFunction {
	fn := &CompiledFunction{Name: d.string()}
	fn.NumParams = int(d.varuint())
	fn.NumRegisters = int(d.varuint())
	numHandlers := int(d.varuint())
	fn.Handlers = make([]vmvalue.HandlerRange, numHandlers)
	for i := range fn.Handlers {
		fn.Handlers[i] = vmvalue.HandlerRange{
			Start:  int(d.varuint()),
			End:    int(d.varuint()),
			Target: int(d.varuint()),
		}
	}
	codeLen := int(d.varuint())
	fn.Code = d.bytes(codeLen)
	return fn
}

// Decode parses a CompiledModule from its Encode-produced byte form.
func Decode(data []byte) (cm *CompiledModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("loader: %v", r)
		}
	}()
	d := &decoder{data: data}
	if len(data) < len(magic) || string(d.bytes(len(magic))) != magic {
		return nil, fmt.Errorf("loader: not a hammer module (bad magic)")
	}
	version := d.byte()
	if version != formatVersion1 {
		return nil, fmt.Errorf("loader: unsupported module format version %d", version)
	}
	cm = &CompiledModule{Name: d.string()}
	count := int(d.varuint())
	hasInit := d.byte()
	cm.InitializerMember = -1
	if hasInit == 1 {
		cm.InitializerMember = int(d.varuint())
	}
	cm.Members = make([]Member, count)
	for i := range cm.Members {
		kind := d.byte()
		mem := Member{Kind: kind}
		switch kind {
		case tagInteger:
			mem.Name = d.string()
			mem.Int = d.bigInt()
		case tagFloat:
			mem.Name = d.string()
			mem.Float = math.Float64frombits(binary.BigEndian.Uint64(d.bytes(8)))
		case tagString, tagSymbol:
			mem.Name = d.string()
			mem.Str = d.string()
		case tagNull:
			mem.Name = d.string()
		case tagBool:
			mem.Name = d.string()
			mem.Bool = d.byte() == 1
		case tagRecordTemplate:
			n := int(d.varuint())
			mem.Fields = make([]string, n)
			for j := range mem.Fields {
				mem.Fields[j] = d.string()
			}
		case tagFunction:
			mem.Function = d.function()
		case tagImport:
			mem.Name = d.string()
			mem.Import = &Import{Module: d.string()}
		default:
			return nil, fmt.Errorf("loader: unknown member tag %d at member %d", kind, i)
		}
		cm.Members[i] = mem
	}
	return cm, nil
}

// Registry is the VM's module-by-name lookup table: every module a Load
// resolves an Import against must already be present here, added once
// Load returns it successfully. It also mints the build identifier each
// loaded module is tagged with, since a host reloading the same module
// name from a new compile must be able to tell the two loads apart.
type Registry struct {
	modules  map[string]*vmvalue.Module
	buildIDs map[string]uuid.UUID
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*vmvalue.Module), buildIDs: make(map[string]uuid.UUID)}
}

// Lookup returns the already-loaded module named name, if any.
func (r *Registry) Lookup(name string) (*vmvalue.Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// BuildID returns the build identifier minted for the module named name
// the last time it was registered.
func (r *Registry) BuildID(name string) (uuid.UUID, bool) {
	id, ok := r.buildIDs[name]
	return id, ok
}

// Register adds m to the registry under its own name and mints a fresh
// build identifier for it, replacing any earlier load of the same name.
func (r *Registry) Register(m *vmvalue.Module) {
	r.modules[m.Name] = m
	r.buildIDs[m.Name] = uuid.New()
}

// registerName records member i under name in mod's name table, if the
// member was declared with one; anonymous constants (blank Name) are
// reachable only by member index, never by lookup.
func registerName(mod *vmvalue.Module, name string, i int) {
	if name != "" {
		mod.MemberNames[name] = i
	}
}

// Load decodes data into a runtime vmvalue.Module, allocating every
// member on h, resolving imports against registry (a hard error if a
// named module is missing), and, if the module has an
// initializer, spawning and enqueuing it on s so calling code can await
// its completion before treating the module's other members as valid —
// the module's Initialized field is false until that coroutine has run
// to completion.
func Load(data []byte, h *heap.Heap, registry *Registry, s *sched.Scheduler) (*vmvalue.Module, error) {
	cm, err := Decode(data)
	if err != nil {
		return nil, err
	}
	mod := vmvalue.NewModule(cm.Name, len(cm.Members))

	// Pass 1: allocate every non-import member and record functions by
	// name, so a function body referencing a sibling by LoadModule/
	// LoadConst resolves even if that sibling appears later in Members.
	for i, mem := range cm.Members {
		switch mem.Kind {
		case tagInteger:
			mod.Members[i] = h.Allocate(vmvalue.NewInteger(mem.Int))
			registerName(mod, mem.Name, i)
		case tagFloat:
			mod.Members[i] = h.Allocate(vmvalue.NewFloat(mem.Float))
			registerName(mod, mem.Name, i)
		case tagString:
			mod.Members[i] = h.Allocate(vmvalue.NewString(mem.Str))
			registerName(mod, mem.Name, i)
		case tagSymbol:
			mod.Members[i] = h.Allocate(vmvalue.NewSymbol(mem.Str))
			registerName(mod, mem.Name, i)
		case tagNull:
			mod.Members[i] = vmvalue.Null
			registerName(mod, mem.Name, i)
		case tagBool:
			mod.Members[i] = vmvalue.NewBool(mem.Bool)
			registerName(mod, mem.Name, i)
		case tagRecordTemplate:
			tmpl := vmvalue.NewFunctionTemplate("record", 0, 0, vmvalue.TemplateNormal, nil)
			tmpl.FieldNames = mem.Fields
			mod.Members[i] = h.Allocate(tmpl)
			// Not registered by name: record templates are referenced only
			// by member id (ir.MakeRecord.Template), and irbuild gives every
			// one the same source name ("record").
		case tagFunction:
			tmpl := vmvalue.NewFunctionTemplate(mem.Function.Name, mem.Function.NumParams,
				mem.Function.NumRegisters, vmvalue.TemplateNormal,
				vmvalue.NewCode(mem.Function.Code, mem.Function.Handlers))
			tmpl.Module = mod
			fn := h.Allocate(vmvalue.NewFunction(tmpl, nil))
			mod.Members[i] = fn
			mod.MemberNames[mem.Function.Name] = i
		}
	}

	// Pass 2: imports, resolved once every local member has a value so an
	// import can never shadow a same-named local by accident of order.
	for i, mem := range cm.Members {
		if mem.Kind != tagImport {
			continue
		}
		dep, ok := registry.Lookup(mem.Import.Module)
		if !ok {
			return nil, fmt.Errorf("loader: module %q imports unknown module %q", cm.Name, mem.Import.Module)
		}
		mod.Members[i] = vmvalue.FromObject(dep)
		registerName(mod, mem.Name, i)
	}

	if cm.InitializerMember >= 0 {
		initFn, ok := mod.Members[cm.InitializerMember].Object().(*vmvalue.Function)
		if !ok {
			return nil, fmt.Errorf("loader: module %q initializer member is not a function", cm.Name)
		}
		co, err := s.Spawn(cm.Name+".init", initFn, nil)
		if err != nil {
			return nil, fmt.Errorf("loader: spawning initializer for %q: %w", cm.Name, err)
		}
		co.OnDone = func(c *vmvalue.Coroutine) {
			if c.Err == nil {
				mod.Initialized = true
			}
		}
	} else {
		mod.Initialized = true
	}

	registry.Register(mod)
	return mod, nil
}
