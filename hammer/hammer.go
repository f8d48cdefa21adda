// Package hammer is the host ABI surface spec.md §6 summarizes: compiling
// source text to bytecode, loading it into a shared runtime, and driving
// the result to completion. Grounded on the teacher's main.go wiring
// (lexer -> parser -> compiler.New().Compile() -> vm.New(bytecode).Run()),
// generalized across the full pipeline this module's spec adds between
// parsing and execution: sema -> irbuild -> irpass -> regalloc -> emit,
// assembled into a loader.CompiledModule and handed to the module loader.
package hammer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dr8co/hammer/emit"
	"github.com/dr8co/hammer/handle"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/interp"
	"github.com/dr8co/hammer/ir"
	"github.com/dr8co/hammer/irbuild"
	"github.com/dr8co/hammer/irpass"
	"github.com/dr8co/hammer/lexer"
	"github.com/dr8co/hammer/loader"
	"github.com/dr8co/hammer/parser"
	"github.com/dr8co/hammer/regalloc"
	"github.com/dr8co/hammer/sched"
	"github.com/dr8co/hammer/sema"
	"github.com/dr8co/hammer/strtable"
	"github.com/dr8co/hammer/vmvalue"
)

// Context bundles the shared runtime state one host process needs: one
// heap, one handle table, one machine driving it, the scheduler queuing
// coroutines onto that machine, and the module registry every Compile
// call loads into — so two modules compiled in the same Context can
// import from one another.
type Context struct {
	Log      *logrus.Logger
	Heap     *heap.Heap
	Handles  *handle.Stack
	Machine  *interp.Machine
	Sched    *sched.Scheduler
	Registry *loader.Registry
}

// NewContext wires a fresh, empty runtime. log may be nil, in which case
// a default logrus.Logger is used, matching package sched/heap's own
// nil-log convention. globals is the host-provided LoadGlobal table
// (spec.md §4.4); it may be nil for a host with no globals to expose.
func NewContext(log *logrus.Logger, globals map[string]vmvalue.Value) *Context {
	if log == nil {
		log = logrus.New()
	}
	h := heap.New(log)
	handles := handle.NewStack()
	m := interp.New(h, handles, globals)
	return &Context{
		Log:      log,
		Heap:     h,
		Handles:  handles,
		Machine:  m,
		Sched:    sched.New(m, log),
		Registry: loader.NewRegistry(),
	}
}

// CompileError reports every diagnostic collected at one pipeline stage.
// Compilation stops at the first stage that reports errors rather than
// feeding a broken tree/IR into the next one.
type CompileError struct {
	Stage    string
	Messages []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("hammer: %s error: %s", e.Stage, strings.Join(e.Messages, "; "))
}

// Compile lexes, parses, analyzes, and lowers src to bytecode, assembles
// it into a loader.CompiledModule named name, and loads it into ctx. If
// the module has an initializer it is spawned and enqueued on ctx.Sched
// but not run to completion — the caller drives the scheduler
// (RunReady/Drain) and must not treat the returned module's exports as
// valid until its Initialized field is true.
func Compile(ctx *Context, name, src string) (*vmvalue.Module, error) {
	cm, err := CompileToModule(name, src)
	if err != nil {
		return nil, err
	}
	return loader.Load(loader.Encode(cm), ctx.Heap, ctx.Registry, ctx.Sched)
}

// CompileToModule runs the compiler front end and backend over src
// without touching any runtime state, returning the serializable
// CompiledModule a host can persist or hand to loader.Load itself (the
// two-phase "compile, then run" split spec.md §4.9 describes).
func CompileToModule(name, src string) (*loader.CompiledModule, error) {
	l := lexer.New(src)
	p := parser.New(l)
	astMod := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &CompileError{Stage: "parse", Messages: errs}
	}

	strs := strtable.New()
	tab := sema.Analyze(astMod, strs)
	if tab.Diagnostics.HasErrors() {
		return nil, &CompileError{Stage: "sema", Messages: diagnosticStrings(tab.Diagnostics)}
	}

	irMod, b := irbuild.Build(astMod, tab, strs)
	if b.Diagnostics.HasErrors() {
		return nil, &CompileError{Stage: "irbuild", Messages: diagnosticStrings(b.Diagnostics)}
	}

	return assemble(name, irMod, strs)
}

func diagnosticStrings(d sema.Diagnostics) []string {
	msgs := d.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.String()
	}
	return out
}

// assemble runs the compilation backend (irpass, regalloc, emit) over
// every function member of irMod and translates the whole module into a
// loader.CompiledModule ready for Encode.
func assemble(name string, irMod *ir.Module, strs *strtable.Table) (*loader.CompiledModule, error) {
	cm := &loader.CompiledModule{
		Name:              name,
		Members:           make([]loader.Member, len(irMod.Members)),
		InitializerMember: -1,
	}
	for i, mem := range irMod.Members {
		lm, err := assembleMember(mem, strs)
		if err != nil {
			return nil, fmt.Errorf("hammer: compiling member %q: %w", mem.Name, err)
		}
		cm.Members[i] = lm
		if mem.Kind == ir.MemberFunction && mem.Function != nil && mem.Function.Name == "$init" {
			cm.InitializerMember = i
		}
	}
	return cm, nil
}

func assembleMember(mem *ir.Member, strs *strtable.Table) (loader.Member, error) {
	switch mem.Kind {
	case ir.MemberFunction:
		fn, err := compileFunction(mem.Function, strs)
		if err != nil {
			return loader.Member{}, err
		}
		return loader.Member{Kind: loader.TagFunction, Function: fn}, nil

	case ir.MemberImport:
		return loader.Member{Kind: loader.TagImport, Name: mem.Name, Import: &loader.Import{Module: mem.ImportName}}, nil

	case ir.MemberRecordTemplate:
		return loader.Member{Kind: loader.TagRecordTemplate, Fields: mem.RecordTemplate.Fields}, nil

	case ir.MemberVariable:
		return assembleVariable(mem), nil

	default:
		return loader.Member{}, fmt.Errorf("hammer: unknown ir.MemberKind %d", mem.Kind)
	}
}

// assembleVariable translates a module-level var/const slot. irbuild
// never folds one of these into an ir.Constant today — the value is
// written by the $init function's StoreLValue{LValueModule} at runtime —
// so the compiled member is a placeholder the loader allocates as Null,
// overwritten once the initializer coroutine actually runs. A future
// constant-folding pass populating mem.Constant is handled here too, so
// this translation does not need to change to pick that up.
func assembleVariable(mem *ir.Member) loader.Member {
	if mem.Constant == nil {
		return loader.Member{Kind: loader.TagNull, Name: mem.Name}
	}
	return constantMember(mem.Name, *mem.Constant)
}

func constantMember(name string, c ir.Constant) loader.Member {
	switch c.Kind {
	case ir.ConstBool:
		return loader.Member{Kind: loader.TagBool, Name: name, Bool: c.Bool}
	case ir.ConstInt:
		return loader.Member{Kind: loader.TagInteger, Name: name, Int: big.NewInt(c.Int)}
	case ir.ConstFloat:
		return loader.Member{Kind: loader.TagFloat, Name: name, Float: c.Flt}
	case ir.ConstString:
		return loader.Member{Kind: loader.TagString, Name: name, Str: c.Str}
	default:
		return loader.Member{Kind: loader.TagNull, Name: name}
	}
}

// Lookup resolves name against mod's export table, returning the
// *vmvalue.Function it names. Returns an error if the name is absent or
// not a function, or if mod has not finished initializing.
func Lookup(mod *vmvalue.Module, name string) (*vmvalue.Function, error) {
	if !mod.Initialized {
		return nil, fmt.Errorf("hammer: module %q has not finished initializing", mod.Name)
	}
	idx, ok := mod.MemberNames[name]
	if !ok {
		return nil, fmt.Errorf("hammer: module %q has no member %q", mod.Name, name)
	}
	fn, ok := mod.Members[idx].Object().(*vmvalue.Function)
	if !ok {
		return nil, fmt.Errorf("hammer: module %q member %q is not a function", mod.Name, name)
	}
	return fn, nil
}

// Invoke spawns fn as a coroutine named name on ctx.Sched with args and
// drains the ready queue until that coroutine reaches CoroutineDone,
// returning its result value. Other coroutines the drain pops in the
// meantime (a module initializer still running, say) are run to
// completion too, same as any other call to RunReady would do.
func Invoke(ctx *Context, name string, fn *vmvalue.Function, args []vmvalue.Value) (vmvalue.Value, error) {
	co, err := ctx.Sched.Spawn(name, fn, args)
	if err != nil {
		return vmvalue.Value{}, err
	}
	for co.State != vmvalue.CoroutineDone {
		if _, _, ok := ctx.Sched.RunReady(); !ok {
			return vmvalue.Value{}, fmt.Errorf("hammer: %s suspended with nothing left to run", name)
		}
	}
	if co.Err != nil {
		return vmvalue.Value{}, co.Err
	}
	return co.Result, nil
}

// Display renders v the way a REPL prints a result, the host-ABI
// equivalent of the teacher's object.Object.Inspect. vmvalue carries no
// such method itself (it is a value/object model, not a pretty-printer),
// so this lives here instead.
func Display(v vmvalue.Value) string {
	switch v.Kind() {
	case vmvalue.KindNull:
		return "null"
	case vmvalue.KindUndefined:
		return "undefined"
	case vmvalue.KindStopIteration:
		return "<stop-iteration>"
	case vmvalue.KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case vmvalue.KindSmallInteger:
		return fmt.Sprintf("%d", v.SmallInt())
	default:
		return displayObject(v.Object())
	}
}

func displayObject(obj vmvalue.Object) string {
	switch o := obj.(type) {
	case *vmvalue.Integer:
		return o.Value.String()
	case *vmvalue.Float:
		return fmt.Sprintf("%g", o.Value)
	case *vmvalue.String:
		return o.Value
	case *vmvalue.Symbol:
		return "#" + o.Name
	case *vmvalue.Tuple:
		return displayElements(o.Elements, "(", ")")
	case *vmvalue.Array:
		elems := make([]vmvalue.Value, o.Len())
		for i := range elems {
			elems[i] = o.Get(i)
		}
		return displayElements(elems, "[", "]")
	case *vmvalue.Record:
		return displayRecord(o)
	case *vmvalue.HashTable:
		return fmt.Sprintf("<map of %d entries>", o.Len())
	case *vmvalue.Function:
		return fmt.Sprintf("<func %s>", o.Template.Name)
	case *vmvalue.BoundMethod:
		return "<bound method>"
	case *vmvalue.NativeFunction:
		return "<native function>"
	case *vmvalue.NativeAsyncFunction:
		return "<native async function>"
	case *vmvalue.Module:
		return fmt.Sprintf("<module %s>", o.Name)
	case *vmvalue.Coroutine:
		return fmt.Sprintf("<coroutine %s: %s>", o.Name, o.State)
	default:
		return fmt.Sprintf("<%s>", obj.Header().Kind)
	}
}

func displayElements(elems []vmvalue.Value, open, closing string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Display(e)
	}
	return open + strings.Join(parts, ", ") + closing
}

func displayRecord(r *vmvalue.Record) string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Template.FieldNames {
		parts[i] = f + ": " + Display(r.Fields[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// compileFunction runs the required post-construction passes (spec.md
// §4.2's critical-edge split, CSSA construction, dead-code elimination),
// allocates registers, and emits bytecode for one function.
func compileFunction(fn *ir.Function, strs *strtable.Table) (*loader.CompiledFunction, error) {
	irpass.SplitCriticalEdges(fn)
	irpass.ConstructCSSA(fn)
	irpass.EliminateDeadCode(fn)

	alloc := regalloc.Allocate(fn)
	emitted, err := emit.EmitFunction(fn, alloc, strs)
	if err != nil {
		return nil, err
	}
	return &loader.CompiledFunction{
		Name:         emitted.Name,
		NumParams:    emitted.NumParams,
		NumRegisters: emitted.NumRegisters,
		Code:         emitted.Code,
		// No handler ranges: the language this pipeline compiles has no
		// try/catch surface yet (nothing in ast/ir produces one), so every
		// compiled function's protected-range table is empty. interp's
		// unwind already treats an empty table as "propagate to caller",
		// so this is not a functional gap for any program this backend can
		// currently produce, only a closed one should guest-level handler
		// syntax ever be added.
	}, nil
}
