// Package interp implements the bytecode dispatch loop of spec.md §4.7,
// grounded on the teacher's vm.Frame shape (generalized here to
// vmvalue.Frame/CoroutineStack) and extended with the handler-table panic
// unwinding the teacher never needed (its VM panics propagate as plain Go
// errors with no bytecode-level `catch`).
package interp

import (
	"fmt"
	"math"
	"math/big"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/handle"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/vmvalue"
)

// Panic is raised by a dynamic check (bad index, failed type test, a
// guest-visible AssertFail) and carries the value a `catch` clause binds.
type Panic struct {
	Value vmvalue.Value
}

func (p *Panic) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Outcome is returned by Run once the coroutine stops running (it
// completed, panicked uncaught, or suspended on a native async call).
type Outcome int

const (
	OutcomeReturned Outcome = iota
	OutcomePanicked
	OutcomeSuspended
)

// Machine runs one coroutine's frames until it returns, panics, or
// suspends; spec.md §4.7's "current coroutine and register file" pairing
// is this struct plus whichever *vmvalue.Coroutine Run is given.
type Machine struct {
	Heap    *heap.Heap
	Handles *handle.Stack
	// Globals resolves LoadGlobal's interned-name operand (already
	// translated to the literal name string by the owning module's
	// string-member table) to a host-visible binding.
	Globals map[string]vmvalue.Value
}

// New creates a Machine sharing h and handles with the rest of the VM.
func New(h *heap.Heap, handles *handle.Stack, globals map[string]vmvalue.Value) *Machine {
	if globals == nil {
		globals = make(map[string]vmvalue.Value)
	}
	return &Machine{Heap: h, Handles: handles, Globals: globals}
}

// Run drives co until it stops. A NativeAsyncFunction call suspends by
// handing the native a resume callback and returning OutcomeSuspended; the caller
// (package sched) is responsible for putting co back on the ready queue
// once the async call's resume callback fires.
func (m *Machine) Run(co *vmvalue.Coroutine) (Outcome, error) {
	co.State = vmvalue.CoroutineRunning
	for {
		frame := co.Stack.TopFrame()
		if frame == nil {
			co.State = vmvalue.CoroutineDone
			return OutcomeReturned, nil
		}
		switch frame.Kind {
		case vmvalue.FrameUser:
			done, outcome, err := m.step(co, frame)
			if err != nil {
				if !m.unwind(co, err) {
					co.State = vmvalue.CoroutineDone
					co.Err = err
					return OutcomePanicked, err
				}
				continue
			}
			if done {
				co.State = vmvalue.CoroutineDone
				return outcome, nil
			}
		case vmvalue.FrameNativeSync:
			result, err := frame.Native(m.frameArgs(co, frame))
			m.popFrame(co)
			if err != nil {
				if !m.unwind(co, err) {
					co.State = vmvalue.CoroutineDone
					co.Err = err
					return OutcomePanicked, err
				}
				continue
			}
			m.pushExpr(co, result)
		case vmvalue.FrameNativeAsync:
			args := m.frameArgs(co, frame)
			co.State = vmvalue.CoroutineWaiting
			frame.Async(args, func(v vmvalue.Value, err error) {
				m.popFrame(co)
				if err != nil {
					co.Result, co.Err = vmvalue.Value{}, err
				} else {
					m.pushExpr(co, v)
				}
				co.State = vmvalue.CoroutineReady
			})
			return OutcomeSuspended, nil
		}
	}
}

func (m *Machine) frameArgs(co *vmvalue.Coroutine, f *vmvalue.Frame) []vmvalue.Value {
	return append([]vmvalue.Value(nil), co.Stack.Locals[f.ParamBase:f.ParamBase+f.NumParams]...)
}

// step decodes and executes exactly one instruction from f, the
// coroutine's current (user) frame. done is true only once the coroutine
// has genuinely finished (a Return with no caller frame left); any other
// control transfer — a jump, a Call that pushed a new frame of any kind,
// a Return into a caller — reports done=false and lets Run's own loop
// re-examine the (possibly new) top frame on its next iteration.
func (m *Machine) step(co *vmvalue.Coroutine, f *vmvalue.Frame) (bool, Outcome, error) {
	code := f.Closure.Template.Code
	if f.PC >= len(code.Bytes) {
		return true, OutcomeReturned, fmt.Errorf("interp: fell off the end of %s", f.Closure.Template.Name)
	}
	op := bytecode.Opcode(code.Bytes[f.PC])
	def, err := bytecode.Lookup(code.Bytes[f.PC])
	if err != nil {
		return true, OutcomeReturned, err
	}
	operands, n := bytecode.ReadOperands(def, code.Bytes[f.PC+1:])
	f.PC += 1 + n
	return m.exec(co, f, op, operands)
}

// exec executes one decoded instruction. done and outcome mirror step's
// contract; only a Return with no caller left sets done=true.
func (m *Machine) exec(co *vmvalue.Coroutine, f *vmvalue.Frame, op bytecode.Opcode, ops []int64) (bool, Outcome, error) {
	stack := co.Stack
	push := func(v vmvalue.Value) { m.pushExpr(co, v) }
	pop := func() vmvalue.Value { return m.popExpr(co) }

	switch op {
	case bytecode.LoadNull:
		push(vmvalue.Null)
	case bytecode.LoadFalse:
		push(vmvalue.False)
	case bytecode.LoadTrue:
		push(vmvalue.True)
	case bytecode.LoadInt:
		push(intValueFor(ops[0]))
	case bytecode.LoadFloat:
		push(vmvalue.FromObject(vmvalue.NewFloat(bytecode.ReadFloat(ops[0]))))
	case bytecode.LoadConst:
		push(f.Closure.Template.Module.Members[ops[0]])
	case bytecode.LoadParam:
		push(stack.Locals[f.ParamBase+int(ops[0])])
	case bytecode.LoadLocal:
		push(stack.Locals[f.ParamBase+f.NumParams+int(ops[0])])
	case bytecode.StoreParam:
		stack.Locals[f.ParamBase+int(ops[0])] = pop()
	case bytecode.StoreLocal:
		stack.Locals[f.ParamBase+f.NumParams+int(ops[0])] = pop()
	case bytecode.LoadClosure:
		env := closureEnvAtDepth(f.Closure.Env, int(ops[0]))
		push(env.Slots[ops[1]])
	case bytecode.StoreClosure:
		env := closureEnvAtDepth(f.Closure.Env, int(ops[0]))
		env.Slots[ops[1]] = pop()
	case bytecode.LoadModule:
		push(f.Closure.Template.Module.Members[ops[0]])
	case bytecode.StoreModule:
		f.Closure.Template.Module.Members[ops[0]] = pop()
	case bytecode.StoreMember:
		f.Closure.Template.Module.Members[ops[0]] = pop()
	case bytecode.LoadGlobal:
		name := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.String).Value
		v, ok := m.Globals[name]
		if !ok {
			return false, 0, &Panic{Value: errValue(fmt.Sprintf("undefined global %q", name))}
		}
		push(v)
	case bytecode.LoadIndex:
		idx, target := pop(), pop()
		v, err := indexGet(target, idx)
		if err != nil {
			return false, 0, err
		}
		push(v)
	case bytecode.StoreIndex:
		value, idx, target := pop(), pop(), pop()
		if err := indexSet(target, idx, value); err != nil {
			return false, 0, err
		}
	case bytecode.LoadField:
		name := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.String).Value
		target := pop()
		v, err := fieldGet(target, name)
		if err != nil {
			return false, 0, err
		}
		push(v)
	case bytecode.StoreField:
		name := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.String).Value
		value, target := pop(), pop()
		if err := fieldSet(target, name, value); err != nil {
			return false, 0, err
		}
	case bytecode.LoadSelfClosure:
		push(vmvalue.FromObject(f.Closure))
	case bytecode.LoadOuterEnvironment:
		if f.Closure.Env != nil {
			push(vmvalue.FromObject(f.Closure.Env))
		} else {
			push(vmvalue.Null)
		}

	case bytecode.Dup:
		top := stack.Expr[len(stack.Expr)-1]
		push(top)
	case bytecode.Pop:
		pop()
	case bytecode.Rotate2:
		rotate(stack, 2)
	case bytecode.Rotate3:
		rotate(stack, 3)
	case bytecode.Rotate4:
		rotate(stack, 4)

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod, bytecode.Pow,
		bytecode.Gt, bytecode.Gte, bytecode.Lt, bytecode.Lte, bytecode.Eq, bytecode.NEq:
		rhs, lhs := pop(), pop()
		v, err := binaryOp(m.Heap, op, lhs, rhs)
		if err != nil {
			return false, 0, err
		}
		push(v)
	case bytecode.UAdd, bytecode.USub, bytecode.LNot, bytecode.BNot:
		v, err := unaryOp(m.Heap, op, pop())
		if err != nil {
			return false, 0, err
		}
		push(v)

	case bytecode.Jmp:
		f.PC = int(ops[0])
	case bytecode.JmpTrue:
		if truthy(stack.Expr[len(stack.Expr)-1]) {
			f.PC = int(ops[0])
		}
	case bytecode.JmpTruePop:
		if truthy(pop()) {
			f.PC = int(ops[0])
		}
	case bytecode.JmpFalse:
		if !truthy(stack.Expr[len(stack.Expr)-1]) {
			f.PC = int(ops[0])
		}
	case bytecode.JmpFalsePop:
		if !truthy(pop()) {
			f.PC = int(ops[0])
		}

	case bytecode.Call:
		argc := int(ops[0])
		args := make([]vmvalue.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = pop()
		}
		callee := pop()
		if err := m.call(co, callee, args); err != nil {
			return false, 0, err
		}
		return false, 0, nil
	case bytecode.Return:
		ret := pop()
		m.popFrame(co)
		if co.Stack.TopFrame() == nil {
			co.Result = ret
			return true, OutcomeReturned, nil
		}
		m.pushExpr(co, ret)
		return false, 0, nil
	case bytecode.LoadMethod:
		name := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.String).Value
		receiver := pop()
		method, err := lookupMethod(receiver, name)
		if err != nil {
			return false, 0, err
		}
		push(vmvalue.FromObject(vmvalue.NewBoundMethod(receiver, method)))
	case bytecode.CallMethod:
		argc := int(ops[0])
		args := make([]vmvalue.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = pop()
		}
		bound := pop().Object().(*vmvalue.BoundMethod)
		if err := m.call(co, bound.Method.Function, append([]vmvalue.Value{bound.Receiver}, args...)); err != nil {
			return false, 0, err
		}
		return false, 0, nil

	case bytecode.MakeArray:
		n := int(ops[0])
		arr := vmvalue.NewArray()
		elems := make([]vmvalue.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = pop()
		}
		for _, v := range elems {
			arr.Push(v)
		}
		push(m.Heap.Allocate(arr))
	case bytecode.MakeTuple:
		n := int(ops[0])
		elems := make([]vmvalue.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = pop()
		}
		push(m.Heap.Allocate(vmvalue.NewTuple(elems)))
	case bytecode.MakeSet:
		n := int(ops[0])
		elems := make([]vmvalue.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = pop()
		}
		ht := vmvalue.NewHashTable()
		for _, v := range elems {
			ht.Set(v, vmvalue.True)
		}
		push(m.Heap.Allocate(ht))
	case bytecode.MakeMap:
		pairs := int(ops[0])
		ht := vmvalue.NewHashTable()
		entries := make([][2]vmvalue.Value, pairs)
		for i := pairs - 1; i >= 0; i-- {
			value, key := pop(), pop()
			entries[i] = [2]vmvalue.Value{key, value}
		}
		for _, kv := range entries {
			ht.Set(kv[0], kv[1])
		}
		push(m.Heap.Allocate(ht))
	case bytecode.MakeRecord:
		tmpl := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.FunctionTemplate)
		n := len(tmpl.FieldNames)
		fields := make([]vmvalue.Value, n)
		for i := n - 1; i >= 0; i-- {
			fields[i] = pop()
		}
		push(m.Heap.Allocate(vmvalue.NewRecord(tmpl, fields)))
	case bytecode.MakeClosure:
		tmpl := f.Closure.Template.Module.Members[ops[0]].Object().(*vmvalue.FunctionTemplate)
		var env *vmvalue.Environment
		if tmpl.Kind == vmvalue.TemplateClosure {
			env, _ = pop().Object().(*vmvalue.Environment)
		}
		push(m.Heap.Allocate(vmvalue.NewFunction(tmpl, env)))
	case bytecode.MakeEnvironment:
		// emit pushes the parent environment first only when this
		// function's MakeEnvironment was generated for a scope that
		// itself captures an outer one; check a top-of-stack Environment
		// rather than relying on ops[0] to carry a presence flag.
		var parent *vmvalue.Environment
		size := int(ops[0])
		if len(stack.Expr) > 0 {
			if e, ok := stack.Expr[len(stack.Expr)-1].Object().(*vmvalue.Environment); ok {
				parent = e
				pop()
			}
		}
		push(m.Heap.Allocate(vmvalue.NewEnvironment(parent, size)))

	case bytecode.FormatConcat:
		n := int(ops[0])
		parts := make([]vmvalue.Value, n)
		for i := n - 1; i >= 0; i-- {
			parts[i] = pop()
		}
		sb := vmvalue.NewStringBuilder()
		for _, p := range parts {
			sb.WriteString(displayString(p))
		}
		push(m.Heap.Allocate(vmvalue.NewString(sb.String())))

	case bytecode.AssertFail:
		msg := f.Closure.Template.Module.Members[ops[0]]
		return false, 0, &Panic{Value: msg}
	case bytecode.Rethrow:
		return false, 0, &Panic{Value: pop()}

	default:
		return false, 0, fmt.Errorf("interp: unhandled opcode %v", op)
	}
	return false, 0, nil
}

func (m *Machine) pushExpr(co *vmvalue.Coroutine, v vmvalue.Value) {
	co.Stack.Expr = append(co.Stack.Expr, v)
}

func (m *Machine) popExpr(co *vmvalue.Coroutine) vmvalue.Value {
	n := len(co.Stack.Expr)
	v := co.Stack.Expr[n-1]
	co.Stack.Expr = co.Stack.Expr[:n-1]
	return v
}

func (m *Machine) popFrame(co *vmvalue.Coroutine) {
	f := co.Stack.Frames[len(co.Stack.Frames)-1]
	co.Stack.Frames = co.Stack.Frames[:len(co.Stack.Frames)-1]
	co.Stack.Locals = co.Stack.Locals[:f.ParamBase]
}

func rotate(s *vmvalue.CoroutineStack, n int) {
	top := len(s.Expr)
	window := s.Expr[top-n : top]
	last := window[n-1]
	copy(window[1:], window[:n-1])
	window[0] = last
}

func truthy(v vmvalue.Value) bool {
	switch v.Kind() {
	case vmvalue.KindNull, vmvalue.KindUndefined:
		return false
	case vmvalue.KindBoolean:
		return v.Bool()
	default:
		return true
	}
}

func intValueFor(i int64) vmvalue.Value { return vmvalue.NewSmallInt(i) }

func errValue(msg string) vmvalue.Value { return vmvalue.FromObject(vmvalue.NewString(msg)) }

func closureEnvAtDepth(env *vmvalue.Environment, depth int) *vmvalue.Environment {
	for i := 0; i < depth; i++ {
		env = env.Parent
	}
	return env
}

// Call pushes callee's first frame onto co, ready for Run to drive. It
// does not itself run anything — the caller (typically package sched,
// setting up a freshly spawned coroutine) must still call m.Run(co).
func (m *Machine) Call(co *vmvalue.Coroutine, callee vmvalue.Value, args []vmvalue.Value) error {
	return m.call(co, callee, args)
}

// call pushes a new frame (user, native-sync, or native-async) to invoke
// callee with args. Run's own loop, not call itself, notices the new
// frame's Kind on its next iteration and dispatches accordingly — call
// never drives a native callback or user bytecode itself.
func (m *Machine) call(co *vmvalue.Coroutine, callee vmvalue.Value, args []vmvalue.Value) error {
	switch obj := callee.Object().(type) {
	case *vmvalue.Function:
		tmpl := obj.Template
		if len(args) != tmpl.NumParams {
			return &Panic{Value: errValue(fmt.Sprintf("%s expects %d arguments, got %d", tmpl.Name, tmpl.NumParams, len(args)))}
		}
		base := len(co.Stack.Locals)
		co.Stack.Locals = append(co.Stack.Locals, args...)
		co.Stack.Locals = append(co.Stack.Locals, make([]vmvalue.Value, tmpl.NumRegisters)...)
		co.Stack.Frames = append(co.Stack.Frames, vmvalue.Frame{
			Kind:      vmvalue.FrameUser,
			Closure:   obj,
			PC:        0,
			Caller:    len(co.Stack.Frames) - 1,
			ParamBase: base,
			NumParams: tmpl.NumParams,
			NumLocals: tmpl.NumRegisters,
		})
		return nil
	case *vmvalue.NativeFunction:
		co.Stack.Frames = append(co.Stack.Frames, vmvalue.Frame{
			Kind:      vmvalue.FrameNativeSync,
			Native:    obj.Fn,
			ParamBase: len(co.Stack.Locals),
			NumParams: len(args),
		})
		co.Stack.Locals = append(co.Stack.Locals, args...)
		return nil
	case *vmvalue.NativeAsyncFunction:
		co.Stack.Frames = append(co.Stack.Frames, vmvalue.Frame{
			Kind:      vmvalue.FrameNativeAsync,
			Async:     obj.Fn,
			ParamBase: len(co.Stack.Locals),
			NumParams: len(args),
		})
		co.Stack.Locals = append(co.Stack.Locals, args...)
		return nil
	default:
		return &Panic{Value: errValue("value is not callable")}
	}
}

func lookupMethod(receiver vmvalue.Value, name string) (*vmvalue.Method, error) {
	t, ok := receiver.Object().(*vmvalue.Type)
	if ok {
		if m, ok := t.Methods[name]; ok {
			return m, nil
		}
	}
	return nil, &Panic{Value: errValue(fmt.Sprintf("no method %q", name))}
}

func indexGet(target, idx vmvalue.Value) (vmvalue.Value, error) {
	switch t := target.Object().(type) {
	case *vmvalue.Array:
		i := int(idx.SmallInt())
		if i < 0 || i >= t.Len() {
			return vmvalue.Value{}, &Panic{Value: errValue("array index out of range")}
		}
		return t.Get(i), nil
	case *vmvalue.Tuple:
		i := int(idx.SmallInt())
		if i < 0 || i >= len(t.Elements) {
			return vmvalue.Value{}, &Panic{Value: errValue("tuple index out of range")}
		}
		return t.Elements[i], nil
	case *vmvalue.HashTable:
		v, ok := t.Get(idx)
		if !ok {
			return vmvalue.Value{}, &Panic{Value: errValue("key not found")}
		}
		return v, nil
	default:
		return vmvalue.Value{}, &Panic{Value: errValue("value is not indexable")}
	}
}

func indexSet(target, idx, value vmvalue.Value) error {
	switch t := target.Object().(type) {
	case *vmvalue.Array:
		i := int(idx.SmallInt())
		if i < 0 || i >= t.Len() {
			return &Panic{Value: errValue("array index out of range")}
		}
		t.Storage.Elements[i] = value
		return nil
	case *vmvalue.HashTable:
		t.Set(idx, value)
		return nil
	default:
		return &Panic{Value: errValue("value does not support index assignment")}
	}
}

func fieldGet(target vmvalue.Value, name string) (vmvalue.Value, error) {
	switch obj := target.Object().(type) {
	case *vmvalue.Record:
		for i, n := range obj.Template.FieldNames {
			if n == name {
				return obj.Fields[i], nil
			}
		}
		return vmvalue.Value{}, &Panic{Value: errValue(fmt.Sprintf("no field %q", name))}
	case *vmvalue.Module:
		// An imported module is bound whole (loader.Import resolves the
		// whole dependency, not a single symbol); `mod.name` reads one of
		// its members by the export name the loader populated MemberNames
		// with.
		idx, ok := obj.MemberNames[name]
		if !ok {
			return vmvalue.Value{}, &Panic{Value: errValue(fmt.Sprintf("module %q has no member %q", obj.Name, name))}
		}
		return obj.Members[idx], nil
	default:
		return vmvalue.Value{}, &Panic{Value: errValue("value has no fields")}
	}
}

func fieldSet(target vmvalue.Value, name string, value vmvalue.Value) error {
	rec, ok := target.Object().(*vmvalue.Record)
	if !ok {
		return &Panic{Value: errValue("value has no fields")}
	}
	for i, n := range rec.Template.FieldNames {
		if n == name {
			rec.Fields[i] = value
			return nil
		}
	}
	return &Panic{Value: errValue(fmt.Sprintf("no field %q", name))}
}

// displayString renders v for FormatConcat — strings pass through, other
// kinds get a minimal default rendering; a full host-visible `to_string`
// protocol belongs to the standard library, out of this package's scope.
func displayString(v vmvalue.Value) string {
	switch v.Kind() {
	case vmvalue.KindString:
		return v.Object().(*vmvalue.String).Value
	case vmvalue.KindSmallInteger:
		return fmt.Sprintf("%d", v.SmallInt())
	case vmvalue.KindInteger:
		return v.Object().(*vmvalue.Integer).Value.String()
	case vmvalue.KindFloat:
		return fmt.Sprintf("%g", v.Object().(*vmvalue.Float).Value)
	case vmvalue.KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case vmvalue.KindNull:
		return "null"
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}

// unwind consults the active frame's handler table for err, from the
// innermost frame outward, popping frames that have none (spec.md §4.7
// step 5). Returns true if a handler was found and dispatch should
// continue there.
func (m *Machine) unwind(co *vmvalue.Coroutine, err error) bool {
	p, ok := err.(*Panic)
	if !ok {
		return false
	}
	for len(co.Stack.Frames) > 0 {
		f := co.Stack.TopFrame()
		if f.Kind == vmvalue.FrameUser {
			if h, found := f.Closure.Template.Code.HandlerFor(f.PC); found {
				f.PC = h.Target
				m.pushExpr(co, p.Value)
				return true
			}
		}
		m.popFrame(co)
	}
	return false
}

func binaryOp(h *heap.Heap, op bytecode.Opcode, lhs, rhs vmvalue.Value) (vmvalue.Value, error) {
	if lhs.Kind() == vmvalue.KindFloat || rhs.Kind() == vmvalue.KindFloat {
		return floatBinaryOp(h, op, asFloat(lhs), asFloat(rhs))
	}
	if isIntLike(lhs) && isIntLike(rhs) {
		return intBinaryOp(h, op, lhs, rhs)
	}
	switch op {
	case bytecode.Eq:
		return vmvalue.NewBool(vmvalue.Equal(lhs, rhs)), nil
	case bytecode.NEq:
		return vmvalue.NewBool(!vmvalue.Equal(lhs, rhs)), nil
	}
	return vmvalue.Value{}, &Panic{Value: errValue("unsupported operand types")}
}

func isIntLike(v vmvalue.Value) bool {
	return v.Kind() == vmvalue.KindSmallInteger || v.Kind() == vmvalue.KindInteger
}

func asFloat(v vmvalue.Value) float64 {
	switch v.Kind() {
	case vmvalue.KindFloat:
		return v.Object().(*vmvalue.Float).Value
	case vmvalue.KindSmallInteger:
		return float64(v.SmallInt())
	case vmvalue.KindInteger:
		f, _ := new(big.Float).SetInt(&v.Object().(*vmvalue.Integer).Value).Float64()
		return f
	}
	return 0
}

func floatBinaryOp(h *heap.Heap, op bytecode.Opcode, a, b float64) (vmvalue.Value, error) {
	switch op {
	case bytecode.Add:
		return h.Allocate(vmvalue.NewFloat(a + b)), nil
	case bytecode.Sub:
		return h.Allocate(vmvalue.NewFloat(a - b)), nil
	case bytecode.Mul:
		return h.Allocate(vmvalue.NewFloat(a * b)), nil
	case bytecode.Div:
		return h.Allocate(vmvalue.NewFloat(a / b)), nil
	case bytecode.Mod:
		return h.Allocate(vmvalue.NewFloat(math.Mod(a, b))), nil
	case bytecode.Pow:
		return h.Allocate(vmvalue.NewFloat(math.Pow(a, b))), nil
	case bytecode.Gt:
		return vmvalue.NewBool(a > b), nil
	case bytecode.Gte:
		return vmvalue.NewBool(a >= b), nil
	case bytecode.Lt:
		return vmvalue.NewBool(a < b), nil
	case bytecode.Lte:
		return vmvalue.NewBool(a <= b), nil
	case bytecode.Eq:
		return vmvalue.NewBool(!math.IsNaN(a) && !math.IsNaN(b) && a == b), nil
	case bytecode.NEq:
		return vmvalue.NewBool(math.IsNaN(a) || math.IsNaN(b) || a != b), nil
	}
	return vmvalue.Value{}, &Panic{Value: errValue("unsupported float operator")}
}

// intBinaryOp implements spec.md §4.7's "Integer arithmetic promotes
// SmallInteger to Integer on overflow": every arithmetic result is
// computed in big.Int first, then narrowed back to a SmallInteger when it
// fits in an int64, matching the original's embedded/heap split without
// needing Go's own overflow-checked-arithmetic helpers (absent from the
// retrieval pack; math/big is the stdlib-native way to detect overflow
// exactly rather than approximately via range checks on int64 math).
func intBinaryOp(h *heap.Heap, op bytecode.Opcode, lhs, rhs vmvalue.Value) (vmvalue.Value, error) {
	a, b := bigOf(lhs), bigOf(rhs)
	switch op {
	case bytecode.Add:
		return narrow(h, new(big.Int).Add(a, b)), nil
	case bytecode.Sub:
		return narrow(h, new(big.Int).Sub(a, b)), nil
	case bytecode.Mul:
		return narrow(h, new(big.Int).Mul(a, b)), nil
	case bytecode.Div:
		if b.Sign() == 0 {
			return vmvalue.Value{}, &Panic{Value: errValue("division by zero")}
		}
		return narrow(h, new(big.Int).Quo(a, b)), nil
	case bytecode.Mod:
		if b.Sign() == 0 {
			return vmvalue.Value{}, &Panic{Value: errValue("division by zero")}
		}
		return narrow(h, new(big.Int).Rem(a, b)), nil
	case bytecode.Pow:
		if b.Sign() < 0 {
			return vmvalue.Value{}, &Panic{Value: errValue("negative exponent")}
		}
		return narrow(h, new(big.Int).Exp(a, b, nil)), nil
	case bytecode.Gt:
		return vmvalue.NewBool(a.Cmp(b) > 0), nil
	case bytecode.Gte:
		return vmvalue.NewBool(a.Cmp(b) >= 0), nil
	case bytecode.Lt:
		return vmvalue.NewBool(a.Cmp(b) < 0), nil
	case bytecode.Lte:
		return vmvalue.NewBool(a.Cmp(b) <= 0), nil
	case bytecode.Eq:
		return vmvalue.NewBool(a.Cmp(b) == 0), nil
	case bytecode.NEq:
		return vmvalue.NewBool(a.Cmp(b) != 0), nil
	}
	return vmvalue.Value{}, &Panic{Value: errValue("unsupported integer operator")}
}

func bigOf(v vmvalue.Value) *big.Int {
	if v.Kind() == vmvalue.KindSmallInteger {
		return big.NewInt(v.SmallInt())
	}
	return &v.Object().(*vmvalue.Integer).Value
}

func narrow(h *heap.Heap, v *big.Int) vmvalue.Value {
	if v.IsInt64() {
		return vmvalue.NewSmallInt(v.Int64())
	}
	return h.Allocate(vmvalue.NewInteger(v))
}

func unaryOp(h *heap.Heap, op bytecode.Opcode, v vmvalue.Value) (vmvalue.Value, error) {
	switch op {
	case bytecode.UAdd:
		return v, nil
	case bytecode.USub:
		switch v.Kind() {
		case vmvalue.KindSmallInteger:
			return narrow(h, new(big.Int).Neg(big.NewInt(v.SmallInt()))), nil
		case vmvalue.KindInteger:
			return narrow(h, new(big.Int).Neg(&v.Object().(*vmvalue.Integer).Value)), nil
		case vmvalue.KindFloat:
			return h.Allocate(vmvalue.NewFloat(-v.Object().(*vmvalue.Float).Value)), nil
		}
	case bytecode.LNot:
		return vmvalue.NewBool(!truthy(v)), nil
	case bytecode.BNot:
		if v.Kind() == vmvalue.KindSmallInteger {
			return vmvalue.NewSmallInt(^v.SmallInt()), nil
		}
	}
	return vmvalue.Value{}, &Panic{Value: errValue("unsupported unary operator")}
}
