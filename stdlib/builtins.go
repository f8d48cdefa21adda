// Package stdlib provides the native functions a hammer.Context exposes
// as globals (spec.md's LoadGlobal / host ABI async-native registration).
// Grounded on the teacher's object.Builtins table (len/first/rest/
// last/push/puts), adapted from the teacher's tree-walking object.Object
// values to vmvalue.Value/vmvalue.NativeFunc, plus an async delay native
// exercising the scheduler's resume-token suspension path.
package stdlib

import (
	"fmt"
	"time"

	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/sched"
	"github.com/dr8co/hammer/vmvalue"
)

// Globals builds the default native-function table, allocating any
// heap-backed results (new Array values, mostly) through h. A host that
// wants a smaller or different surface can build its own map instead and
// pass it to hammer.NewContext.
func Globals(h *heap.Heap) map[string]vmvalue.Value {
	return map[string]vmvalue.Value{
		"len":   vmvalue.FromObject(vmvalue.NewNativeFunction("len", lenFn)),
		"first": vmvalue.FromObject(vmvalue.NewNativeFunction("first", firstFn)),
		"last":  vmvalue.FromObject(vmvalue.NewNativeFunction("last", lastFn)),
		"rest":  vmvalue.FromObject(vmvalue.NewNativeFunction("rest", restFn(h))),
		"push":  vmvalue.FromObject(vmvalue.NewNativeFunction("push", pushFn(h))),
		"puts":  vmvalue.FromObject(vmvalue.NewNativeFunction("puts", putsFn)),
		"delay": vmvalue.FromObject(vmvalue.NewNativeAsyncFunction("delay", delayFn)),
	}
}

func wrongArgs(name string, got, want int) (vmvalue.Value, error) {
	return vmvalue.Value{}, fmt.Errorf("%s: wrong number of arguments, got %d, want %d", name, got, want)
}

func unsupportedArg(name string, v vmvalue.Value) (vmvalue.Value, error) {
	return vmvalue.Value{}, fmt.Errorf("%s: argument not supported, got %s", name, v.Kind())
}

func lenFn(args []vmvalue.Value) (vmvalue.Value, error) {
	if len(args) != 1 {
		return wrongArgs("len", len(args), 1)
	}
	switch obj := args[0].Object().(type) {
	case *vmvalue.String:
		return vmvalue.NewSmallInt(int64(len(obj.Value))), nil
	case *vmvalue.Array:
		return vmvalue.NewSmallInt(int64(obj.Len())), nil
	default:
		return unsupportedArg("len", args[0])
	}
}

func firstFn(args []vmvalue.Value) (vmvalue.Value, error) {
	if len(args) != 1 {
		return wrongArgs("first", len(args), 1)
	}
	arr, ok := args[0].Object().(*vmvalue.Array)
	if !ok {
		return unsupportedArg("first", args[0])
	}
	if arr.Len() == 0 {
		return vmvalue.Null, nil
	}
	return arr.Get(0), nil
}

func lastFn(args []vmvalue.Value) (vmvalue.Value, error) {
	if len(args) != 1 {
		return wrongArgs("last", len(args), 1)
	}
	arr, ok := args[0].Object().(*vmvalue.Array)
	if !ok {
		return unsupportedArg("last", args[0])
	}
	if arr.Len() == 0 {
		return vmvalue.Null, nil
	}
	return arr.Get(arr.Len() - 1), nil
}

func restFn(h *heap.Heap) vmvalue.NativeFunc {
	return func(args []vmvalue.Value) (vmvalue.Value, error) {
		if len(args) != 1 {
			return wrongArgs("rest", len(args), 1)
		}
		arr, ok := args[0].Object().(*vmvalue.Array)
		if !ok {
			return unsupportedArg("rest", args[0])
		}
		if arr.Len() == 0 {
			return vmvalue.Null, nil
		}
		out := h.Allocate(vmvalue.NewArray())
		dst := out.Object().(*vmvalue.Array)
		for i := 1; i < arr.Len(); i++ {
			dst.Push(arr.Get(i))
		}
		return out, nil
	}
}

func pushFn(h *heap.Heap) vmvalue.NativeFunc {
	return func(args []vmvalue.Value) (vmvalue.Value, error) {
		if len(args) != 2 {
			return wrongArgs("push", len(args), 2)
		}
		arr, ok := args[0].Object().(*vmvalue.Array)
		if !ok {
			return unsupportedArg("push", args[0])
		}
		out := h.Allocate(vmvalue.NewArray())
		dst := out.Object().(*vmvalue.Array)
		for i := 0; i < arr.Len(); i++ {
			dst.Push(arr.Get(i))
		}
		dst.Push(args[1])
		return out, nil
	}
}

func putsFn(args []vmvalue.Value) (vmvalue.Value, error) {
	for _, arg := range args {
		fmt.Println(displayArg(arg))
	}
	return vmvalue.Null, nil
}

// displayArg gives puts a minimal rendering of its own arguments without
// importing package hammer: null, booleans, small integers and strings
// print as values, and anything else prints through %v.
func displayArg(v vmvalue.Value) string {
	switch v.Kind() {
	case vmvalue.KindNull:
		return "null"
	case vmvalue.KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case vmvalue.KindSmallInteger:
		return fmt.Sprintf("%d", v.SmallInt())
	default:
		if s, ok := v.Object().(*vmvalue.String); ok {
			return s.Value
		}
		return fmt.Sprintf("%v", v.Object())
	}
}

// delayFn suspends the calling coroutine for ms milliseconds, then
// resumes it with null — the host ABI's async-native registration
// (spec.md's point (g)) and the `delay(ms)` example of a native that
// completes asynchronously rather than firing its resume token inline.
func delayFn(args []vmvalue.Value, resume func(vmvalue.Value, error)) {
	if len(args) != 1 {
		resume(vmvalue.Value{}, fmt.Errorf("delay: wrong number of arguments, got %d, want 1", len(args)))
		return
	}
	ms := args[0].SmallInt()
	_, fire := sched.WrapResume(resume)
	time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		_ = fire(vmvalue.Null, nil)
	})
}
