package loader

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/hammer/bytecode"
	"github.com/dr8co/hammer/handle"
	"github.com/dr8co/hammer/heap"
	"github.com/dr8co/hammer/interp"
	"github.com/dr8co/hammer/sched"
	"github.com/dr8co/hammer/vmvalue"
)

func returnIntCode(n int64) []byte {
	return append(bytecode.Make(bytecode.LoadInt, n), bytecode.Make(bytecode.Return)...)
}

func TestEncodeDecodeRoundTripsAllMemberKinds(t *testing.T) {
	cm := &CompiledModule{
		Name: "mathx",
		Members: []Member{
			{Kind: tagInteger, Name: "answerInt", Int: big.NewInt(-42)},
			{Kind: tagFloat, Name: "pi", Float: 3.5},
			{Kind: tagString, Name: "greeting", Str: "hi"},
			{Kind: tagSymbol, Name: "tag", Str: "sym"},
			{Kind: tagNull, Name: "nothing"},
			{Kind: tagBool, Name: "flag", Bool: true},
			{Kind: tagFunction, Function: &CompiledFunction{
				Name: "answer", NumParams: 0, NumRegisters: 0,
				Handlers: []vmvalue.HandlerRange{{Start: 0, End: 1, Target: 2}},
				Code:     returnIntCode(7),
			}},
		},
		InitializerMember: -1,
	}

	data := Encode(cm)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "mathx", decoded.Name)
	require.Equal(t, -1, decoded.InitializerMember)
	require.Len(t, decoded.Members, 7)

	require.Equal(t, "answerInt", decoded.Members[0].Name)
	require.Equal(t, 0, cm.Members[0].Int.Cmp(decoded.Members[0].Int))
	require.Equal(t, "pi", decoded.Members[1].Name)
	require.Equal(t, 3.5, decoded.Members[1].Float)
	require.Equal(t, "greeting", decoded.Members[2].Name)
	require.Equal(t, "hi", decoded.Members[2].Str)
	require.Equal(t, "tag", decoded.Members[3].Name)
	require.Equal(t, "sym", decoded.Members[3].Str)
	require.Equal(t, "nothing", decoded.Members[4].Name)
	require.Equal(t, "flag", decoded.Members[5].Name)
	require.True(t, decoded.Members[5].Bool)
	require.Equal(t, "answer", decoded.Members[6].Function.Name)
	require.Equal(t, []vmvalue.HandlerRange{{Start: 0, End: 1, Target: 2}}, decoded.Members[6].Function.Handlers)
	require.Equal(t, returnIntCode(7), decoded.Members[6].Function.Code)
}

func TestLoadAllocatesRecordTemplateUnindexedByName(t *testing.T) {
	cm := &CompiledModule{
		Name:              "shapes",
		Members:           []Member{{Kind: tagRecordTemplate, Fields: []string{"x", "y"}}},
		InitializerMember: -1,
	}
	mod, err := Load(Encode(cm), heap.New(nil), NewRegistry(), newTestScheduler())
	require.NoError(t, err)

	tmpl, ok := mod.Members[0].Object().(*vmvalue.FunctionTemplate)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, tmpl.FieldNames)
	require.Empty(t, mod.MemberNames)
}

func TestLoadAllocatesNullAndBoolConstantsUnderTheirNames(t *testing.T) {
	cm := &CompiledModule{
		Name: "flags",
		Members: []Member{
			{Kind: tagNull, Name: "nothing"},
			{Kind: tagBool, Name: "enabled", Bool: true},
		},
		InitializerMember: -1,
	}
	mod, err := Load(Encode(cm), heap.New(nil), NewRegistry(), newTestScheduler())
	require.NoError(t, err)

	idx, ok := mod.MemberNames["nothing"]
	require.True(t, ok)
	require.True(t, mod.Members[idx].IsNull())

	idx, ok = mod.MemberNames["enabled"]
	require.True(t, ok)
	require.Equal(t, vmvalue.True, mod.Members[idx])
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("nope"))
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	cm := &CompiledModule{Name: "m", Members: []Member{{Kind: tagInteger, Int: big.NewInt(1)}}, InitializerMember: -1}
	data := Encode(cm)
	_, err := Decode(data[:len(data)-2])
	require.Error(t, err)
}

func newTestScheduler() *sched.Scheduler {
	m := interp.New(heap.New(nil), handle.NewStack(), nil)
	return sched.New(m, nil)
}

func TestLoadBuildsRuntimeModuleWithNoInitializer(t *testing.T) {
	cm := &CompiledModule{
		Name: "mathx",
		Members: []Member{
			{Kind: tagFunction, Function: &CompiledFunction{Name: "answer", Code: returnIntCode(42)}},
		},
		InitializerMember: -1,
	}

	h := heap.New(nil)
	registry := NewRegistry()
	mod, err := Load(Encode(cm), h, registry, newTestScheduler())
	require.NoError(t, err)
	require.True(t, mod.Initialized)

	idx, ok := mod.MemberNames["answer"]
	require.True(t, ok)
	fn, ok := mod.Members[idx].Object().(*vmvalue.Function)
	require.True(t, ok)
	require.Same(t, mod, fn.Template.Module)

	registered, ok := registry.Lookup("mathx")
	require.True(t, ok)
	require.Same(t, mod, registered)
	_, ok = registry.BuildID("mathx")
	require.True(t, ok)
}

func TestLoadResolvesImportFromAnotherModule(t *testing.T) {
	base := &CompiledModule{
		Name: "base",
		Members: []Member{
			{Kind: tagFunction, Function: &CompiledFunction{Name: "seven", Code: returnIntCode(7)}},
		},
		InitializerMember: -1,
	}

	h := heap.New(nil)
	registry := NewRegistry()
	s := newTestScheduler()
	_, err := Load(Encode(base), h, registry, s)
	require.NoError(t, err)

	dependent := &CompiledModule{
		Name: "dependent",
		Members: []Member{
			{Kind: tagImport, Name: "base", Import: &Import{Module: "base"}},
		},
		InitializerMember: -1,
	}
	mod, err := Load(Encode(dependent), h, registry, s)
	require.NoError(t, err)

	idx, ok := mod.MemberNames["base"]
	require.True(t, ok)
	imported, ok := mod.Members[idx].Object().(*vmvalue.Module)
	require.True(t, ok)
	sevenIdx, ok := imported.MemberNames["seven"]
	require.True(t, ok)
	fn, ok := imported.Members[sevenIdx].Object().(*vmvalue.Function)
	require.True(t, ok)
	require.Equal(t, "seven", fn.Template.Name)
}

func TestLoadReportsUnresolvedImportAsError(t *testing.T) {
	cm := &CompiledModule{
		Name:              "dependent",
		Members:           []Member{{Kind: tagImport, Name: "missing", Import: &Import{Module: "missing"}}},
		InitializerMember: -1,
	}
	_, err := Load(Encode(cm), heap.New(nil), NewRegistry(), newTestScheduler())
	require.Error(t, err)
}

func TestLoadGatesInitializedOnInitializerCoroutineCompletion(t *testing.T) {
	cm := &CompiledModule{
		Name: "withinit",
		Members: []Member{
			{Kind: tagFunction, Function: &CompiledFunction{Name: "init", Code: returnIntCode(1)}},
		},
		InitializerMember: 0,
	}

	h := heap.New(nil)
	registry := NewRegistry()
	s := newTestScheduler()
	mod, err := Load(Encode(cm), h, registry, s)
	require.NoError(t, err)
	require.False(t, mod.Initialized)

	_, outcome, ok := s.RunReady()
	require.True(t, ok)
	require.Equal(t, interp.OutcomeReturned, outcome)
	require.True(t, mod.Initialized)
}
