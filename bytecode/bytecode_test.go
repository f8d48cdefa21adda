package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeEncodesOperandsAtDefinedWidths(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int64
		want     []byte
	}{
		{LoadLocal, []int64{258}, []byte{byte(LoadLocal), 1, 2}},
		{Call, []int64{3}, []byte{byte(Call), 3}},
		{LoadClosure, []int64{1, 258}, []byte{byte(LoadClosure), 1, 1, 2}},
		{Add, nil, []byte{byte(Add)}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Make(tt.op, tt.operands...))
	}
}

func TestReadOperandsInvertsMake(t *testing.T) {
	def, err := Lookup(byte(LoadClosure))
	require.NoError(t, err)

	ins := Make(LoadClosure, 2, 513)
	operands, read := ReadOperands(def, ins[1:])
	require.Equal(t, []int64{2, 513}, operands)
	require.Equal(t, len(ins)-1, read)
}

func TestMakeFloatRoundTripsThroughReadFloat(t *testing.T) {
	ins := MakeFloat(3.5)
	def, err := Lookup(byte(LoadFloat))
	require.NoError(t, err)

	operands, _ := ReadOperands(def, ins[1:])
	require.Equal(t, 3.5, ReadFloat(operands[0]))
}

func TestInstructionsStringDisassemblesAKnownSequence(t *testing.T) {
	var ins Instructions
	ins = append(ins, Make(LoadInt, 7)...)
	ins = append(ins, Make(LoadInt, 8)...)
	ins = append(ins, Make(Add)...)
	ins = append(ins, Make(Return)...)

	out := ins.String()
	require.Contains(t, out, "LoadInt 7")
	require.Contains(t, out, "LoadInt 8")
	require.Contains(t, out, "Add")
	require.Contains(t, out, "Return")
}

func TestLookupRejectsUnknownOpcode(t *testing.T) {
	_, err := Lookup(255)
	require.Error(t, err)
}
