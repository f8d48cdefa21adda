package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarUintRoundTrips(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for _, want := range cases {
		encoded := WriteVarUint(want)
		got, n := ReadVarUint(encoded)
		require.Equal(t, want, got)
		require.Equal(t, len(encoded), n)
	}
}

func TestVarUintMultiByteEncodingUsesContinuationBit(t *testing.T) {
	encoded := WriteVarUint(300)
	require.Len(t, encoded, 2)
	require.NotZero(t, encoded[0]&0x80)
	require.Zero(t, encoded[1]&0x80)
}

func TestReadVarUintConsumesOnlyItsOwnBytes(t *testing.T) {
	encoded := append(WriteVarUint(128), 0xFF)
	_, n := ReadVarUint(encoded)
	require.Equal(t, 2, n)
}
