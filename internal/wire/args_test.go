package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetString(t *testing.T) {
	var name [64]byte
	PutString(name[:], "Radeon Sim 9000")
	assert.Equal(t, "Radeon Sim 9000", GetString(name[:]))
}

func TestPutStringTruncates(t *testing.T) {
	var short [4]byte
	PutString(short[:], "abcdefgh")
	assert.Equal(t, "abc", GetString(short[:]))
}

func TestKernelArgsRoundTrip(t *testing.T) {
	in := []KernelArg{
		{Kind: KernelArgMem, Handle: 11},
		{Kind: KernelArgMem, Handle: 12},
		{Kind: KernelArgData, Data: []byte{0, 4, 0, 0}},
	}
	packed := PackKernelArgs(in)

	out, err := UnpackKernelArgs(packed, uint32(len(in)))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestKernelArgsCountMismatch(t *testing.T) {
	packed := PackKernelArgs([]KernelArg{{Kind: KernelArgMem, Handle: 1}})

	_, err := UnpackKernelArgs(packed, 2)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestKernelArgsHostileCount(t *testing.T) {
	packed := PackKernelArgs([]KernelArg{{Kind: KernelArgMem, Handle: 1}})

	// A count the payload cannot possibly hold must be rejected before it
	// sizes any allocation.
	_, err := UnpackKernelArgs(packed, 0xFFFFFFFF)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = UnpackKernelArgs(nil, 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestKernelArgsTrailingBytes(t *testing.T) {
	packed := PackKernelArgs([]KernelArg{{Kind: KernelArgMem, Handle: 1}})
	packed = append(packed, 0xFF)

	_, err := UnpackKernelArgs(packed, 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestKernelArgsUnknownKind(t *testing.T) {
	_, err := UnpackKernelArgs([]byte{0x7F}, 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestOpcodeNamespaces(t *testing.T) {
	assert.True(t, OpMemAlloc.IsCompute())
	assert.False(t, OpMemAlloc.IsTelemetry())
	assert.True(t, OpSmiMetrics.IsTelemetry())
	assert.False(t, OpSmiMetrics.IsCompute())
}

func TestStatusRemote(t *testing.T) {
	assert.True(t, StatusOutOfMemory.Remote())
	assert.False(t, StatusTimeout.Remote())
	assert.Equal(t, "OUT_OF_MEMORY", StatusOutOfMemory.String())
	assert.Equal(t, "TIMEOUT", StatusTimeout.String())
}
