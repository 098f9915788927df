package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	args := []byte{1, 2, 3, 4}
	payload := []byte("hello device")

	err := WriteFrame(&buf, uint16(OpMemcpyHtoD), args, payload)
	require.NoError(t, err)

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(OpMemcpyHtoD), f.Code)
	assert.Equal(t, args, f.Args)
	assert.Equal(t, payload, f.Payload)
}

func TestFrameEmptySegments(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, uint16(OpDeviceCount), nil, nil)
	require.NoError(t, err)

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(OpDeviceCount), f.Code)
	assert.Empty(t, f.Args)
	assert.Empty(t, f.Payload)
}

func TestFrameCompressedPayload(t *testing.T) {
	// Highly compressible payload well above the compression threshold.
	payload := bytes.Repeat([]byte{0xAB}, 64<<10)

	var buf bytes.Buffer
	err := WriteFrame(&buf, uint16(OpModuleLoad), nil, payload)
	require.NoError(t, err)
	assert.Less(t, buf.Len(), len(payload), "compressed frame should be smaller than payload")

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, f.Payload)
}

func TestFrameBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, 1, nil, nil))
	raw := buf.Bytes()
	raw[0] = 0xDE
	raw[1] = 0xAD

	_, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestFrameBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, 1, nil, nil))
	raw := buf.Bytes()
	raw[2] = Version + 1

	_, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestFrameOversizedPayloadRejected(t *testing.T) {
	// Forge a header declaring a payload above the cap; the reader must
	// reject it before allocating.
	var hdr [16]byte
	binary.LittleEndian.PutUint16(hdr[0:2], Magic)
	hdr[2] = Version
	binary.LittleEndian.PutUint32(hdr[8:12], MaxPayload+1)

	_, err := ReadFrame(bytes.NewReader(hdr[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, 1, []byte{1, 2, 3}, []byte("abcdef")))
	raw := buf.Bytes()

	_, err := ReadFrame(bytes.NewReader(raw[:len(raw)-2]))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestEncodeDecodeArgs(t *testing.T) {
	in := LaunchKernelArgs{
		Function: 42,
		Stream:   7,
		GridX:    4, GridY: 1, GridZ: 1,
		BlockX: 256, BlockY: 1, BlockZ: 1,
		SharedMem: 0,
		ArgCount:  4,
	}
	raw, err := EncodeArgs(&in)
	require.NoError(t, err)

	var out LaunchKernelArgs
	require.NoError(t, DecodeArgs(raw, &out))
	assert.Equal(t, in, out)
}

func TestDecodeArgsShortBuffer(t *testing.T) {
	var out LaunchKernelArgs
	err := DecodeArgs([]byte{1, 2, 3}, &out)
	assert.ErrorIs(t, err, ErrTruncated)
}
