package simdev

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpurelay/gpurelay/internal/codeobj"
	"github.com/gpurelay/gpurelay/internal/device"
)

func TestMemoryRoundTrip(t *testing.T) {
	b := New()
	mem, err := b.MemAlloc(0, 64)
	require.NoError(t, err)

	pattern := []byte("0123456789abcdef")
	require.NoError(t, mem.Write(8, pattern))

	got := make([]byte, len(pattern))
	require.NoError(t, mem.Read(8, got))
	assert.Equal(t, pattern, got)

	require.NoError(t, mem.Free())
	assert.ErrorIs(t, mem.Read(0, got), device.ErrFreed)
}

func TestMemAllocAccountsVram(t *testing.T) {
	b := New(DeviceSpec{Name: "tiny", Arch: "gfx1030", VramBytes: 128, ComputeUnits: 1})

	mem, err := b.MemAlloc(0, 100)
	require.NoError(t, err)

	_, err = b.MemAlloc(0, 100)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)

	require.NoError(t, mem.Free())
	_, err = b.MemAlloc(0, 100)
	assert.NoError(t, err)
}

func TestCopyBounds(t *testing.T) {
	b := New()
	mem, err := b.MemAlloc(0, 16)
	require.NoError(t, err)

	err = mem.Write(8, make([]byte, 16))
	assert.ErrorIs(t, err, device.ErrInvalidCopy)
}

func TestDeviceIndexOutOfRange(t *testing.T) {
	b := New()
	_, err := b.Properties(1)
	assert.ErrorIs(t, err, device.ErrOutOfRange)
	_, err = b.MemAlloc(-1, 16)
	assert.ErrorIs(t, err, device.ErrOutOfRange)
	_, err = b.Metrics(5)
	assert.ErrorIs(t, err, device.ErrOutOfRange)
}

func TestModuleLoadArchMismatch(t *testing.T) {
	b := New() // gfx1030
	container, err := codeobj.Build("gfx90a", []string{"vecadd"}, []byte{1, 2, 3})
	require.NoError(t, err)

	_, err = b.ModuleLoad(0, container)
	assert.ErrorIs(t, err, device.ErrInvalidArch)
}

func TestVecAddKernel(t *testing.T) {
	const n = 1024
	b := New()

	container, err := codeobj.Build("gfx1030", []string{"vecadd"}, make([]byte, 9784))
	require.NoError(t, err)
	mod, err := b.ModuleLoad(0, container)
	require.NoError(t, err)
	fn, err := mod.Function("vecadd")
	require.NoError(t, err)

	_, err = mod.Function("missing")
	assert.ErrorIs(t, err, device.ErrNoSuchEntry)

	a, err := b.MemAlloc(0, n*4)
	require.NoError(t, err)
	bm, err := b.MemAlloc(0, n*4)
	require.NoError(t, err)
	c, err := b.MemAlloc(0, n*4)
	require.NoError(t, err)

	abuf := make([]byte, n*4)
	bbuf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(abuf[i*4:], uint32(i))
		binary.LittleEndian.PutUint32(bbuf[i*4:], uint32(2*i))
	}
	require.NoError(t, a.Write(0, abuf))
	require.NoError(t, bm.Write(0, bbuf))

	nArg := make([]byte, 4)
	binary.LittleEndian.PutUint32(nArg, n)
	err = fn.Launch(
		device.Dim3{X: 4, Y: 1, Z: 1},
		device.Dim3{X: 256, Y: 1, Z: 1},
		0, nil,
		[]device.LaunchArg{{Mem: a}, {Mem: bm}, {Mem: c}, {Data: nArg}},
	)
	require.NoError(t, err)

	cbuf := make([]byte, n*4)
	require.NoError(t, c.Read(0, cbuf))
	for i := 0; i < n; i++ {
		got := int32(binary.LittleEndian.Uint32(cbuf[i*4:]))
		require.Equal(t, int32(3*i), got, "c[%d]", i)
	}
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(cbuf[0:])))
	assert.Equal(t, int32(1533), int32(binary.LittleEndian.Uint32(cbuf[511*4:])))
	assert.Equal(t, int32(3069), int32(binary.LittleEndian.Uint32(cbuf[1023*4:])))
}

func TestTelemetryReflectsAllocations(t *testing.T) {
	b := New(DeviceSpec{Name: "tiny", Arch: "gfx1030", VramBytes: 1000, ComputeUnits: 4})

	usage, err := b.VramUsage(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), usage.Used)
	assert.Equal(t, uint64(1000), usage.Total)

	_, err = b.MemAlloc(0, 500)
	require.NoError(t, err)

	usage, err = b.VramUsage(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), usage.Used)

	act, err := b.Activity(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(50), act.GfxPct)

	m, err := b.Metrics(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), m.VramUsed)
	assert.Greater(t, m.PowerMilliW, uint32(0))
}

func TestDeviceInfo(t *testing.T) {
	b := New()
	info, err := b.DeviceInfo(0)
	require.NoError(t, err)
	assert.Equal(t, "Sim Radeon GX1000", info.Name)
	assert.NotEmpty(t, info.Serial)
	assert.Equal(t, uint32(0x1002), info.VendorID)
}
