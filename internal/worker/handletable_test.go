package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpurelay/gpurelay/internal/device/simdev"
)

func TestHandleTableMintAndLookup(t *testing.T) {
	backend := simdev.New()
	mem, err := backend.MemAlloc(0, 64)
	require.NoError(t, err)

	tbl := newHandleTable()
	h := tbl.mint(kindMemory, mem)
	assert.Equal(t, uint64(1), h)

	got, err := tbl.memory(h)
	require.NoError(t, err)
	assert.Equal(t, mem, got)

	// Wrong kind and unknown handles both fail the same way.
	_, err = tbl.stream(h)
	assert.ErrorIs(t, err, errInvalidHandle)
	_, err = tbl.memory(42)
	assert.ErrorIs(t, err, errInvalidHandle)
}

func TestHandleTableNeverReusesValues(t *testing.T) {
	backend := simdev.New()
	tbl := newHandleTable()

	mem1, err := backend.MemAlloc(0, 16)
	require.NoError(t, err)
	h1 := tbl.mint(kindMemory, mem1)

	_, err = tbl.remove(h1, kindMemory)
	require.NoError(t, err)

	mem2, err := backend.MemAlloc(0, 16)
	require.NoError(t, err)
	h2 := tbl.mint(kindMemory, mem2)
	assert.NotEqual(t, h1, h2)

	// The removed handle stays dead.
	_, err = tbl.memory(h1)
	assert.ErrorIs(t, err, errInvalidHandle)
}

func TestHandleTableTeardownReleasesEverything(t *testing.T) {
	backend := simdev.New()
	tbl := newHandleTable()

	mem, err := backend.MemAlloc(0, 1024)
	require.NoError(t, err)
	tbl.mint(kindMemory, mem)

	stream, err := backend.StreamCreate(0)
	require.NoError(t, err)
	tbl.mint(kindStream, stream)

	usage, err := backend.VramUsage(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), usage.Used)

	tbl.teardown()

	usage, err = backend.VramUsage(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), usage.Used)

	// teardown empties the table.
	_, err = tbl.memory(1)
	assert.ErrorIs(t, err, errInvalidHandle)
}
