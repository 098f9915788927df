package codeobj

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	image := bytes.Repeat([]byte{0x90}, 9784)
	raw, err := Build("gfx1030", []string{"vecadd", "scale"}, image)
	require.NoError(t, err)

	obj, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "gfx1030", obj.Arch)
	assert.Equal(t, []string{"vecadd", "scale"}, obj.Entries)
	assert.Equal(t, image, obj.Image)
}

func TestCompatibleWith(t *testing.T) {
	raw, err := Build("gfx1030", []string{"vecadd"}, []byte{1})
	require.NoError(t, err)
	obj, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, obj.CompatibleWith("gfx1030"))
	assert.False(t, obj.CompatibleWith("gfx90a"))
}

func TestHasEntry(t *testing.T) {
	raw, err := Build("gfx1030", []string{"vecadd"}, []byte{1})
	require.NoError(t, err)
	obj, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, obj.HasEntry("vecadd"))
	assert.False(t, obj.HasEntry("missing"))
}

func TestBuildRejectsEmptyEntries(t *testing.T) {
	_, err := Build("gfx1030", nil, []byte{1})
	assert.ErrorIs(t, err, ErrNoEntries)
}

func TestBuildRejectsEmptyImage(t *testing.T) {
	_, err := Build("gfx1030", []string{"k"}, nil)
	assert.ErrorIs(t, err, ErrBadContainer)
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw, err := Build("gfx1030", []string{"k"}, []byte{1})
	require.NoError(t, err)
	raw[0] ^= 0xFF

	_, err = Parse(raw)
	assert.ErrorIs(t, err, ErrBadContainer)
}

func TestParseRejectsBadVersion(t *testing.T) {
	raw, err := Build("gfx1030", []string{"k"}, []byte{1})
	require.NoError(t, err)
	raw[4] = 0xFF
	raw[5] = 0xFF

	_, err = Parse(raw)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestParseRejectsTruncation(t *testing.T) {
	raw, err := Build("gfx1030", []string{"k"}, bytes.Repeat([]byte{7}, 100))
	require.NoError(t, err)

	_, err = Parse(raw[:len(raw)-10])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseRejectsTrailingBytes(t *testing.T) {
	raw, err := Build("gfx1030", []string{"k"}, []byte{1})
	require.NoError(t, err)
	raw = append(raw, 0xEE)

	_, err = Parse(raw)
	assert.ErrorIs(t, err, ErrBadContainer)
}
