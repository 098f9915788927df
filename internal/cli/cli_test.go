package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0B", formatBytes(0))
	assert.Equal(t, "512B", formatBytes(512))
	assert.Equal(t, "1.0KiB", formatBytes(1024))
	assert.Equal(t, "1.5MiB", formatBytes(3<<20/2))
	assert.Equal(t, "16.0GiB", formatBytes(16<<30))
}

func TestDeviceIndicesExplicit(t *testing.T) {
	// An explicit index argument never touches the client.
	indices, err := deviceIndices(nil, []string{"3"})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, indices)

	_, err = deviceIndices(nil, []string{"zero"})
	assert.Error(t, err)
}
