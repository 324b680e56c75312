//go:build unix

// ABOUTME: Tests for shared memory regions
// ABOUTME: Uses a temporary directory in place of /dev/shm
package voxel

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempShmDir(t *testing.T) {
	t.Helper()
	old := ShmDir
	ShmDir = t.TempDir()
	t.Cleanup(func() { ShmDir = old })
}

func TestCreateAndAttach(t *testing.T) {
	useTempShmDir(t)

	owner, err := Create("test_region")
	require.NoError(t, err)
	defer owner.Close()

	fi, err := os.Stat(owner.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(RegionSize), fi.Size())

	writer, err := Attach("test_region", false)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := Attach("test_region", true)
	require.NoError(t, err)
	defer reader.Close()

	wb := writer.Buffer()
	require.NoError(t, wb.Write(1, 7, 8, 9, 0xAB))
	require.NoError(t, wb.SetMetadata(Metadata{BitsPerChannel: 1, RevolutionsPerMinute: 600}))
	require.NoError(t, wb.Publish(1))

	// The mapping is shared: the read-only view sees the writer's frame
	rb := reader.Buffer()
	assert.True(t, rb.ReadOnly())
	assert.Equal(t, 1, rb.ActivePage())
	c, err := rb.ReadActive().At(7, 8, 9)
	require.NoError(t, err)
	assert.Equal(t, Pixel(0xAB), c)
	assert.Equal(t, uint16(600), rb.Metadata().RevolutionsPerMinute)

	assert.ErrorIs(t, rb.Write(0, 0, 0, 0, 1), ErrReadOnly)
}

func TestCreateZeroesExistingRegion(t *testing.T) {
	useTempShmDir(t)

	first, err := Create("reused")
	require.NoError(t, err)
	require.NoError(t, first.Buffer().Write(0, 1, 1, 1, 0xFF))
	require.NoError(t, first.Buffer().Publish(1))
	require.NoError(t, first.Close())

	second, err := Create("reused")
	require.NoError(t, err)
	defer second.Close()

	buf := second.Buffer()
	assert.Equal(t, 0, buf.ActivePage())
	p0, _ := buf.Page(0)
	assert.Equal(t, 0, p0.Count())
}

func TestAttachMissingRegion(t *testing.T) {
	useTempShmDir(t)

	_, err := Attach("does_not_exist", false)
	assert.Error(t, err)
}

func TestAttachUndersizedRegion(t *testing.T) {
	useTempShmDir(t)

	require.NoError(t, os.WriteFile(regionPath("small"), make([]byte, 16), 0o666))
	_, err := Attach("small", true)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	useTempShmDir(t)

	r, err := Create("gone")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	require.NoError(t, Remove("gone"))
	_, err = os.Stat(regionPath("gone"))
	assert.True(t, os.IsNotExist(err))
}
