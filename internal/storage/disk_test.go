package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSave(t *testing.T) {
	store, err := NewDiskStore(filepath.Join(t.TempDir(), "uploads"), 16)
	require.NoError(t, err)

	name, size, err := store.Save(context.Background(), "../../etc/Screenshot.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotContains(t, name, "/")

	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Remove(name))
	require.NoError(t, store.Remove(name))
}

func TestDiskStoreRejectsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, 4)
	require.NoError(t, err)

	_, _, err = store.Save(context.Background(), "big.txt", strings.NewReader("too many bytes"))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
