package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "data.enc")

	dir, err := EnsureParentDir(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "a", "b"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic_CreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestWriteFileAtomic_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")

	require.NoError(t, WriteFileAtomic(path, []byte("x"), 0o600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob", entries[0].Name())
}
