package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"main", "release-1"}, "release-1"))
	assert.False(t, contains([]string{"main"}, "release-1"))
}

func TestListExportedFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("b"), 0o644))

	files, err := listExportedFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.txt", filepath.Join("sub", "nested.txt")}, files)
}

func TestCopyTreeCopiesContentsAndStructure(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "nested.txt"), []byte("world"), 0o644))

	require.NoError(t, copyTree(src, dst))

	top, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(top))

	nested, err := os.ReadFile(filepath.Join(dst, "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(nested))
}
