package central

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappedBranch(t *testing.T) {
	assert.Equal(t, "", mappedBranch(SymbolicTrunk))
	assert.Equal(t, "release-1", mappedBranch("release-1"))
}

func TestDriverExists(t *testing.T) {
	dir := t.TempDir()
	checkout := filepath.Join(dir, "checkout")

	d := New(nil, nil, "", "", checkout, "")
	assert.False(t, d.Exists())

	require.NoError(t, os.MkdirAll(checkout, 0o755))
	assert.True(t, d.Exists())
}

func TestDriverListContentFilesSkipsCVSMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "CVS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CVS", "Entries"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("b"), 0o644))

	d := New(nil, nil, "", "", dir, "")
	files, err := d.ListContentFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.txt", filepath.Join("sub", "nested.txt")}, files)
}

func TestExistsHelper(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))

	assert.True(t, exists(present))
	assert.False(t, exists(filepath.Join(dir, "absent")))
}

func TestDemangleKeywordsCollapsesOrdinaryKeywords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords")
	require.NoError(t, os.WriteFile(path, []byte(
		"$Author: jdoe $\n$Id: keywords,v 1.4 2020/01/01 00:00:00 jdoe Exp $\n"), 0o644))

	require.NoError(t, DemangleKeywords([]string{path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "$Author$\n$Id$\n", string(data))
}

func TestDemangleKeywordsRenamesLogToOldLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords")
	require.NoError(t, os.WriteFile(path, []byte(
		"$Log: keywords,v $\nRevision 1.1  2020/01/01 00:00:00  jdoe\nadd keywords\n$\n"), 0o644))

	require.NoError(t, DemangleKeywords([]string{path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	keywords := string(data)
	assert.NotContains(t, keywords, "$Log:")
	assert.Contains(t, keywords, "$OldLog:")
	assert.Contains(t, keywords, "add keywords")
}

func TestDemangleKeywordsLeavesUnexpandedContentAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(path, []byte("nothing to see here\n"), 0o644))

	require.NoError(t, DemangleKeywords([]string{path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nothing to see here\n", string(data))
}
