package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetDefaultFallsBackToGlobal(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
mailfrom = global@example.com
gitdir = /var/lib/bigitr/git

[projects/widget]
gitdir = /var/lib/bigitr/git/widget
`)
	s, err := load(path)
	require.NoError(t, err)

	v, ok := s.getDefault("projects/widget", "gitdir")
	require.True(t, ok)
	assert.Equal(t, "/var/lib/bigitr/git/widget", v)

	v, ok = s.getDefault("projects/widget", "mailfrom")
	require.True(t, ok)
	assert.Equal(t, "global@example.com", v)

	_, ok = s.getDefault("projects/widget", "nope")
	assert.False(t, ok)
}

func TestStoreInterpolatesEnv(t *testing.T) {
	t.Setenv("BIGITR_TEST_ROOT", "/srv/bigitr")
	path := writeConfig(t, `
[GLOBAL]
gitdir = ${BIGITR_TEST_ROOT}/git
`)
	s, err := load(path)
	require.NoError(t, err)

	v, ok := s.get("GLOBAL", "gitdir")
	require.True(t, ok)
	assert.Equal(t, "/srv/bigitr/git", v)
}

func TestStoreSectionsExcludesGlobalAndDefault(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitdir = /srv/git

[b/repo]
cvsroot = x

[a/repo]
cvsroot = x
`)
	s, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/repo", "b/repo"}, s.sections())
}

func TestStoreKeysWithPrefixSorted(t *testing.T) {
	path := writeConfig(t, `
[repo]
git.main = HEAD
git.release-1 = release-1
git.alpha = alpha
cvs.main = main
`)
	s, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"git.alpha", "git.main", "git.release-1"}, s.keysWithPrefix("repo", "git."))
}

func TestStoreRequireAbsolutePathsRejectsRelative(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitdir = not/absolute
`)
	s, err := load(path)
	require.NoError(t, err)

	err = s.requireAbsolutePaths()
	require.Error(t, err)
}

func TestStoreRequireAbsolutePathsChecksExtraKeys(t *testing.T) {
	path := writeConfig(t, `
[repo]
skeleton = relative/seed
`)
	s, err := load(path)
	require.NoError(t, err)

	assert.NoError(t, s.requireAbsolutePaths())
	assert.Error(t, s.requireAbsolutePaths("skeleton"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load("/nonexistent/path/does-not-exist.ini")
	require.Error(t, err)
}

func TestInterpolateReplacesUnsetVarsWithEmpty(t *testing.T) {
	os.Unsetenv("BIGITR_TEST_UNSET_VAR")
	assert.Equal(t, "prefix-", interpolate("prefix-${BIGITR_TEST_UNSET_VAR}"))
}
