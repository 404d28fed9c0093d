package ctx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sas/bigitr/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testContext(t *testing.T) *Context {
	t.Helper()
	appPath := writeConfig(t, `
[global]
gitdir = /var/lib/bigitr/git
logdir = /var/lib/bigitr/logs
mailfrom = bigitr@example.com
smarthost = mail.example.com

[export]
cvsdir = /var/lib/bigitr/cvs-checkout

[import]
cvsdir = /var/lib/bigitr/cvs-export
`)
	app, err := config.LoadAppConfig(appPath)
	require.NoError(t, err)

	repoPath := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
`)
	repo, err := config.LoadRepositoryConfig(repoPath)
	require.NoError(t, err)

	return &Context{App: app, Repo: repo}
}

func TestCentralCheckoutDirExportIncludesBranchSegment(t *testing.T) {
	c := testContext(t)

	dir, err := c.CentralCheckoutDir("projects/widget", "HEAD", true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bigitr/cvs-checkout/widget/HEAD/widget", dir)
}

func TestCentralCheckoutDirImportSnapshotHasNoBranchSegment(t *testing.T) {
	c := testContext(t)

	dir, err := c.CentralCheckoutDir("projects/widget", "HEAD", false)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bigitr/cvs-export/widget/widget", dir)
}
