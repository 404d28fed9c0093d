package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryConfigBranchMap(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
cvs.HEAD = main
cvs.release-1 = release-1
git.main = HEAD
git.release-1 = release-1
merge.main = release-1 release-2
`)
	rc, err := LoadRepositoryConfig(path)
	require.NoError(t, err)

	require.Equal(t, []string{"projects/widget"}, rc.Repositories())
	assert.Equal(t, "widget", rc.RepositoryName("projects/widget"))

	root, err := rc.GitRoot("projects/widget")
	require.NoError(t, err)
	assert.Equal(t, "git@example.com", root)

	ref, err := rc.GitRef("projects/widget")
	require.NoError(t, err)
	assert.Equal(t, "git@example.com:projects/widget", ref)

	bm := rc.BranchMap("projects/widget")
	imports := bm.ImportMappings()
	require.Len(t, imports, 2)
	assert.Equal(t, "HEAD", imports[0].CentralBranch)
	assert.Equal(t, "cvs-main", imports[0].DistBranch)
	assert.Equal(t, "release-1", imports[1].CentralBranch)
	assert.Equal(t, "cvs-release-1", imports[1].DistBranch)

	exports := bm.ExportMappings()
	require.Len(t, exports, 2)
	assert.Equal(t, "main", exports[0].DistBranch)
	assert.Equal(t, "HEAD", exports[0].CentralBranch)
	assert.Equal(t, "export-main", exports[0].ExportTrackingBranch)

	assert.Equal(t, []string{"main"}, bm.MergeSources())
	assert.Equal(t, []string{"release-1", "release-2"}, bm.MergeTargets("main"))
	assert.Nil(t, bm.MergeTargets("release-1"))
}

func TestRepositoryConfigDuplicateBasenameRejected(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget

[other/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
`)
	_, err := LoadRepositoryConfig(path)
	require.Error(t, err)
}

func TestRepositoryConfigCVSVariables(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
cvsvar.RELEASE = 1.0
cvsvar.BRANCH = main
`)
	rc, err := LoadRepositoryConfig(path)
	require.NoError(t, err)

	vars := rc.CVSVariables("projects/widget")
	assert.Equal(t, []string{"-s", "BRANCH=main", "-s", "RELEASE=1.0"}, vars)
}

func TestRepositoryConfigIgnoreFile(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
ignorefile = /etc/bigitr/widget.ignore
`)
	rc, err := LoadRepositoryConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/bigitr/widget.ignore", rc.IgnoreFile("projects/widget"))
	assert.Equal(t, "", rc.IgnoreFile("projects/other"))
}

func TestRepositoryConfigIgnoreFileMustBeAbsolute(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
ignorefile = relative/widget.ignore
`)
	_, err := LoadRepositoryConfig(path)
	assert.Error(t, err)
}

func TestRepositoryConfigEmail(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com
email = admin@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
email = dev1@example.com dev2@example.com

[projects/gadget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = gadget
`)
	rc, err := LoadRepositoryConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"dev1@example.com", "dev2@example.com"}, rc.Email("projects/widget"))
	assert.Equal(t, []string{"admin@example.com"}, rc.Email("projects/gadget"))
}

func TestRepositoryConfigHookKeyOrder(t *testing.T) {
	assert.Equal(t, []string{
		"prehook.git",
		"prehook.git.imp",
		"prehook.git.HEAD",
		"prehook.git.imp.HEAD",
	}, hookKeys("git", "imp", "pre", "HEAD"))

	assert.Equal(t, []string{
		"prehook.cvs",
		"prehook.cvs.HEAD",
	}, hookKeys("cvs", "", "pre", "HEAD"))
}

func TestRepositoryConfigHooksSplitAndOrder(t *testing.T) {
	path := writeConfig(t, `
[GLOBAL]
gitroot = git@example.com

[projects/widget]
cvsroot = :pserver:cvs@example.com:/cvsroot
cvspath = widget
prehook.git = echo generic
prehook.git.imp = echo direction
prehook.git.HEAD = echo branch
prehook.git.imp.HEAD = echo both
`)
	rc, err := LoadRepositoryConfig(path)
	require.NoError(t, err)

	hooks, err := rc.GitImportPreHooks("projects/widget", "HEAD")
	require.NoError(t, err)
	require.Len(t, hooks, 4)
	assert.Equal(t, []string{"echo", "generic"}, hooks[0])
	assert.Equal(t, []string{"echo", "direction"}, hooks[1])
	assert.Equal(t, []string{"echo", "branch"}, hooks[2])
	assert.Equal(t, []string{"echo", "both"}, hooks[3])
}
