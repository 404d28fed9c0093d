// Package central drives the CENTRAL side repository (a CVS module
// checked out per branch, per spec.md §4.7). Grounded on
// original_source/bigitr/cvs.py, which extends the plain
// original_source/gitcvs/cvs.py with "@{trunk}" symbolic-branch handling
// and -kk keyword-substitution flags.
package central

import (
	"os"
	"path/filepath"
	"regexp"

	shutil "github.com/termie/go-shutil"

	"github.com/sas/bigitr/internal/runlog"
	"github.com/sas/bigitr/internal/runner"
)

// SymbolicTrunk is the reserved cvsbranch token meaning "no branch": a
// date-based snapshot of the vendor trunk rather than a tagged branch.
const SymbolicTrunk = "@{trunk}"

// Driver operates one CENTRAL checkout directory for one repository
// branch. A CENTRAL checkout switches branches slowly, so callers
// maintain one Driver per (repository, branch) pair rather than reusing
// one across branches.
type Driver struct {
	run      *runner.Runner
	log      *runlog.Log
	root     string // CVSROOT connection string
	location string // module path within CVSROOT
	path     string // local checkout directory
	branch   string
}

// mappedBranch returns branch, or "" if branch is the symbolic trunk
// token, mirroring cvs.py's SYMBOLIC_BRANCH_MAP lookup.
func mappedBranch(branch string) string {
	if branch == SymbolicTrunk {
		return ""
	}
	return branch
}

// New returns a Driver for one (repository, branch) CENTRAL checkout.
func New(run *runner.Runner, log *runlog.Log, root, location, path, branch string) *Driver {
	return &Driver{run: run, log: log, root: root, location: location, path: path, branch: branch}
}

func (d *Driver) setEnvironment() map[string]string {
	return map[string]string{"CVSROOT": d.root}
}

func (d *Driver) cvs(dir string, errorFatal bool, argv ...string) (int, []byte, error) {
	opts := []runner.Option{
		runner.WithDir(dir),
		runner.WithEnv(d.setEnvironment()),
		runner.WithErrorFatal(errorFatal),
	}
	return d.run.Run(d.log, append([]string{"cvs"}, argv...), opts...)
}

// Exists reports whether the local checkout directory is already present.
func (d *Driver) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ListContentFiles walks path, excluding "CVS" metadata directories,
// returning every file path relative to path.
func (d *Driver) ListContentFiles() ([]string, error) {
	var files []string
	dirLen := len(d.path) + 1
	err := filepath.Walk(d.path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == "CVS" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			if len(p) > dirLen {
				files = append(files, p[dirLen:])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Export exports the branch's content into targetDir (the parent of
// targetDir must already exist; targetDir itself must not).
func (d *Driver) Export(parentDir, targetName string) error {
	argv := []string{"export", "-kk", "-d", targetName}
	mapped := mappedBranch(d.branch)
	if mapped != "" {
		argv = append(argv, "-r", d.branch)
	} else {
		argv = append(argv, "-D", "now")
	}
	argv = append(argv, d.location)
	_, _, err := d.cvs(parentDir, true, argv...)
	return err
}

// Checkout checks out the branch into filepath.Base(d.path) under
// filepath.Dir(d.path).
func (d *Driver) Checkout() error {
	argv := []string{"checkout", "-kk", "-d", filepath.Base(d.path)}
	if mappedBranch(d.branch) != "" {
		argv = append(argv, "-r", d.branch)
	}
	argv = append(argv, d.location)
	_, _, err := d.cvs(filepath.Dir(d.path), true, argv...)
	return err
}

// InfoDiff logs `cvs diff` for the run log. CVS diff uses non-zero exit
// codes to report found differences, so failure is not fatal here.
func (d *Driver) InfoDiff() error {
	_, _, err := d.cvs(d.path, false, "diff")
	return err
}

// Update runs `cvs update -kk -d` in the existing checkout.
func (d *Driver) Update() error {
	_, _, err := d.cvs(d.path, true, "update", "-kk", "-d")
	return err
}

// DeleteFiles removes fileNames from disk and from CENTRAL version
// control.
func (d *Driver) DeleteFiles(fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}
	for _, name := range fileNames {
		if err := os.Remove(filepath.Join(d.path, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	_, _, err := d.cvs(d.path, true, append([]string{"remove"}, fileNames...)...)
	return err
}

// CopyFiles overlays fileNames from sourceDir onto the checkout, using
// go-shutil to preserve file mode bits the way surgeon/inner.go's
// preservation-set copy does.
func (d *Driver) CopyFiles(sourceDir string, fileNames []string) error {
	for _, name := range fileNames {
		src := filepath.Join(sourceDir, name)
		dst := filepath.Join(d.path, name)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := shutil.Copy(src, dst, false); err != nil {
			return err
		}
	}
	return nil
}

// AddDirectories adds dirNames to CENTRAL version control, recursing into
// parents first so CVS never sees a child added before its parent.
func (d *Driver) AddDirectories(dirNames []string) error {
	for _, dirName := range dirNames {
		if err := d.addDirectory(dirName); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) addDirectory(dirName string) error {
	parent := filepath.Dir(dirName)
	if parent != "" && parent != "/" && parent != "." {
		if !exists(filepath.Join(d.path, parent, "CVS")) {
			if err := d.addDirectory(parent); err != nil {
				return err
			}
		}
	}
	if exists(filepath.Join(d.path, dirName, "CVS")) {
		return nil
	}
	_, _, err := d.cvs(d.path, true, "add", dirName)
	return err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AddFiles adds fileNames to CENTRAL version control with keyword
// expansion disabled (-kk).
func (d *Driver) AddFiles(fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}
	_, _, err := d.cvs(d.path, true, append([]string{"add", "-kk"}, fileNames...)...)
	return err
}

// Commit writes message to a temp file and commits with the configured
// cvsvar -s flags, removing the temp file on return.
func (d *Driver) Commit(message string, cvsVariables []string) error {
	f, err := os.CreateTemp("", "*.bigitr")
	if err != nil {
		return err
	}
	name := f.Name()
	defer os.Remove(name)
	if _, err := f.WriteString(message); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	argv := append([]string{}, cvsVariables...)
	if mappedBranch(d.branch) != "" {
		argv = append(argv, "commit", "-r", d.branch, "-R", "-F", name)
	} else {
		argv = append(argv, "commit", "-R", "-F", name)
	}
	_, _, err = d.cvs(d.path, true, argv...)
	return err
}

// RunPreHooks runs each hook command from d.path, in order.
func (d *Driver) RunPreHooks(hooks [][]string) error {
	return d.runHooks(hooks)
}

// RunPostHooks runs each hook command from d.path, in order.
func (d *Driver) RunPostHooks(hooks [][]string) error {
	return d.runHooks(hooks)
}

func (d *Driver) runHooks(hooks [][]string) error {
	for _, hook := range hooks {
		if _, _, err := d.run.Run(d.log, hook, runner.WithDir(d.path), runner.WithErrorFatal(true)); err != nil {
			return err
		}
	}
	return nil
}

var keywordRe = regexp.MustCompile(`\$(Author|Date|Header|Id|Name|Locker|RCSfile|Revision|Source|State):[^$]*\$`)

// logKeywordRe matches an expanded $Log:...$ keyword. Unlike the other
// keywords, $Log$ expands to a multi-line RCS changelog body rather than
// a single line, and must not be collapsed back to "$Log$" — CVS would
// just re-expand it on the next checkout. It is renamed to "$OldLog:"
// instead, keeping the accumulated body inert.
var logKeywordRe = regexp.MustCompile(`\$Log:([^$]*)\$`)

// DemangleKeywords rewrites expanded CVS keyword substitutions (e.g.
// "$Id: foo.c,v 1.4 2020/01/01 ...$") back to their collapsed form
// ("$Id$") in every file in fileNames, in-process rather than shelling
// out to sed -i -r the way original_source/gitcvs/cvs.py's
// cleanKeywords does — matching the corpus idiom of rewriting content
// in-process when it is already in memory. "$Log:" is renamed to
// "$OldLog:" rather than collapsed, per original_source/story_test/
// longstory_test.py's test_lowlevel5keyword.
func DemangleKeywords(fileNames []string) error {
	for _, name := range fileNames {
		info, err := os.Stat(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		cleaned := keywordRe.ReplaceAll(data, []byte("$$$1$$"))
		cleaned = logKeywordRe.ReplaceAll(cleaned, []byte("$$OldLog:$1$$"))
		if string(cleaned) == string(data) {
			continue
		}
		if err := os.WriteFile(name, cleaned, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}
