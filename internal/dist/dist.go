// Package dist drives the DIST side repository (a git clone per spec.md
// §4.6), one Driver per repository working directory. Grounded on
// original_source/gitcvs/git.py's Git class.
package dist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sas/bigitr/internal/bigerr"
	"github.com/sas/bigitr/internal/runlog"
	"github.com/sas/bigitr/internal/runner"
)

// Ref is one line of `git show-ref --head` output: a commit hash paired
// with the ref name it resolves (including the synthetic "HEAD" entry).
type Ref struct {
	Hash string
	Name string
}

// Driver operates against one DIST working directory.
type Driver struct {
	run  *runner.Runner
	log  *runlog.Log
	dir  string
}

// New returns a Driver rooted at dir, a clone of one repository.
func New(run *runner.Runner, log *runlog.Log, dir string) *Driver {
	return &Driver{run: run, log: log, dir: dir}
}

// Dir returns the working directory this Driver operates in.
func (d *Driver) Dir() string { return d.dir }

// Remove deletes the whole working directory, so the next
// InitializeRepository call re-clones it from scratch.
func (d *Driver) Remove() error {
	return os.RemoveAll(d.dir)
}

func (d *Driver) git(argv ...string) (int, []byte, error) {
	return d.run.Run(d.log, append([]string{"git"}, argv...), runner.WithDir(d.dir))
}

func (d *Driver) gitCapture(argv ...string) (string, error) {
	_, out, err := d.run.Run(d.log, append([]string{"git"}, argv...),
		runner.WithDir(d.dir), runner.WithCaptureStdout(true))
	return string(out), err
}

// Clone clones uri into the parent of dir.
func (d *Driver) Clone(uri string) error {
	run := &runner.Runner{Sink: d.run.Sink}
	_, _, err := run.Run(d.log, []string{"git", "clone", uri}, runner.WithDir(filepath.Dir(d.dir)))
	return err
}

// Fetch runs `git fetch --all`.
func (d *Driver) Fetch() error {
	_, _, err := d.git("fetch", "--all")
	return err
}

func (d *Driver) reset() error {
	_, _, err := d.git("reset", "--hard", "HEAD")
	return err
}

func (d *Driver) clean() error {
	_, _, err := d.git("clean", "--force", "-x", "-d")
	return err
}

// Pristine discards untracked/ignored cruft and any dirty working-tree
// changes, the way CVS.pristine() in the original guards every branch
// switch.
func (d *Driver) Pristine() error {
	ignored, err := d.StatusIgnored()
	if err != nil {
		return err
	}
	if ignored == "" {
		return nil
	}
	if err := d.clean(); err != nil {
		return err
	}
	refs, err := d.Refs()
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.Name == "HEAD" {
			return d.reset()
		}
	}
	return nil
}

// Branches lists every local and remote branch name, with the "* "
// current-branch marker stripped and the "remotes/" prefix kept as
// `git branch -a` prints it.
func (d *Driver) Branches() ([]string, error) {
	out, err := d.gitCapture("branch", "-a")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		branches = append(branches, strings.Fields(line)[0])
	}
	return branches, nil
}

// Branch returns the currently checked-out branch name.
func (d *Driver) Branch() (string, error) {
	out, err := d.gitCapture("branch")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "* ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "*")), nil
		}
	}
	return "", nil
}

// Refs runs `git show-ref --head`, returning nil if the repository has
// no refs yet (a fresh orphan clone).
func (d *Driver) Refs() ([]Ref, error) {
	rc, out, err := d.run.Run(d.log, []string{"git", "show-ref", "--head"},
		runner.WithDir(d.dir), runner.WithCaptureStdout(true), runner.WithErrorFatal(false))
	if err != nil || rc != 0 {
		return nil, nil
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}
	var refs []Ref
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		refs = append(refs, Ref{Hash: fields[0], Name: fields[1]})
	}
	return refs, nil
}

// NewBranch creates branch from the current HEAD and pushes it upstream.
func (d *Driver) NewBranch(branch string) error {
	if _, _, err := d.git("branch", branch); err != nil {
		return err
	}
	_, _, err := d.git("push", "--set-upstream", "origin", branch)
	return err
}

// TrackBranch creates a local branch tracking origin/<branch>.
func (d *Driver) TrackBranch(branch string) error {
	_, _, err := d.git("branch", "--track", branch, "origin/"+branch)
	return err
}

// CheckoutTracking checks out a new local branch tracking origin/<branch>.
func (d *Driver) CheckoutTracking(branch string) error {
	_, _, err := d.git("checkout", "--track", "origin/"+branch)
	return err
}

// CheckoutNewImportBranch creates a fresh orphan branch with an empty tree.
func (d *Driver) CheckoutNewImportBranch(branch string) error {
	if _, _, err := d.git("checkout", "--orphan", branch); err != nil {
		return err
	}
	// fails harmlessly on an empty initial checkout
	d.run.Run(d.log, []string{"git", "rm", "-rf", "."}, runner.WithDir(d.dir), runner.WithErrorFatal(false))
	return nil
}

// Checkout force-checks-out branch, avoiding line-ending-induced failures
// on an otherwise-clean tree.
func (d *Driver) Checkout(branch string) error {
	_, _, err := d.git("checkout", "-f", branch)
	return err
}

// ListContentFiles lists every tracked, non-ignored file, excluding any
// whose basename begins with ".git" (metadata the exporter must never
// leak into CENTRAL).
func (d *Driver) ListContentFiles() ([]string, error) {
	_, out, err := d.run.Run(d.log, []string{"git", "ls-files", "--exclude-standard", "-z"},
		runner.WithDir(d.dir), runner.WithCaptureStdout(true))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(string(out), "\x00") {
		if f == "" {
			continue
		}
		if strings.HasPrefix(filepath.Base(f), ".git") {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// Status returns `git status --porcelain` output.
func (d *Driver) Status() (string, error) {
	return d.gitCapture("status", "--porcelain")
}

// StatusIgnored returns `git status --porcelain --ignored` output.
func (d *Driver) StatusIgnored() (string, error) {
	return d.gitCapture("status", "--porcelain", "--ignored")
}

// InfoStatus logs `git status` for the run log.
func (d *Driver) InfoStatus() error {
	_, _, err := d.git("status")
	return err
}

// InfoDiff logs a diff between since and until (until defaults to HEAD)
// for inclusion in the run log / mailed summary.
func (d *Driver) InfoDiff(since, until string) error {
	if until == "" {
		until = "HEAD"
	}
	argv := []string{"diff", "--stat=200", "--patch", "--minimal", "--irreversible-delete"}
	if since != "" {
		argv = append(argv, since+".."+until)
	}
	_, _, err := d.git(argv...)
	return err
}

// AddAll stages every change in the working tree.
func (d *Driver) AddAll() error {
	_, _, err := d.git("add", "-A", ".")
	return err
}

// MergeDefault merges branch into the current branch with message,
// tolerating a non-zero exit (a merge conflict) rather than aborting the
// run.
func (d *Driver) MergeDefault(branch, message string) (int, error) {
	rc, _, err := d.run.Run(d.log, []string{"git", "merge", branch, "-m", message},
		runner.WithDir(d.dir), runner.WithErrorFatal(false))
	return rc, err
}

// MergeFastForward requires a fast-forward merge of branch, failing the
// run if one is not possible.
func (d *Driver) MergeFastForward(branch string) error {
	_, _, err := d.git("merge", "--ff", "--ff-only", branch)
	return err
}

// MergeIgnore records branch as merged without taking any of its
// content, used to retire a closed CENTRAL branch.
func (d *Driver) MergeIgnore(branch string) error {
	_, _, err := d.git("merge", "--strategy=ours", "--ff",
		"-m", `branch "`+branch+`" closed`, branch)
	return err
}

// Commit commits staged changes with message.
func (d *Driver) Commit(message string) error {
	_, _, err := d.git("commit", "-m", message)
	return err
}

// Push pushes branch to remote.
func (d *Driver) Push(remote, branch string) error {
	_, _, err := d.git("push", remote, branch)
	return err
}

// LogMessages returns `git log since..until` output.
func (d *Driver) LogMessages(since, until string) (string, error) {
	return d.gitCapture("log", since+".."+until)
}

// RunPreHooks runs each hook command in order, aborting on first failure.
func (d *Driver) RunPreHooks(hooks [][]string) error {
	return d.runHooks(hooks)
}

// RunPostHooks runs each hook command in order, aborting on first failure.
func (d *Driver) RunPostHooks(hooks [][]string) error {
	return d.runHooks(hooks)
}

func (d *Driver) runHooks(hooks [][]string) error {
	for _, hook := range hooks {
		if _, _, err := d.run.Run(d.log, hook, runner.WithDir(d.dir), runner.WithErrorFatal(true)); err != nil {
			return err
		}
	}
	return nil
}

// InitializeRepository clones the repository if dir does not yet exist.
// If the resulting clone has no refs at all and create is true, it seeds
// an initial commit from skeleton (or a synthesized .gitignore mirroring
// cvsignorePath, if present) and pushes the default branch. With
// create=false an empty clone is reported as a missing branch.
func (d *Driver) InitializeRepository(uri, skeleton, cvsignorePath string, create bool) error {
	if _, err := os.Stat(d.dir); os.IsNotExist(err) {
		if err := d.Clone(uri); err != nil {
			return err
		}
	}

	refs, err := d.Refs()
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return nil
	}
	if !create {
		return &bigerr.MissingBranchError{Branch: "(default)"}
	}

	if skeleton != "" {
		if err := copySkeleton(skeleton, d.dir); err != nil {
			return err
		}
	} else {
		if err := writeGitignoreFromCVSIgnore(cvsignorePath, d.dir); err != nil {
			return err
		}
	}
	if err := d.AddAll(); err != nil {
		return err
	}
	if err := d.Commit("create new empty master branch"); err != nil {
		return err
	}
	return d.Push("origin", "master")
}

func copySkeleton(skeleton, dir string) error {
	entries, err := os.ReadDir(skeleton)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(skeleton, e.Name())
		dst := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func writeGitignoreFromCVSIgnore(cvsignorePath, dir string) error {
	var content []byte
	if cvsignorePath != "" {
		if data, err := os.ReadFile(cvsignorePath); err == nil {
			content = data
		}
	}
	return os.WriteFile(filepath.Join(dir, ".gitignore"), content, 0644)
}
