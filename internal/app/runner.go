// Package app wires Config, the per-repository drivers, and the
// Importer/Exporter/MergeCascader/Synchronizer pipelines into the
// operations the CLI and daemon entry points invoke. Grounded on
// original_source/bigitr/__init__.py's _Runner/Synchronize/Import/Export/
// Merge classes.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sas/bigitr/internal/bigerr"
	"github.com/sas/bigitr/internal/config"
	"github.com/sas/bigitr/internal/ctx"
	"github.com/sas/bigitr/internal/dist"
	"github.com/sas/bigitr/internal/exporter"
	"github.com/sas/bigitr/internal/ignore"
	"github.com/sas/bigitr/internal/importer"
	"github.com/sas/bigitr/internal/merge"
	"github.com/sas/bigitr/internal/sync"
)

// RepoBranch is one "name::branch" selector from the command line, with
// Branch empty meaning "every configured branch of this repository".
type RepoBranch struct {
	Repository string
	Branch     string
}

// ParseSelectors splits each "name::branch" (or bare "name") argument,
// resolving name against the repository config's basenames/section
// names. An empty list selects every configured repository.
func ParseSelectors(repo *config.RepositoryConfig, args []string) ([]RepoBranch, error) {
	if len(args) == 0 {
		var out []RepoBranch
		for _, r := range repo.Repositories() {
			out = append(out, RepoBranch{Repository: r})
		}
		return out, nil
	}
	var out []RepoBranch
	for _, arg := range args {
		name := arg
		branch := ""
		if idx := strings.LastIndex(arg, "::"); idx >= 0 {
			name, branch = arg[:idx], arg[idx+2:]
		}
		section, err := repo.RepositoryByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, RepoBranch{Repository: section, Branch: branch})
	}
	return out, nil
}

// Runner ties one Context to the per-repository pipeline operations the
// CLI subcommands invoke.
type Runner struct {
	Context *ctx.Context
	Log     *logrus.Logger
}

// importHooks resolves the DIST import pre/post hook lists for one
// (repository, distBranch) pair; exportHooks is its Export counterpart.
func (r *Runner) importHooks(repository, distBranch string) (importer.Hooks, error) {
	pre, err := r.Context.Repo.GitImportPreHooks(repository, distBranch)
	if err != nil {
		return importer.Hooks{}, err
	}
	post, err := r.Context.Repo.GitImportPostHooks(repository, distBranch)
	if err != nil {
		return importer.Hooks{}, err
	}
	return importer.Hooks{PreHooks: pre, PostHooks: post}, nil
}

func (r *Runner) exportHooks(repository, distBranch, centralBranch string) (exporter.Hooks, error) {
	distPre, err := r.Context.Repo.GitExportPreHooks(repository, distBranch)
	if err != nil {
		return exporter.Hooks{}, err
	}
	distPost, err := r.Context.Repo.GitExportPostHooks(repository, distBranch)
	if err != nil {
		return exporter.Hooks{}, err
	}
	cvsPre, err := r.Context.Repo.CVSPreHooks(repository, centralBranch)
	if err != nil {
		return exporter.Hooks{}, err
	}
	cvsPost, err := r.Context.Repo.CVSPostHooks(repository, centralBranch)
	if err != nil {
		return exporter.Hooks{}, err
	}
	return exporter.Hooks{
		DistPreHooks: distPre, DistPostHooks: distPost,
		CentralPreHooks: cvsPre, CentralPostHooks: cvsPost,
	}, nil
}

func (r *Runner) cascader(repository string, bm *config.BranchMap, distDriver *dist.Driver) *merge.Cascader {
	return &merge.Cascader{
		Dist:    distDriver,
		Targets: bm.MergeTargets,
		PostHooks: func(target string) [][]string {
			hooks, err := r.Context.Repo.GitImportPostHooks(repository, target)
			if err != nil {
				return nil
			}
			return hooks
		},
		OnConflict: func(target string) {
			stdout, stderr, ok := lastOutput(r.Context, repository)
			if ok {
				r.Context.Mails.Get(repository).AddOutput("merge into "+target, stdout, stderr)
			}
		},
	}
}

func lastOutput(c *ctx.Context, repository string) (string, string, bool) {
	l, err := c.Logs.Get(repository)
	if err != nil {
		return "", "", false
	}
	return l.LastOutput()
}

// ImportRepository runs the Importer for every (centralBranch,
// distBranch) pair configured for repository, or only the pair naming
// requestedBranch as its distBranch when set.
func (r *Runner) ImportRepository(repository, requestedBranch string) error {
	bm := r.Context.Repo.BranchMap(repository)
	distDriver, err := r.Context.DistDriver(repository)
	if err != nil {
		return err
	}
	gitRef, err := r.Context.Repo.GitRef(repository)
	if err != nil {
		return err
	}
	skeleton := r.Context.Repo.Skeleton(repository)
	cascader := r.cascader(repository, bm, distDriver)

	ig, err := ignore.Load(r.Context.Repo.IgnoreFile(repository), false)
	if err != nil {
		return err
	}

	for _, m := range bm.ImportMappings() {
		if requestedBranch != "" && m.DistBranch != requestedBranch {
			continue
		}
		cvsDriver, err := r.Context.CentralDriver(repository, m.CentralBranch, false)
		if err != nil {
			return err
		}
		exportDir, err := r.Context.CentralCheckoutDir(repository, m.CentralBranch, false)
		if err != nil {
			return err
		}
		hooks, err := r.importHooks(repository, m.DistBranch)
		if err != nil {
			return err
		}
		im := &importer.Importer{Dist: distDriver}
		spec := importer.Spec{
			Central:       cvsDriver,
			CentralBranch: m.CentralBranch,
			DistBranch:    m.DistBranch,
			Skeleton:      skeleton,
			ExportDir:     exportDir,
			GitRef:        gitRef,
			CVSIgnorePath: filepath.Join(exportDir, ".cvsignore"),
			Hooks:         hooks,
			Cascade:       cascader.Merge,
			Ignore:        ig,
		}
		if err := im.Import(spec); err != nil {
			return fmt.Errorf("importing %s::%s: %w", repository, m.DistBranch, err)
		}
	}
	return nil
}

// ExportRepository runs the Exporter for every (distBranch, centralBranch,
// exportTrackingBranch) triple configured for repository, or only the
// triple naming requestedBranch as its distBranch when set.
func (r *Runner) ExportRepository(repository, requestedBranch string) error {
	bm := r.Context.Repo.BranchMap(repository)
	distDriver, err := r.Context.DistDriver(repository)
	if err != nil {
		return err
	}
	gitRef, err := r.Context.Repo.GitRef(repository)
	if err != nil {
		return err
	}
	cvsVariables := r.Context.Repo.CVSVariables(repository)

	ig, err := ignore.Load(r.Context.Repo.IgnoreFile(repository), false)
	if err != nil {
		return err
	}

	for _, m := range bm.ExportMappings() {
		if requestedBranch != "" && m.DistBranch != requestedBranch {
			continue
		}
		cvsDriver, err := r.Context.CentralDriver(repository, m.CentralBranch, true)
		if err != nil {
			return err
		}
		hooks, err := r.exportHooks(repository, m.DistBranch, m.CentralBranch)
		if err != nil {
			return err
		}
		prefix := r.Context.Repo.BranchPrefix(repository, m.CentralBranch)
		ex := &exporter.Exporter{Dist: distDriver}
		spec := exporter.Spec{
			Central:              cvsDriver,
			DistBranch:           m.DistBranch,
			CentralBranch:        m.CentralBranch,
			ExportTrackingBranch: m.ExportTrackingBranch,
			BranchPrefix:         prefix,
			GitRef:               gitRef,
			CVSVariables:         cvsVariables,
			Hooks:                hooks,
			Ignore:               ig,
		}
		if _, err := ex.Export(spec); err != nil {
			return fmt.Errorf("exporting %s::%s: %w", repository, m.DistBranch, err)
		}
	}
	return nil
}

// MergeRepository re-runs the merge cascade from every configured source
// branch's current DIST state, or only the cascade rooted at
// requestedBranch when set. Grounded on original_source/gitcvs/gitmerge.py's
// Merger.mergeBranches: useful for re-propagating a merge conflict's fix
// without re-running a full import.
func (r *Runner) MergeRepository(repository, requestedBranch string) error {
	bm := r.Context.Repo.BranchMap(repository)
	distDriver, err := r.Context.DistDriver(repository)
	if err != nil {
		return err
	}
	cascader := r.cascader(repository, bm, distDriver)

	for _, source := range bm.MergeSources() {
		if requestedBranch != "" && source != requestedBranch {
			continue
		}
		if !cascader.Merge(source) {
			return &bigerr.MergeFailure{Repository: repository, Branch: source}
		}
	}
	return nil
}

// SynchronizeRepository runs the full Synchronizer cycle for repository.
func (r *Runner) SynchronizeRepository(repository string) error {
	preImport := r.Context.App.ExportPreImport()

	distDriver, err := r.Context.DistDriver(repository)
	if err != nil {
		return err
	}

	s := &sync.Synchronizer{
		PreImport: preImport,
		Import:    func() error { return r.ImportRepository(repository, "") },
		Export:    func() error { return r.ExportRepository(repository, "") },
		Dist:      distDriver,
	}
	return s.Synchronize()
}

// NewContent reports whether repository's DIST clone has new content
// since the last poll, per the Synchronizer's polling optimization.
func (r *Runner) NewContent(repository string) (bool, error) {
	distDriver, err := r.Context.DistDriver(repository)
	if err != nil {
		return false, err
	}
	s := &sync.Synchronizer{Dist: distDriver}
	return s.NewContent()
}

// Report writes err to the repository's run log and mails the last
// captured command output, the way errhandler.Errors.report does. It
// always logs; under config.Warn it also writes to stderr; it reports
// whether the caller should abort the remaining batch (config.Abort).
func (r *Runner) Report(repository string, err error, action config.ErrorAction) (abort bool) {
	l, logErr := r.Context.Logs.Get(repository)
	if logErr == nil {
		l.WriteError(fmt.Sprintf("Error for repository '%s': %s\n", repository, err))
		var exitErr *bigerr.ExitCodeError
		if asExitCodeError(err, &exitErr) {
			l.MailLastOutput(exitErr.Error())
		}
	}
	if r.Log != nil {
		r.Log.WithError(err).WithField("repository", repository).Error("synchronization failed")
	}
	if action == config.Warn {
		fmt.Fprintf(os.Stderr, "Error for repository '%s': %s\n", repository, err)
	}
	return action == config.Abort
}

func asExitCodeError(err error, target **bigerr.ExitCodeError) bool {
	return errors.As(err, target)
}

// Close sends any pending per-repository mail report, putting that
// repository's full captured output/errors ahead of the other parts, then
// closes and compresses every run log.
func (r *Runner) Close() error {
	allOut := func(repository string) string {
		l, err := r.Context.Logs.Get(repository)
		if err != nil {
			return ""
		}
		return l.AllOutput()
	}
	allErr := func(repository string) string {
		l, err := r.Context.Logs.Get(repository)
		if err != nil {
			return ""
		}
		return l.AllErrors()
	}
	if err := r.Context.Mails.SendAll(allOut, allErr); err != nil {
		return err
	}
	return r.Context.Logs.CloseAll()
}
