// Package exporter drives the DIST to CENTRAL export pipeline described
// in spec.md §4.9, grounded on original_source/gitcvs/gitexport.py's
// Exporter class.
package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sas/bigitr/internal/bigerr"
	"github.com/sas/bigitr/internal/central"
	"github.com/sas/bigitr/internal/dist"
	"github.com/sas/bigitr/internal/ignore"
)

// Hooks resolves the pre/post hook command lists for both DIST and
// CENTRAL sides of one export.
type Hooks struct {
	DistPreHooks     [][]string
	DistPostHooks    [][]string
	CentralPreHooks  [][]string
	CentralPostHooks [][]string
}

// Spec is everything one (distBranch, centralBranch, exportTrackingBranch)
// export needs beyond the drivers.
type Spec struct {
	Central              *central.Driver
	DistBranch           string
	CentralBranch        string
	ExportTrackingBranch string
	BranchPrefix         string
	GitRef               string
	CVSVariables         []string
	Hooks                Hooks
	Ignore               *ignore.Ignore // optional; nil means nothing is filtered
}

// Exporter runs spec.md §4.9's pipeline against one repository's DIST
// clone and per-branch CENTRAL checkouts.
type Exporter struct {
	Dist *dist.Driver
}

// Export runs the full 13-step pipeline for one branch triple. Returns
// (false, nil) when step 3 finds nothing new to export — not an error,
// just nothing to do this run.
func (ex *Exporter) Export(spec Spec) (exported bool, err error) {
	// 1. ensure the DIST clone exists
	if err := ex.Dist.InitializeRepository(spec.GitRef, "", "", false); err != nil {
		if _, ok := err.(*bigerr.MissingBranchError); !ok {
			return false, err
		}
	}

	// 2. fetch, pristine, locate/track/checkout/fast-forward distBranch
	if err := ex.Dist.Fetch(); err != nil {
		return false, err
	}
	if err := ex.Dist.Pristine(); err != nil {
		return false, err
	}
	branches, err := ex.Dist.Branches()
	if err != nil {
		return false, err
	}
	if err := trackBranch(ex.Dist, spec.DistBranch, branches, false); err != nil {
		return false, err
	}
	if err := ex.Dist.Checkout(spec.DistBranch); err != nil {
		return false, err
	}
	if err := ex.Dist.MergeFastForward("origin/" + spec.DistBranch); err != nil {
		return false, removeOnFailure(ex.Dist, err)
	}
	if err := trackBranch(ex.Dist, spec.ExportTrackingBranch, branches, true); err != nil {
		return false, err
	}

	// 3. determine the commit message, or bail if nothing changed; the
	// branch list is the one taken before the tracking branch was created
	message, err := ex.commitMessage(spec, branches)
	if err != nil {
		return false, err
	}
	if message == "" {
		return false, nil
	}

	// 4. export pre-hooks (DIST side)
	if err := ex.Dist.RunPreHooks(spec.Hooks.DistPreHooks); err != nil {
		return false, err
	}

	cvs := spec.Central

	// 5. ensure the CENTRAL checkout exists
	if err := ensureCentralCheckout(cvs); err != nil {
		return false, err
	}

	// 6. compute the six file sets
	gitFiles, err := ex.Dist.ListContentFiles()
	if err != nil {
		return false, err
	}
	cvsFiles, err := cvs.ListContentFiles()
	if err != nil {
		return false, err
	}
	if spec.Ignore != nil {
		gitFiles = spec.Ignore.Filter(gitFiles)
		cvsFiles = spec.Ignore.Filter(cvsFiles)
	}
	sets := computeFileSets(gitFiles, cvsFiles)

	// 7. safety gates
	if len(sets.gitSet) == 0 {
		return false, &bigerr.EmptyExportError{Branch: spec.DistBranch, Side: "dist"}
	}
	for _, d := range sets.addedDirs {
		base := filepath.Base(d)
		if base == "CVS" || strings.HasSuffix(d, "/CVS") {
			return false, &bigerr.MetadataLeakError{Dirs: sets.addedDirsSorted()}
		}
	}

	// 8. prepend the branch prefix if configured
	if spec.BranchPrefix != "" {
		message = spec.BranchPrefix + "\n\n" + message
	}

	if err := ex.Dist.InfoDiff(spec.ExportTrackingBranch, spec.DistBranch); err != nil {
		return false, err
	}

	// 9. apply changes to CENTRAL
	if err := cvs.DeleteFiles(sets.deletedSorted()); err != nil {
		return false, err
	}
	if err := cvs.CopyFiles(ex.Dist.Dir(), sets.commonAddedSorted()); err != nil {
		return false, err
	}
	if err := cvs.AddDirectories(sets.addedDirsSorted()); err != nil {
		return false, err
	}
	if err := cvs.AddFiles(sets.addedSorted()); err != nil {
		return false, err
	}

	// 10. CENTRAL pre-hooks (may alter files before commit/diff)
	if err := cvs.RunPreHooks(spec.Hooks.CentralPreHooks); err != nil {
		return false, err
	}

	// 11. diff then commit
	if err := cvs.InfoDiff(); err != nil {
		return false, err
	}
	if err := cvs.Commit(message, spec.CVSVariables); err != nil {
		return false, err
	}

	// 12. push distBranch onto exportTrackingBranch on origin
	if err := ex.Dist.Push("origin", spec.DistBranch+":"+spec.ExportTrackingBranch); err != nil {
		return false, err
	}

	// 13. CENTRAL then DIST export post-hooks
	if err := cvs.RunPostHooks(spec.Hooks.CentralPostHooks); err != nil {
		return false, err
	}
	if err := ex.Dist.RunPostHooks(spec.Hooks.DistPostHooks); err != nil {
		return false, err
	}

	return true, nil
}

func (ex *Exporter) commitMessage(spec Spec, branches []string) (string, error) {
	if !contains(branches, "remotes/origin/"+spec.ExportTrackingBranch) {
		return fmt.Sprintf("Initial export to CENTRAL from distBranch %s", spec.DistBranch), nil
	}
	messages, err := ex.Dist.LogMessages("remotes/origin/"+spec.ExportTrackingBranch, spec.DistBranch)
	if err != nil {
		return "", err
	}
	return messages, nil
}

// trackBranch ensures branch is checked out locally, tracking origin if
// needed; createBranch controls whether a wholly-new branch may be
// created when neither a local nor remote copy exists.
func trackBranch(d *dist.Driver, branch string, branches []string, createBranch bool) error {
	if contains(branches, branch) {
		return nil
	}
	if contains(branches, "remotes/origin/"+branch) {
		return d.TrackBranch(branch)
	}
	if !createBranch {
		return &bigerr.MissingBranchError{Branch: branch}
	}
	return d.NewBranch(branch)
}

// removeOnFailure implements gitexport.py's "fast-forward failed after a
// hard reset" recovery: the whole DIST working directory is discarded so
// the next run re-clones it from scratch, rather than leaving it in a
// half-merged state.
func removeOnFailure(d *dist.Driver, cause error) error {
	if err := d.Remove(); err != nil {
		return err
	}
	return cause
}

func ensureCentralCheckout(cvs *central.Driver) error {
	if cvs.Exists() {
		return cvs.Update()
	}
	if err := cvs.Checkout(); err != nil {
		return err
	}
	if !cvs.Exists() {
		return &bigerr.MissingBranchError{}
	}
	return nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

type fileSets struct {
	gitSet, cvsSet             map[string]struct{}
	deleted, added, common     map[string]struct{}
	addedDirs                  map[string]struct{}
}

func computeFileSets(gitFiles, cvsFiles []string) fileSets {
	gitSet := toSet(gitFiles)
	cvsSet := toSet(cvsFiles)

	deleted := make(map[string]struct{})
	for f := range cvsSet {
		if _, ok := gitSet[f]; !ok {
			if filepath.Base(f) == ".cvsignore" {
				continue
			}
			deleted[f] = struct{}{}
		}
	}

	added := make(map[string]struct{})
	common := make(map[string]struct{})
	for f := range gitSet {
		if _, ok := cvsSet[f]; ok {
			common[f] = struct{}{}
		} else {
			added[f] = struct{}{}
		}
	}

	gitDirs := dirSet(gitFiles)
	cvsDirs := dirSet(cvsFiles)
	addedDirs := make(map[string]struct{})
	for d := range gitDirs {
		if _, ok := cvsDirs[d]; !ok {
			addedDirs[d] = struct{}{}
		}
	}

	return fileSets{
		gitSet: gitSet, cvsSet: cvsSet,
		deleted: deleted, added: added, common: common,
		addedDirs: addedDirs,
	}
}

func toSet(files []string) map[string]struct{} {
	s := make(map[string]struct{}, len(files))
	for _, f := range files {
		s[f] = struct{}{}
	}
	return s
}

func dirSet(files []string) map[string]struct{} {
	s := make(map[string]struct{})
	for _, f := range files {
		s[filepath.Dir(f)] = struct{}{}
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s fileSets) deletedSorted() []string { return sortedKeys(s.deleted) }
func (s fileSets) addedSorted() []string   { return sortedKeys(s.added) }
func (s fileSets) addedDirsSorted() []string {
	return sortedKeys(s.addedDirs)
}
func (s fileSets) commonAddedSorted() []string {
	union := make(map[string]struct{}, len(s.common)+len(s.added))
	for k := range s.common {
		union[k] = struct{}{}
	}
	for k := range s.added {
		union[k] = struct{}{}
	}
	return sortedKeys(union)
}
