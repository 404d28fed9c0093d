// Package importer drives the CENTRAL to DIST import pipeline described
// in spec.md §4.8, grounded on original_source/gitcvs/cvsimport.py's
// Importer class.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	shutil "github.com/termie/go-shutil"

	"github.com/sas/bigitr/internal/bigerr"
	"github.com/sas/bigitr/internal/central"
	"github.com/sas/bigitr/internal/dist"
	"github.com/sas/bigitr/internal/ignore"
)

// MergeCascade runs the merge cascade for a freshly imported distBranch,
// returning false if any subtree failed. Implemented by
// internal/merge.Cascader, injected to avoid an import cycle (Importer
// triggers the cascade; the cascade does not know about imports).
type MergeCascade func(distBranch string) bool

// Hooks resolves the pre/post hook command lists for one import of
// centralBranch/distBranch, composed by internal/config's generic ->
// direction -> branch -> both lookup order.
type Hooks struct {
	PreHooks  [][]string
	PostHooks [][]string
}

// Spec is everything one (centralBranch, distBranch) import needs that
// isn't itself a driver call.
type Spec struct {
	Central       *central.Driver
	CentralBranch string
	DistBranch    string
	Skeleton      string
	ExportDir     string // CENTRAL export snapshot directory for this branch
	GitRef        string // clone URL, used only if the DIST clone is missing
	CVSIgnorePath string
	Hooks         Hooks
	Cascade       MergeCascade
	Ignore        *ignore.Ignore // optional; nil means nothing is filtered
}

// Importer runs spec.md §4.8's pipeline against one repository's DIST
// clone and per-branch CENTRAL checkouts.
type Importer struct {
	Dist *dist.Driver
}

// Import runs the full 12-step pipeline for one branch pair.
func (im *Importer) Import(spec Spec) error {
	cvs := spec.Central

	// 1. prepare CENTRAL export directory
	if _, err := os.Stat(spec.ExportDir); err == nil {
		if err := os.RemoveAll(spec.ExportDir); err != nil {
			return err
		}
	}
	parent := filepath.Dir(spec.ExportDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	if err := cvs.Export(parent, filepath.Base(spec.ExportDir)); err != nil {
		return err
	}

	exportedFiles, err := listExportedFiles(spec.ExportDir)
	if err != nil {
		return err
	}
	// 2. empty export is a configuration error
	if len(exportedFiles) == 0 {
		return &bigerr.EmptyExportError{Branch: spec.CentralBranch, Side: "central"}
	}

	// 3. drop any file matching the configured ignore patterns before it
	// ever reaches the DIST tree, then demangle CVS keyword identifiers
	// in what remains.
	keepFiles := exportedFiles
	if spec.Ignore != nil {
		keepFiles = spec.Ignore.Filter(exportedFiles)
		kept := make(map[string]bool, len(keepFiles))
		for _, f := range keepFiles {
			kept[f] = true
		}
		for _, f := range exportedFiles {
			if !kept[f] {
				if err := os.Remove(filepath.Join(spec.ExportDir, f)); err != nil {
					return err
				}
			}
		}
	}
	absFiles := make([]string, len(keepFiles))
	for i, f := range keepFiles {
		absFiles[i] = filepath.Join(spec.ExportDir, f)
	}
	if err := central.DemangleKeywords(absFiles); err != nil {
		return err
	}

	// 4. initialize the DIST clone if missing
	if err := im.Dist.InitializeRepository(spec.GitRef, spec.Skeleton, spec.CVSIgnorePath, true); err != nil {
		return err
	}

	// 5. determine target distBranch state
	addSkeleton, err := im.checkoutTarget(spec.DistBranch)
	if err != nil {
		return err
	}

	// 6. pristine, then delete every tracked file
	if err := im.Dist.Pristine(); err != nil {
		return err
	}
	tracked, err := im.Dist.ListContentFiles()
	if err != nil {
		return err
	}
	distDir := im.Dist.Dir()
	for _, f := range tracked {
		// ListContentFiles returns paths relative to the clone root.
		if err := os.Remove(filepath.Join(distDir, f)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	// 7. copy the export tree, then overlay the skeleton on a new branch
	if err := copyTree(spec.ExportDir, distDir); err != nil {
		return err
	}
	if addSkeleton && spec.Skeleton != "" {
		if err := copyTree(spec.Skeleton, distDir); err != nil {
			return err
		}
	}

	// 8. import pre-hooks
	if err := im.Dist.RunPreHooks(spec.Hooks.PreHooks); err != nil {
		return err
	}

	// 9. commit and push if anything changed
	status, err := im.Dist.Status()
	if err != nil {
		return err
	}
	if status != "" {
		if err := im.Dist.InfoStatus(); err != nil {
			return err
		}
		if err := im.Dist.InfoDiff("", ""); err != nil {
			return err
		}
		if err := im.Dist.AddAll(); err != nil {
			return err
		}
		message := fmt.Sprintf("import from CENTRAL as of %s", time.Now().Format(time.ANSIC))
		if err := im.Dist.Commit(message); err != nil {
			return err
		}
		if err := im.Dist.Push("origin", spec.DistBranch); err != nil {
			return err
		}
	}

	// 10. invoke the merge cascade regardless of whether a commit occurred
	mergeOK := true
	if spec.Cascade != nil {
		mergeOK = spec.Cascade(spec.DistBranch)
	}

	// 11. pristine once more
	if err := im.Dist.Pristine(); err != nil {
		return err
	}

	// 12. import post-hooks, then fail if the cascade failed
	if err := im.Dist.RunPostHooks(spec.Hooks.PostHooks); err != nil {
		return err
	}
	if !mergeOK {
		return &bigerr.MergeFailure{Branch: spec.DistBranch}
	}
	return nil
}

// checkoutTarget implements spec.md §4.8 step 5's state machine,
// returning addSkeleton=true only on the brand-new orphan-branch path.
func (im *Importer) checkoutTarget(distBranch string) (addSkeleton bool, err error) {
	branches, err := im.Dist.Branches()
	if err != nil {
		return false, err
	}
	local := contains(branches, distBranch)
	remote := contains(branches, "remotes/origin/"+distBranch)

	if !local {
		if remote {
			if err := im.Dist.CheckoutTracking(distBranch); err != nil {
				return false, err
			}
			return false, nil
		}
		if err := im.Dist.CheckoutNewImportBranch(distBranch); err != nil {
			return false, err
		}
		return true, nil
	}

	current, err := im.Dist.Branch()
	if err != nil {
		return false, err
	}
	if current != distBranch {
		if err := im.Dist.Checkout(distBranch); err != nil {
			return false, err
		}
	}
	if err := im.Dist.Fetch(); err != nil {
		return false, err
	}
	if err := im.Dist.MergeFastForward("origin/" + distBranch); err != nil {
		return false, err
	}
	return false, nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func listExportedFiles(dir string) ([]string, error) {
	var files []string
	dirLen := len(dir) + 1
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && len(p) > dirLen {
			files = append(files, p[dirLen:])
		}
		return nil
	})
	return files, err
}

// copyTree overlays src onto dst, an already-existing DIST working
// directory (a fresh clone, or one left with empty directories/.git
// metadata after the tracked-file purge in step 6). go-shutil's
// CopyTree refuses to run against a destination that already exists
// (mirroring Python's shutil.copytree), so each top-level entry is
// copied with it individually: a subdirectory not yet present in dst
// is handed to CopyTree whole, and only a subdirectory that does
// already exist is merged one level further by recursing here.
// Matches original_source/bigitr/util.py's copyTree, which walks and
// merges into an existing target rather than requiring a fresh one.
func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if _, err := os.Stat(dstPath); os.IsNotExist(err) {
				if err := shutil.CopyTree(srcPath, dstPath, nil); err != nil {
					return err
				}
				continue
			}
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(dst, 0755); err != nil {
			return err
		}
		if err := shutil.Copy(srcPath, dstPath, false); err != nil {
			return err
		}
	}
	return nil
}
