package config

import (
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/sas/bigitr/internal/bigerr"
	"github.com/sas/bigitr/internal/runner"
)

// SymbolicTrunk is the reserved token meaning "no branch specified";
// CentralDriver treats its presence as "use a date-based snapshot".
const SymbolicTrunk = "@{trunk}"

// RepositoryConfig is the per-repository mapping configuration: section
// GLOBAL plus one section per repository. Grounded on
// original_source/gitcvs/repositorymap.py.
type RepositoryConfig struct {
	s *store
}

// LoadRepositoryConfig reads, validates, and enforces basename uniqueness
// across the repository config file at path.
func LoadRepositoryConfig(path string) (*RepositoryConfig, error) {
	s, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := s.requireAbsolutePaths("skeleton", "ignorefile"); err != nil {
		return nil, err
	}
	rc := &RepositoryConfig{s: s}

	seen := make(map[string]string)
	for _, repo := range rc.Repositories() {
		name := rc.RepositoryName(repo)
		if other, ok := seen[name]; ok {
			return nil, &bigerr.ConfigError{Reason: "duplicate repository name " + name + ": " + other + " and " + repo}
		}
		seen[name] = repo
	}
	return rc, nil
}

// Repositories returns every configured repository section, sorted,
// excluding GLOBAL.
func (r *RepositoryConfig) Repositories() []string {
	return r.s.sections()
}

// RepositoryName is the basename used for uniqueness and for log/clone
// directory naming.
func (r *RepositoryConfig) RepositoryName(repository string) string {
	return filepath.Base(repository)
}

// RepositoryByName resolves a bare basename or full section name back to
// its configured section name.
func (r *RepositoryConfig) RepositoryByName(name string) (string, error) {
	for _, repo := range r.Repositories() {
		if repo == name || r.RepositoryName(repo) == name {
			return repo, nil
		}
	}
	return "", &bigerr.ConfigError{Reason: "repository " + name + " not found"}
}

func (r *RepositoryConfig) getDefault(repository, key string) (string, bool) {
	return r.s.getDefault(repository, key)
}

func (r *RepositoryConfig) require(repository, key string) (string, error) {
	v, ok := r.getDefault(repository, key)
	if !ok {
		return "", &bigerr.ConfigError{Section: repository, Key: key, Reason: "not set"}
	}
	return v, nil
}

// GitRoot is gitroot: the prefix used to form the DIST clone URL.
func (r *RepositoryConfig) GitRoot(repository string) (string, error) {
	return r.require(repository, "gitroot")
}

// GitRef is the full clone URL: <gitroot>:<repository>.
func (r *RepositoryConfig) GitRef(repository string) (string, error) {
	root, err := r.GitRoot(repository)
	if err != nil {
		return "", err
	}
	return root + ":" + repository, nil
}

// CVSRoot is cvsroot, passed to CENTRAL via the environment.
func (r *RepositoryConfig) CVSRoot(repository string) (string, error) {
	return r.require(repository, "cvsroot")
}

// CVSPath is cvspath: the module path within CENTRAL.
func (r *RepositoryConfig) CVSPath(repository string) (string, error) {
	v, ok := r.s.get(repository, "cvspath")
	if !ok {
		return "", &bigerr.ConfigError{Section: repository, Key: "cvspath", Reason: "not set"}
	}
	return v, nil
}

// Skeleton is skeleton: the optional directory seeding a new orphan
// import branch.
func (r *RepositoryConfig) Skeleton(repository string) string {
	v, _ := r.getDefault(repository, "skeleton")
	return v
}

// IgnoreFile is ignorefile: the optional path to a pattern file gating
// which CENTRAL export files the Importer copies into DIST and which
// files the Exporter considers when diffing DIST against CENTRAL.
func (r *RepositoryConfig) IgnoreFile(repository string) string {
	v, _ := r.getDefault(repository, "ignorefile")
	return v
}

// BranchFrom is branchfrom, reserved for future use per spec.md §4.5.
func (r *RepositoryConfig) BranchFrom(repository string) string {
	v, _ := r.s.get(repository, "branchfrom")
	return v
}

// BranchPrefix is prefix.<branch>: text prepended to generated commit
// messages for that branch.
func (r *RepositoryConfig) BranchPrefix(repository, branch string) string {
	v, _ := r.getDefault(repository, "prefix."+branch)
	return v
}

// CVSVariables returns the cvsvar.<N> bindings as "-s N=value" flag pairs.
func (r *RepositoryConfig) CVSVariables(repository string) []string {
	var out []string
	for _, key := range r.s.keysWithPrefix(repository, "cvsvar.") {
		name := strings.TrimPrefix(key, "cvsvar.")
		v, _ := r.s.get(repository, key)
		out = append(out, "-s", name+"="+v)
	}
	return out
}

// Email returns the whitespace-separated recipient list, or nil if unset.
func (r *RepositoryConfig) Email(repository string) []string {
	v, ok := r.getDefault(repository, "email")
	if !ok || v == "" {
		return nil
	}
	return strings.Fields(v)
}

// BranchMap builds the full import/export/merge mapping for repository,
// scanning cvs.*/git.*/merge.* in sorted key order per spec.md §9.
func (r *RepositoryConfig) BranchMap(repository string) *BranchMap {
	bm := newBranchMap()

	for _, key := range r.s.keysWithPrefix(repository, "cvs.") {
		centralBranch := strings.TrimPrefix(key, "cvs.")
		v, _ := r.s.get(repository, key)
		bm.importMap.Put(centralBranch, "cvs-"+v)
	}

	for _, key := range r.s.keysWithPrefix(repository, "git.") {
		distBranch := strings.TrimPrefix(key, "git.")
		centralBranch, _ := r.s.get(repository, key)
		bm.exportMap.Put(distBranch, ExportMapping{
			DistBranch:           distBranch,
			CentralBranch:        centralBranch,
			ExportTrackingBranch: "export-" + distBranch,
		})
	}

	for _, key := range r.s.keysWithPrefix(repository, "merge.") {
		source := strings.TrimPrefix(key, "merge.")
		v, _ := r.s.get(repository, key)
		targets := linkedhashset.New()
		for _, t := range strings.Fields(v) {
			targets.Add(t)
		}
		bm.mergeMap[source] = targets
	}

	return bm
}

// hookKeys composes the generic -> direction-qualified -> branch-qualified
// -> both-qualified key names for one hook stage, in that run order, per
// spec.md §4.5.
func hookKeys(kind, direction, when, branch string) []string {
	var keys []string
	base := when + "hook." + kind
	keys = append(keys, base)
	if direction != "" {
		keys = append(keys, base+"."+direction)
	}
	keys = append(keys, base+"."+branch)
	if direction != "" {
		keys = append(keys, base+"."+direction+"."+branch)
	}
	return keys
}

func (r *RepositoryConfig) hooks(repository, kind, direction, when, branch string) ([][]string, error) {
	var hooks [][]string
	for _, key := range hookKeys(kind, direction, when, branch) {
		v, ok := r.getDefault(repository, key)
		if !ok || v == "" {
			continue
		}
		words, err := runner.SplitHook(v)
		if err != nil {
			return nil, &bigerr.ConfigError{Section: repository, Key: key, Reason: err.Error()}
		}
		hooks = append(hooks, words)
	}
	return hooks, nil
}

// GitImportPreHooks returns prehook.git[.imp][.<branch>] commands, in
// generic -> direction -> branch -> both order.
func (r *RepositoryConfig) GitImportPreHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "git", "imp", "pre", branch)
}

// GitImportPostHooks is the posthook counterpart of GitImportPreHooks.
func (r *RepositoryConfig) GitImportPostHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "git", "imp", "post", branch)
}

// GitExportPreHooks returns prehook.git[.exp][.<branch>] commands, in
// generic -> direction -> branch -> both order.
func (r *RepositoryConfig) GitExportPreHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "git", "exp", "pre", branch)
}

// GitExportPostHooks is the posthook counterpart of GitExportPreHooks.
func (r *RepositoryConfig) GitExportPostHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "git", "exp", "post", branch)
}

// CVSPreHooks returns prehook.cvs[.<branch>] commands (CENTRAL has no
// import/export direction qualifier of its own).
func (r *RepositoryConfig) CVSPreHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "cvs", "", "pre", branch)
}

// CVSPostHooks is the posthook counterpart of CVSPreHooks.
func (r *RepositoryConfig) CVSPostHooks(repository, branch string) ([][]string, error) {
	return r.hooks(repository, "cvs", "", "post", branch)
}
