package config

import (
	"sort"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// ImportMapping is one centralBranch -> distBranch pairing, where
// distBranch is the configured value prefixed by "cvs-".
type ImportMapping struct {
	CentralBranch string
	DistBranch    string
}

// ExportMapping is one distBranch -> (centralBranch, exportTrackingBranch)
// triple.
type ExportMapping struct {
	DistBranch           string
	CentralBranch        string
	ExportTrackingBranch string
}

// BranchMap holds one repository's import/export/merge configuration,
// built from the repository's cvs.*/git.*/merge.* keys in sorted key
// order. importMap and exportMap are held in an insertion-ordered map
// (ordered by the sorted key scan that built them) rather than a plain
// slice, and mergeMap's target sets are ordered sets, mirroring the
// teacher's use of emirpasic/gods/sets/linkedhashset for its own ordered
// collections (surgeon/selection.go, surgeon/inner.go).
type BranchMap struct {
	importMap *linkedhashmap.Map // centralBranch -> distBranch
	exportMap *linkedhashmap.Map // distBranch -> ExportMapping
	mergeMap  map[string]*linkedhashset.Set
}

func newBranchMap() *BranchMap {
	return &BranchMap{
		importMap: linkedhashmap.New(),
		exportMap: linkedhashmap.New(),
		mergeMap:  make(map[string]*linkedhashset.Set),
	}
}

// ImportMappings returns the (centralBranch, distBranch) pairs in sorted
// central-branch key order.
func (b *BranchMap) ImportMappings() []ImportMapping {
	keys := b.importMap.Keys()
	out := make([]ImportMapping, 0, len(keys))
	for _, k := range keys {
		v, _ := b.importMap.Get(k)
		out = append(out, ImportMapping{CentralBranch: k.(string), DistBranch: v.(string)})
	}
	return out
}

// ExportMappings returns the (distBranch, centralBranch, trackingBranch)
// triples in sorted dist-branch key order.
func (b *BranchMap) ExportMappings() []ExportMapping {
	keys := b.exportMap.Keys()
	out := make([]ExportMapping, 0, len(keys))
	for _, k := range keys {
		v, _ := b.exportMap.Get(k)
		out = append(out, v.(ExportMapping))
	}
	return out
}

// MergeSources returns every source branch with a configured merge.<src>
// entry, sorted for deterministic re-runs.
func (b *BranchMap) MergeSources() []string {
	out := make([]string, 0, len(b.mergeMap))
	for source := range b.mergeMap {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// MergeTargets returns the configured merge targets for source, in the
// order they were declared in the whitespace-separated merge.<src> value.
func (b *BranchMap) MergeTargets(source string) []string {
	set, ok := b.mergeMap[source]
	if !ok {
		return nil
	}
	values := set.Values()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.(string))
	}
	return out
}
