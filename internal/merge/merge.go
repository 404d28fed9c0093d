// Package merge implements the depth-first merge cascade described in
// spec.md §4.10, grounded on original_source/gitcvs/gitmerge.py's Merger
// class (itself a cleaned-up version of the inline recursion in
// original_source/gitcvs/cvsimport.py's Importer.merge).
package merge

import (
	"fmt"

	"github.com/sas/bigitr/internal/dist"
)

// DefaultMaxDepth bounds the cascade's recursion depth. mergeMap is
// expected to be a DAG, but the source data never validates acyclicity,
// so a depth cap turns an accidental cycle into a bounded, diagnosable
// failure instead of a stack overflow.
const DefaultMaxDepth = 64

// PostHooks resolves the import post-hook commands to run after a
// successful merge into target, keyed by target branch.
type PostHooks func(target string) [][]string

// Cascader runs the recursive merge fan-out for one repository's DIST
// clone.
type Cascader struct {
	Dist      *dist.Driver
	Targets   func(source string) []string
	PostHooks PostHooks
	MaxDepth  int

	// OnConflict, if set, is called with the name of the branch whose
	// merge failed (or, when the depth cap is hit, the source branch); the
	// callback itself fetches the last captured output, typically to pass
	// it to the repository's Mailer.AddOutput.
	OnConflict func(target string)
}

// Merge runs the cascade rooted at source, returning false if any
// subtree failed to merge cleanly. Failures in one subtree never stop
// other subtrees from being attempted.
func (c *Cascader) Merge(source string) bool {
	maxDepth := c.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return c.merge(source, maxDepth)
}

func (c *Cascader) merge(source string, depthRemaining int) bool {
	if depthRemaining <= 0 {
		if c.OnConflict != nil {
			c.OnConflict(source)
		}
		return false
	}

	if err := c.Dist.Pristine(); err != nil {
		return false
	}

	success := true
	for _, target := range c.Targets(source) {
		if !c.mergeOne(source, target, depthRemaining) {
			success = false
		}
	}
	return success
}

func (c *Cascader) mergeOne(source, target string, depthRemaining int) bool {
	if err := c.Dist.Checkout(target); err != nil {
		return false
	}
	if err := c.Dist.MergeFastForward("origin/" + target); err != nil {
		return false
	}

	message := fmt.Sprintf("Automated merge '%s' into '%s'", source, target)
	rc, err := c.Dist.MergeDefault(source, message)
	if err != nil || rc != 0 {
		if c.OnConflict != nil {
			c.OnConflict(target)
		}
		return false
	}

	if err := c.Dist.Push("origin", target); err != nil {
		return false
	}
	if c.PostHooks != nil {
		if err := c.Dist.RunPostHooks(c.PostHooks(target)); err != nil {
			return false
		}
	}

	return c.merge(target, depthRemaining-1)
}
