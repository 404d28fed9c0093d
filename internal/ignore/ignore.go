// Package ignore loads a line-oriented pattern file (glob or regex) and
// filters or selects a path set against it.
package ignore

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type pattern struct {
	raw string
	re  *regexp.Regexp // set only in regex mode
}

// Ignore holds the parsed patterns from one pattern file.
type Ignore struct {
	fileName string
	regex    bool
	patterns []pattern // nil means the pattern file did not exist
}

// Load reads patterns from path. Blank lines and lines beginning with '#'
// are skipped. If path does not exist, the returned Ignore has no
// patterns: Filter becomes identity and Include returns its input
// unchanged, per spec.
func Load(path string, useRegex bool) (*Ignore, error) {
	if path == "" {
		return &Ignore{regex: useRegex}, nil
	}
	ig := &Ignore{fileName: filepath.Base(path), regex: useRegex}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ig, nil
	}
	if err != nil {
		return nil, err
	}

	ig.patterns = []pattern{}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		p := pattern{raw: trimmed}
		if useRegex {
			re, err := regexp.Compile(trimmed)
			if err != nil {
				return nil, err
			}
			p.re = re
		}
		ig.patterns = append(ig.patterns, p)
	}
	return ig, nil
}

func (ig *Ignore) matches(p pattern, path string) bool {
	if p.re != nil {
		return p.re.MatchString(path)
	}
	if strings.Contains(p.raw, "/") {
		ok, _ := filepath.Match(p.raw, path)
		return ok
	}
	ok, _ := filepath.Match(p.raw, filepath.Base(path))
	return ok
}

// Filter returns pathSet minus every path matching any pattern.
func (ig *Ignore) Filter(pathSet []string) []string {
	if ig.patterns == nil {
		return append([]string(nil), pathSet...)
	}
	var out []string
	for _, path := range pathSet {
		excluded := false
		for _, p := range ig.patterns {
			if ig.matches(p, path) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, path)
		}
	}
	return out
}

// Include returns only the paths in pathSet matching some pattern. If the
// pattern file did not exist, Include returns pathSet unchanged.
func (ig *Ignore) Include(pathSet []string) []string {
	if ig.patterns == nil {
		return append([]string(nil), pathSet...)
	}
	var out []string
	for _, path := range pathSet {
		for _, p := range ig.patterns {
			if ig.matches(p, path) {
				out = append(out, path)
				break
			}
		}
	}
	return out
}
