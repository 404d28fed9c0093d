// Package config implements the three layered INI configuration classes
// described in spec.md §4.5/§6: application config, repository config,
// and daemon config. All three share a GLOBAL-section-fallback lookup,
// ${VAR} environment interpolation, and absolute-path validation.
package config

import (
	"os"
	"sort"
	"strings"

	ini "gopkg.in/ini.v1"

	"github.com/sas/bigitr/internal/bigerr"
)

// Global is the reserved section name that every other section falls
// back to when a key is missing.
const Global = "GLOBAL"

// store wraps an *ini.File with env interpolation and absolute-path
// enforcement, shared by AppConfig, RepositoryConfig, and DaemonConfig.
type store struct {
	file *ini.File
}

func load(path string) (*store, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return nil, &bigerr.ConfigError{Reason: "loading " + path + ": " + err.Error()}
	}
	return &store{file: f}, nil
}

// interpolate performs ${VAR} substitution against the process
// environment, the way original_source/gitcvs/config.py's
// string.Template(v).substitute(os.environ) does.
func interpolate(v string) string {
	return os.Expand(v, os.Getenv)
}

func (s *store) get(section, key string) (string, bool) {
	sec, err := s.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	return interpolate(sec.Key(key).String()), true
}

// getDefault tries section, then Global, returning ("", false) if
// neither has the key.
func (s *store) getDefault(section, key string) (string, bool) {
	if v, ok := s.get(section, key); ok {
		return v, true
	}
	return s.get(Global, key)
}

func (s *store) sections() []string {
	var out []string
	for _, name := range s.file.SectionStrings() {
		if name == ini.DefaultSection || name == Global {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// requireAbsolutePaths fails configuration load if any key ending in
// "dir", or any key named in extra, does not resolve to a path beginning
// with "/".
func (s *store) requireAbsolutePaths(extra ...string) error {
	extraSet := make(map[string]bool, len(extra))
	for _, k := range extra {
		extraSet[k] = true
	}
	for _, sec := range s.file.Sections() {
		for _, key := range sec.Keys() {
			name := key.Name()
			if !strings.HasSuffix(name, "dir") && !extraSet[name] {
				continue
			}
			value := interpolate(key.String())
			if value == "" {
				continue
			}
			if !strings.HasPrefix(value, "/") {
				return &bigerr.ConfigError{
					Section: sec.Name(),
					Key:     name,
					Reason:  "value must resolve to an absolute path starting with /, got " + value,
				}
			}
		}
	}
	return nil
}

// keysWithPrefix returns the sorted list of key names in section that
// begin with prefix, per spec.md §9's resolution that cvs.*/git.*/merge.*
// enumeration must be sorted ascending rather than insertion-ordered.
func (s *store) keysWithPrefix(section, prefix string) []string {
	sec, err := s.file.GetSection(section)
	if err != nil {
		return nil
	}
	var out []string
	for _, key := range sec.Keys() {
		if strings.HasPrefix(key.Name(), prefix) {
			out = append(out, key.Name())
		}
	}
	sort.Strings(out)
	return out
}
