package config

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sas/bigitr/internal/bigerr"
)

// DaemonConfig is the top-level daemon configuration: one or more
// [context] sections, each naming an app config file and a glob of
// repository config files to poll together. Grounded on
// original_source/bigitr/daemonconfig.py and bigitrdaemon.py.
type DaemonConfig struct {
	s *store
}

// LoadDaemonConfig reads the daemon configuration file at path.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	s, err := load(path)
	if err != nil {
		return nil, err
	}
	return &DaemonConfig{s: s}, nil
}

// ApplicationContexts returns every configured context section, sorted.
func (d *DaemonConfig) ApplicationContexts() []string {
	return d.s.sections()
}

func (d *DaemonConfig) require(section, key string) (string, error) {
	v, ok := d.s.getDefault(section, key)
	if !ok {
		return "", &bigerr.ConfigError{Section: section, Key: key, Reason: "not set"}
	}
	return v, nil
}

// AppConfigPath is [context] appconfig: the application config file for
// this context.
func (d *DaemonConfig) AppConfigPath(context string) (string, error) {
	return d.require(context, "appconfig")
}

// RepoConfigPaths is [context] repoconfig: a glob pattern (or
// comma-separated list of globs) of repository config files polled
// together under this context.
func (d *DaemonConfig) RepoConfigPaths(context string) ([]string, error) {
	v, err := d.require(context, "repoconfig")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		matches, err := filepath.Glob(part)
		if err != nil {
			return nil, &bigerr.ConfigError{Section: context, Key: "repoconfig", Reason: err.Error()}
		}
		out = append(out, matches...)
	}
	return out, nil
}

// Email is [context] email, falling back to GLOBAL, whitespace-separated.
func (d *DaemonConfig) Email(context string) []string {
	v, ok := d.s.getDefault(context, "email")
	if !ok || v == "" {
		return nil
	}
	return strings.Fields(v)
}

// MailFrom is [context] mailfrom / GLOBAL mailfrom.
func (d *DaemonConfig) MailFrom(context string) string {
	v, _ := d.s.getDefault(context, "mailfrom")
	return v
}

// MailAll reports whether this context's email recipients are added to
// every repository's own recipient list ([context] mailall, default false).
func (d *DaemonConfig) MailAll(context string) bool {
	v, ok := d.s.getDefault(context, "mailall")
	if !ok {
		return false
	}
	return v == "true" || v == "1"
}

// SmartHost is [context] smarthost / GLOBAL smarthost.
func (d *DaemonConfig) SmartHost(context string) string {
	v, _ := d.s.getDefault(context, "smarthost")
	return v
}

// Parallel reports whether repositories within this context may be
// synchronized concurrently ([context] parallel, default false). Reserved
// for future use per spec.md §9 — the synchronizer itself remains
// single-threaded per repository today.
func (d *DaemonConfig) Parallel(context string) bool {
	v, ok := d.s.getDefault(context, "parallel")
	if !ok {
		return false
	}
	return v == "true" || v == "1"
}

var timespecRe = regexp.MustCompile(`(?i)(\d+)([dhms])`)

// parseTimespec parses a [Nd][Nh][Nm][Ns] duration, e.g. "1h30m", "90s",
// "1d", case-insensitive, the way
// original_source/bigitr/daemonconfig.py's getPollFrequency parses its
// "nSuffix" strings.
func parseTimespec(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, &bigerr.ConfigError{Reason: "empty timespec"}
	}
	matches := timespecRe.FindAllStringSubmatch(v, -1)
	if matches == nil {
		return 0, &bigerr.ConfigError{Reason: "invalid timespec " + v}
	}
	consumed := 0
	var total time.Duration
	for _, m := range matches {
		consumed += len(m[0])
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, &bigerr.ConfigError{Reason: "invalid timespec " + v}
		}
		switch strings.ToLower(m[2]) {
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}
	if consumed != len(v) {
		return 0, &bigerr.ConfigError{Reason: "invalid timespec " + v}
	}
	return total, nil
}

// PollFrequency is [context] pollfrequency: how often this context wakes
// to check for new CENTRAL commits.
func (d *DaemonConfig) PollFrequency(context string) (time.Duration, error) {
	v, err := d.require(context, "pollfrequency")
	if err != nil {
		return 0, err
	}
	return parseTimespec(v)
}

// SyncFrequency is [context] syncfrequency: the minimum interval between
// full bidirectional syncs even absent new CENTRAL activity.
func (d *DaemonConfig) SyncFrequency(context string) (time.Duration, error) {
	v, err := d.require(context, "syncfrequency")
	if err != nil {
		return 0, err
	}
	return parseTimespec(v)
}
