package config

import "github.com/sas/bigitr/internal/bigerr"

// ErrorAction is the configured reaction to a per-repository failure.
type ErrorAction int

const (
	Abort ErrorAction = iota
	Warn
	Continue
)

func parseErrorAction(v string) (ErrorAction, error) {
	switch v {
	case "abort", "":
		return Abort, nil
	case "warn":
		return Warn, nil
	case "continue":
		return Continue, nil
	default:
		return Abort, &bigerr.ConfigError{Key: "onerror", Reason: "must be abort|warn|continue, got " + v}
	}
}

// AppConfig is the application-wide configuration: sections global,
// import, export. Grounded on original_source/gitcvs/appconfig.py.
type AppConfig struct {
	s *store
}

// LoadAppConfig reads and validates the application config file at path.
func LoadAppConfig(path string) (*AppConfig, error) {
	s, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := s.requireAbsolutePaths(); err != nil {
		return nil, err
	}
	return &AppConfig{s: s}, nil
}

func (a *AppConfig) require(section, key string) (string, error) {
	v, ok := a.s.get(section, key)
	if !ok {
		return "", &bigerr.ConfigError{Section: section, Key: key, Reason: "not set"}
	}
	return v, nil
}

// GitDir is [global] gitdir: the root under which DIST clones live.
func (a *AppConfig) GitDir() (string, error) { return a.require("global", "gitdir") }

// LogDir is [global] logdir: the root of per-repository run logs.
func (a *AppConfig) LogDir() (string, error) { return a.require("global", "logdir") }

// CVSDir is [export] cvsdir: the root of per-branch CENTRAL checkouts.
func (a *AppConfig) CVSDir() (string, error) { return a.require("export", "cvsdir") }

// ImportCVSDir is [import] cvsdir: the root of CENTRAL export snapshots.
func (a *AppConfig) ImportCVSDir() (string, error) { return a.require("import", "cvsdir") }

// MailFrom is [global] mailfrom.
func (a *AppConfig) MailFrom() string {
	v, _ := a.s.get("global", "mailfrom")
	return v
}

// SmartHost is [global] smarthost.
func (a *AppConfig) SmartHost() string {
	v, _ := a.s.get("global", "smarthost")
	return v
}

// ImportError is [import] onerror, default abort.
func (a *AppConfig) ImportError() (ErrorAction, error) {
	v, ok := a.s.get("import", "onerror")
	if !ok {
		v = "abort"
	}
	return parseErrorAction(v)
}

// ExportError is [export] onerror, default abort.
func (a *AppConfig) ExportError() (ErrorAction, error) {
	v, ok := a.s.get("export", "onerror")
	if !ok {
		v = "abort"
	}
	return parseErrorAction(v)
}

// ExportPreImport is [export] preimport, default true.
func (a *AppConfig) ExportPreImport() bool {
	v, ok := a.s.get("export", "preimport")
	if !ok {
		return true
	}
	return v != "false" && v != "0"
}

// CompressLogs is [global] compresslogs, default true.
func (a *AppConfig) CompressLogs() bool {
	v, ok := a.s.get("global", "compresslogs")
	if !ok {
		return true
	}
	return v != "false" && v != "0"
}
