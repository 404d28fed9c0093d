package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimespec(t *testing.T) {
	cases := map[string]time.Duration{
		"90s":   90 * time.Second,
		"1h30m": time.Hour + 30*time.Minute,
		"1d":    24 * time.Hour,
		"1D2H":  26 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseTimespec(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseTimespecRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "10x", "10s trailing"} {
		_, err := parseTimespec(in)
		assert.Error(t, err, in)
	}
}

func TestDaemonConfigContexts(t *testing.T) {
	dir := t.TempDir()
	appConfigPath := filepath.Join(dir, "app.ini")
	require.NoError(t, os.WriteFile(appConfigPath, []byte("[global]\n"), 0o644))
	repoGlob := filepath.Join(dir, "repos", "*.ini")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "repos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repos", "a.ini"), []byte("[GLOBAL]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repos", "b.ini"), []byte("[GLOBAL]\n"), 0o644))

	path := writeConfig(t, `
[GLOBAL]
smarthost = mail.example.com

[prod]
appconfig = `+appConfigPath+`
repoconfig = `+repoGlob+`
pollfrequency = 5m
syncfrequency = 1h
email = oncall@example.com
mailall = true
`)
	dcfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"prod"}, dcfg.ApplicationContexts())

	gotAppPath, err := dcfg.AppConfigPath("prod")
	require.NoError(t, err)
	assert.Equal(t, appConfigPath, gotAppPath)

	repoPaths, err := dcfg.RepoConfigPaths("prod")
	require.NoError(t, err)
	assert.Len(t, repoPaths, 2)

	poll, err := dcfg.PollFrequency("prod")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, poll)

	sync, err := dcfg.SyncFrequency("prod")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, sync)

	assert.Equal(t, []string{"oncall@example.com"}, dcfg.Email("prod"))
	assert.True(t, dcfg.MailAll("prod"))
	assert.Equal(t, "mail.example.com", dcfg.SmartHost("prod"))
	assert.False(t, dcfg.Parallel("prod"))
}

func TestDaemonConfigMissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
[prod]
appconfig = /etc/bigitr/app.ini
`)
	dcfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)

	_, err = dcfg.RepoConfigPaths("prod")
	require.Error(t, err)
}
