// Command bigitrd runs bigitr's synchronization loop as a long-lived
// process, grounded on original_source/bigitr/bigitrdaemon.py's main and
// Daemon class.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sas/bigitr/internal/app"
	"github.com/sas/bigitr/internal/config"
	"github.com/sas/bigitr/internal/ctx"
	"github.com/sas/bigitr/internal/daemon"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func expandPath(name string) (string, error) {
	name = os.ExpandEnv(name)
	if name == "~" || (len(name) >= 2 && name[:2] == "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		name = filepath.Join(home, name[1:])
	}
	return filepath.Abs(name)
}

func buildDaemon(configPath, pidFile string, log *logrus.Logger) (*daemon.Daemon, error) {
	dcfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", configPath, err)
	}

	var units []daemon.Unit
	var pollFreq, syncFreq time.Duration // tracked as the minimum across contexts

	for _, appCtxName := range dcfg.ApplicationContexts() {
		appConfigPath, err := dcfg.AppConfigPath(appCtxName)
		if err != nil {
			return nil, err
		}
		appCfg, err := config.LoadAppConfig(appConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", appConfigPath, err)
		}

		poll, err := dcfg.PollFrequency(appCtxName)
		if err != nil {
			return nil, err
		}
		ctxSyncFreq, err := dcfg.SyncFrequency(appCtxName)
		if err != nil {
			return nil, err
		}
		if pollFreq == 0 || poll < pollFreq {
			pollFreq = poll
		}
		if syncFreq == 0 || ctxSyncFreq < syncFreq {
			syncFreq = ctxSyncFreq
		}

		mailAll := dcfg.MailAll(appCtxName)
		adminCC := dcfg.Email(appCtxName)

		repoConfigPaths, err := dcfg.RepoConfigPaths(appCtxName)
		if err != nil {
			return nil, err
		}
		for _, repoConfigPath := range repoConfigPaths {
			repoCfg, err := config.LoadRepositoryConfig(repoConfigPath)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", repoConfigPath, err)
			}
			c, err := ctx.New(appCfg, repoCfg, log)
			if err != nil {
				return nil, err
			}
			if mailAll {
				c.AdminCC = adminCC
			}
			runner := &app.Runner{Context: c, Log: log}

			for _, repository := range repoCfg.Repositories() {
				repository := repository
				units = append(units, daemon.Unit{
					Name: repoCfg.RepositoryName(repository),
					NewContent: func() (bool, error) {
						return runner.NewContent(repository)
					},
					Sync: func(poll bool) error {
						return runner.SynchronizeRepository(repository)
					},
					OnError: func(err error) {
						onerror, _ := appCfg.ExportError()
						runner.Report(repository, err, onerror)
					},
				})
			}
		}
	}

	return &daemon.Daemon{
		Log:           log,
		Units:         units,
		PollFrequency: pollFreq,
		SyncFrequency: syncFreq,
		PIDFile:       pidFile,
	}, nil
}

func main() {
	defaultConfig := envOr("BIGITR_DAEMON_CONFIG", "~/.bigitrd")
	defaultPIDFile := envOr("BIGITR_DAEMON_PIDFILE", "~/.bigitrd-pid")

	var configPath, pidFile string
	var noDaemon bool

	root := &cobra.Command{
		Use:           "bigitrd",
		Short:         "Daemon to synchronize CENTRAL and DIST repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, pidFile, noDaemon)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "daemon configuration file")
	root.Flags().StringVarP(&pidFile, "pid-file", "p", defaultPIDFile, "daemon pid file path")
	root.Flags().BoolVarP(&noDaemon, "no-daemon", "n", false, "accepted for compatibility; this process always runs in the foreground")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, pidFile string, noDaemon bool) error {
	configAbs, err := expandPath(configPath)
	if err != nil {
		return err
	}
	pidFileAbs, err := expandPath(pidFile)
	if err != nil {
		return err
	}

	log := logrus.New()
	d, err := buildDaemon(configAbs, pidFileAbs, log)
	if err != nil {
		return err
	}

	execPath, err := exec.LookPath(os.Args[0])
	if err != nil {
		execPath = os.Args[0]
	}
	d.ExecPath = execPath
	d.ExecArgs = []string{"--config", configAbs, "--pid-file", pidFileAbs}
	if noDaemon {
		d.ExecArgs = append(d.ExecArgs, "--no-daemon")
	}

	return d.Run()
}
