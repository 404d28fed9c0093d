// Command bigitr synchronizes a CENTRAL repository with its DIST mirror,
// grounded on original_source/bigitr/__init__.py's main and _Runner.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sas/bigitr/internal/app"
	"github.com/sas/bigitr/internal/config"
	"github.com/sas/bigitr/internal/ctx"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func expandPath(name string) (string, error) {
	name = os.ExpandEnv(name)
	if name == "~" || len(name) >= 2 && name[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		name = filepath.Join(home, name[1:])
	}
	return filepath.Abs(name)
}

var (
	appConfigPath string
	repoConfigPath string
)

func buildRunner() (*app.Runner, error) {
	appPath, err := expandPath(appConfigPath)
	if err != nil {
		return nil, err
	}
	repoPath, err := expandPath(repoConfigPath)
	if err != nil {
		return nil, err
	}

	appCfg, err := config.LoadAppConfig(appPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", appPath, err)
	}
	repoCfg, err := config.LoadRepositoryConfig(repoPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", repoPath, err)
	}

	log := logrus.New()
	c, err := ctx.New(appCfg, repoCfg, log)
	if err != nil {
		return nil, err
	}
	return &app.Runner{Context: c, Log: log}, nil
}

// runBatch runs op against every selector, isolating one repository's
// failure from the rest the way _Runner.process/errhandler.Errors do,
// and stops the remaining batch only when onerror is config.Abort.
func runBatch(r *app.Runner, selectors []app.RepoBranch, onerror config.ErrorAction, op func(repository, branch string) error) error {
	for _, sel := range selectors {
		if err := op(sel.Repository, sel.Branch); err != nil {
			if r.Report(sel.Repository, err, onerror) {
				return err
			}
		}
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bigitr",
		Short: "Synchronize a CENTRAL repository with its DIST mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&appConfigPath, "appconfig", "a",
		envOr("BIGITR_APP_CONFIG", "~/.bigitr"), "bigitr configuration file")
	root.PersistentFlags().StringVarP(&repoConfigPath, "config", "c",
		envOr("BIGITR_REPO_CONFIG", "~/.bigitr-repository"), "repository configuration file")

	root.AddCommand(
		newSyncCmd(),
		newImportCmd(),
		newExportCmd(),
		newMergeCmd(),
	)
	return root
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [repository[::branch] ...]",
		Short: "Import then export, bidirectionally synchronizing each repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner()
			if err != nil {
				return err
			}
			defer r.Close()
			selectors, err := app.ParseSelectors(r.Context.Repo, args)
			if err != nil {
				return err
			}
			onerror, err := r.Context.App.ExportError()
			if err != nil {
				return err
			}
			return runBatch(r, selectors, onerror, func(repository, branch string) error {
				return r.SynchronizeRepository(repository)
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [repository[::branch] ...]",
		Short: "Import CENTRAL branches into their mapped DIST branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner()
			if err != nil {
				return err
			}
			defer r.Close()
			selectors, err := app.ParseSelectors(r.Context.Repo, args)
			if err != nil {
				return err
			}
			onerror, err := r.Context.App.ImportError()
			if err != nil {
				return err
			}
			return runBatch(r, selectors, onerror, func(repository, branch string) error {
				return r.ImportRepository(repository, branch)
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [repository[::branch] ...]",
		Short: "Export DIST branches into their mapped CENTRAL branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner()
			if err != nil {
				return err
			}
			defer r.Close()
			selectors, err := app.ParseSelectors(r.Context.Repo, args)
			if err != nil {
				return err
			}
			onerror, err := r.Context.App.ExportError()
			if err != nil {
				return err
			}
			return runBatch(r, selectors, onerror, func(repository, branch string) error {
				return r.ExportRepository(repository, branch)
			})
		},
	}
}

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge [repository[::branch] ...]",
		Short: "Re-run the merge cascade from each branch's last imported state",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner()
			if err != nil {
				return err
			}
			defer r.Close()
			selectors, err := app.ParseSelectors(r.Context.Repo, args)
			if err != nil {
				return err
			}
			onerror, err := r.Context.App.ImportError()
			if err != nil {
				return err
			}
			return runBatch(r, selectors, onerror, func(repository, branch string) error {
				return r.MergeRepository(repository, branch)
			})
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
