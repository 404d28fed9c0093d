// Package ctx is the explicit per-application-context object spec.md §9
// calls for in place of the Python original's attribute-multiplexing
// Context (original_source/gitcvs/context.py's __getattr__ fallback):
// Context here is a concrete struct holding Config, a RunLog cache, and
// a Mailer cache, with no dynamic dispatch.
package ctx

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sas/bigitr/internal/central"
	"github.com/sas/bigitr/internal/config"
	"github.com/sas/bigitr/internal/dist"
	"github.com/sas/bigitr/internal/mailer"
	"github.com/sas/bigitr/internal/runlog"
	"github.com/sas/bigitr/internal/runner"
)

// Context binds one AppConfig/RepositoryConfig pair to its run-log and
// mailer caches and can construct drivers for any repository it names.
type Context struct {
	App        *config.AppConfig
	Repo       *config.RepositoryConfig
	Runner     *runner.Runner
	Logs       *runlog.Cache
	Mails      *mailer.Cache
	AdminCC    []string // appended to every repository's recipient list
}

// New wires a Context from already-loaded configuration.
func New(app *config.AppConfig, repo *config.RepositoryConfig, log *logrus.Logger) (*Context, error) {
	logDir, err := app.LogDir()
	if err != nil {
		return nil, err
	}

	c := &Context{App: app, Repo: repo, Runner: runner.New(log)}
	c.Mails = mailer.NewCache(func(repository string) *mailer.Mailer {
		recipients := append(append([]string(nil), repo.Email(repository)...), c.AdminCC...)
		return mailer.New(repo.RepositoryName(repository), recipients, app.MailFrom(), app.SmartHost())
	})
	c.Logs = runlog.NewCache(logDir, func(repository string) runlog.MailSink {
		return c.Mails.Get(repository)
	})
	return c, nil
}

// RepositoryName is the basename used for logging/clone-directory naming.
func (c *Context) RepositoryName(repository string) string {
	return c.Repo.RepositoryName(repository)
}

// DistDir is where this repository's DIST clone lives on disk.
func (c *Context) DistDir(repository string) (string, error) {
	gitDir, err := c.App.GitDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, c.RepositoryName(repository)), nil
}

// DistDriver returns a dist.Driver rooted at this repository's clone
// directory, backed by this repository's run log.
func (c *Context) DistDriver(repository string) (*dist.Driver, error) {
	dir, err := c.DistDir(repository)
	if err != nil {
		return nil, err
	}
	l, err := c.Logs.Get(repository)
	if err != nil {
		return nil, err
	}
	return dist.New(c.Runner, l, dir), nil
}

// CentralCheckoutDir mirrors context.py's two distinct directory
// functions. export=true is getCVSBranchCheckoutDir's shape:
// <cvsdir>/<repoName>/<branch>/<basename(cvspath)>, a real branch
// checkout used by the Exporter. export=false is getCVSExportDir's
// shape: <importCvsdir>/<repoName>/<basename(cvspath)>, the flat
// import-side export snapshot with no branch segment, since only one
// snapshot per branch pair is ever live at a time.
func (c *Context) CentralCheckoutDir(repository, branch string, export bool) (string, error) {
	cvsPath, err := c.Repo.CVSPath(repository)
	if err != nil {
		return "", err
	}
	repoName := c.RepositoryName(repository)
	baseName := filepath.Base(cvsPath)

	if export {
		base, err := c.App.CVSDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, repoName, branch, baseName), nil
	}

	base, err := c.App.ImportCVSDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, repoName, baseName), nil
}

// CentralDriver returns a central.Driver for one repository branch,
// backed by this repository's run log. export selects between the
// export-side and import-side CENTRAL directory roots.
func (c *Context) CentralDriver(repository, branch string, export bool) (*central.Driver, error) {
	root, err := c.Repo.CVSRoot(repository)
	if err != nil {
		return nil, err
	}
	location, err := c.Repo.CVSPath(repository)
	if err != nil {
		return nil, err
	}
	dir, err := c.CentralCheckoutDir(repository, branch, export)
	if err != nil {
		return nil, err
	}
	l, err := c.Logs.Get(repository)
	if err != nil {
		return nil, err
	}
	return central.New(c.Runner, l, root, location, dir, branch), nil
}
