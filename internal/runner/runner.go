// Package runner spawns external commands and tees their output into a
// repository's run log, bracketing each invocation with START/COMPLETE
// timestamp lines and byte-offset markers so the segment can be recovered
// later for a failure email.
package runner

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/sas/bigitr/internal/bigerr"
)

// Log is the narrow view of a run log that the runner writes to and marks.
type Log interface {
	Stdout() io.Writer
	Stderr() io.Writer
	MarkStart()
	MarkStop()
	LastError() string
}

// Option configures a single Run call.
type Option func(*options)

type options struct {
	errorFatal    bool
	captureStdout bool
	dir           string
	env           map[string]string
}

// WithErrorFatal controls whether a non-zero exit becomes an
// *bigerr.ExitCodeError. Defaults to true.
func WithErrorFatal(fatal bool) Option {
	return func(o *options) { o.errorFatal = fatal }
}

// WithCaptureStdout pipes stdout back to the caller as a byte slice instead
// of only teeing it to the log.
func WithCaptureStdout(capture bool) Option {
	return func(o *options) { o.captureStdout = capture }
}

// WithDir sets the subprocess's working directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithEnv adds entries to the subprocess's environment, on top of the
// calling process's own environment.
func WithEnv(env map[string]string) Option {
	return func(o *options) { o.env = env }
}

// Runner spawns subprocesses on behalf of the DIST and CENTRAL drivers.
type Runner struct {
	// Sink receives the final chunk of stderr for any fatal failure, for
	// process-wide diagnostics independent of the per-repository run log.
	Sink *logrus.Logger
}

// New returns a Runner that reports fatal failures to logger.
func New(logger *logrus.Logger) *Runner {
	return &Runner{Sink: logger}
}

// Run spawns argv, tees its output into log, and returns the exit code.
// When opts requests stdout capture, the captured bytes are also returned.
func (r *Runner) Run(log Log, argv []string, opts ...Option) (int, []byte, error) {
	o := options{errorFatal: true}
	for _, opt := range opts {
		opt(&o)
	}

	joined := shellquote.Join(argv...)
	start := Timestamp(nowFunc())
	startLine := fmt.Sprintf("%s START: %s\n", start, joined)
	io.WriteString(log.Stdout(), startLine)
	io.WriteString(log.Stderr(), startLine)
	log.MarkStart()

	cmd := exec.Command(argv[0], argv[1:]...)
	if o.dir != "" {
		cmd.Dir = o.dir
	}
	if len(o.env) > 0 {
		env := os.Environ()
		for k, v := range o.env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	cmd.Stderr = log.Stderr()

	var captured bytes.Buffer
	if o.captureStdout {
		cmd.Stdout = &captured
	} else {
		cmd.Stdout = log.Stdout()
	}

	runErr := cmd.Run()
	retcode := exitCode(runErr)

	if o.captureStdout {
		log.Stdout().Write(captured.Bytes())
	}

	stop := Timestamp(nowFunc())
	stopLine := fmt.Sprintf("%s COMPLETE with return code: %d\n", stop, retcode)
	io.WriteString(log.Stdout(), stopLine)
	io.WriteString(log.Stderr(), stopLine)
	log.MarkStop()

	if retcode != 0 && o.errorFatal {
		if r.Sink != nil {
			r.Sink.WithField("argv", joined).Error(log.LastError())
		}
		return retcode, captured.Bytes(), &bigerr.ExitCodeError{Argv: argv, Retcode: retcode}
	}

	return retcode, captured.Bytes(), nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
