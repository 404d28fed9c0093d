// Package runlog implements the per-repository run log: two append-only
// files (stdout, stderr) that every subprocess invocation for a repository
// is teed into, plus byte-offset markers so a single invocation's output
// can be recovered later for a failure email.
package runlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MailSink is the narrow view of a Mailer that a Log needs at Close time
// and when attaching a single command's captured output. Kept as an
// interface here (rather than importing the mailer package directly) so
// runlog and mailer stay decoupled; internal/ctx wires the concrete
// implementation in.
type MailSink interface {
	AddAttachment(text, desc string)
	AddOutput(command, stdout, stderr string)
}

type mark struct {
	stdout int64
	stderr int64
}

// Log is one repository's run log for the current invocation of bigitr.
type Log struct {
	mu sync.Mutex

	repository string
	dir        string
	stdoutPath string
	stderrPath string
	stdoutFile *os.File
	stderrFile *os.File

	start mark
	stop  mark
	valid bool // whether start/stop bracket a completed segment

	mailer MailSink
}

// Open creates the stdout/stderr file pair for repository under
// <logDir>/<repository>/<timestamp>-<uuid>.{log,err}, opened read+write.
func Open(logDir, repository string, mailer MailSink) (*Log, error) {
	repoDir := filepath.Join(logDir, repository)
	if err := os.MkdirAll(repoDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating run log directory %q: %w", repoDir, err)
	}
	base := fmt.Sprintf("%s-%s", time.Now().Format("20060102-15:04:05"), shortUUID())
	stdoutPath := filepath.Join(repoDir, base+".log")
	stderrPath := filepath.Join(repoDir, base+".err")

	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_RDWR, 0o700)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", stdoutPath, err)
	}
	stderrFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_RDWR, 0o700)
	if err != nil {
		stdoutFile.Close()
		return nil, fmt.Errorf("opening %q: %w", stderrPath, err)
	}

	return &Log{
		repository: repository,
		dir:        repoDir,
		stdoutPath: stdoutPath,
		stderrPath: stderrPath,
		stdoutFile: stdoutFile,
		stderrFile: stderrFile,
		mailer:     mailer,
	}, nil
}

func shortUUID() string {
	id := uuid.New().String()
	return id[:8]
}

// Stdout returns the writer every subprocess's stdout should be teed to.
func (l *Log) Stdout() io.Writer { return l.stdoutFile }

// Stderr returns the writer every subprocess's stderr should be teed to.
func (l *Log) Stderr() io.Writer { return l.stderrFile }

func tell(f *os.File) int64 {
	off, _ := f.Seek(0, io.SeekCurrent)
	return off
}

// MarkStart records the current byte offset of both streams as the start
// of a new segment.
func (l *Log) MarkStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = mark{stdout: tell(l.stdoutFile), stderr: tell(l.stderrFile)}
	l.valid = false
}

// MarkStop records the current byte offset of both streams as the end of
// the segment begun by the most recent MarkStart.
func (l *Log) MarkStop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop = mark{stdout: tell(l.stdoutFile), stderr: tell(l.stderrFile)}
	l.valid = true
}

func readRange(path string, start, stop int64) (string, error) {
	if stop < start {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, stop-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return "", err
	}
	return string(buf), nil
}

// LastOutput returns the (stdout, stderr) text captured between the most
// recent MarkStart/MarkStop pair. Returns ("", "", false) if no complete
// segment has been marked.
func (l *Log) LastOutput() (stdout, stderr string, ok bool) {
	l.mu.Lock()
	start, stop, valid := l.start, l.stop, l.valid
	l.mu.Unlock()
	if !valid {
		return "", "", false
	}
	out, err := readRange(l.stdoutPath, start.stdout, stop.stdout)
	if err != nil {
		return "", "", false
	}
	errOut, err := readRange(l.stderrPath, start.stderr, stop.stderr)
	if err != nil {
		return "", "", false
	}
	return out, errOut, true
}

// LastError returns the tail of stderr since the most recent MarkStart,
// even if MarkStop was never reached (the command is still in flight or
// failed mid-stream).
func (l *Log) LastError() string {
	l.mu.Lock()
	start := l.start.stderr
	l.mu.Unlock()
	stop := tell(l.stderrFile)
	out, err := readRange(l.stderrPath, start, stop)
	if err != nil {
		return ""
	}
	return out
}

// WriteError appends message directly to the stderr stream, bypassing the
// start/stop bracketing; used to record a caught exception's traceback.
func (l *Log) WriteError(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.stderrFile, message)
}

func readAll(f *os.File) string {
	size := tell(f)
	if size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return ""
	}
	return string(buf)
}

// AllOutput returns every byte of stdout captured so far this run.
func (l *Log) AllOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readAll(l.stdoutFile)
}

// AllErrors returns every byte of stderr captured so far this run.
func (l *Log) AllErrors() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readAll(l.stderrFile)
}

// MailLastOutput attaches the most recently captured segment pair to the
// repository's pending email under the given command name.
func (l *Log) MailLastOutput(commandName string) {
	stdout, stderr, ok := l.LastOutput()
	if !ok || l.mailer == nil {
		return
	}
	l.mailer.AddOutput(commandName, stdout, stderr)
}

func compress(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close finalizes the log: if stderr is non-empty, an error notice is
// attached to the mailer and stderr is compressed; if stdout is non-empty
// it is compressed too. Uncompressed originals are removed only after
// their compressed replacement has been written successfully.
func (l *Log) Close() error {
	l.mu.Lock()
	stdoutFile, stderrFile := l.stdoutFile, l.stderrFile
	l.mu.Unlock()

	stdoutInfo, err := stdoutFile.Stat()
	if err != nil {
		return err
	}
	stderrInfo, err := stderrFile.Stat()
	if err != nil {
		return err
	}
	stdoutFile.Close()
	stderrFile.Close()

	if stderrInfo.Size() > 0 {
		if l.mailer != nil {
			tail, rerr := os.ReadFile(l.stderrPath)
			if rerr == nil {
				l.mailer.AddAttachment(string(tail), "errors for "+l.repository)
			}
		}
		if err := compress(l.stderrPath); err != nil {
			return err
		}
		if err := os.Remove(l.stderrPath); err != nil {
			return err
		}
	}

	if stdoutInfo.Size() > 0 {
		if err := compress(l.stdoutPath); err != nil {
			return err
		}
		if err := os.Remove(l.stdoutPath); err != nil {
			return err
		}
	}

	return nil
}
