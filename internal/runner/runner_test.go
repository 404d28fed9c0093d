package runner

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sas/bigitr/internal/bigerr"
)

type fakeLog struct {
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	starts     int
	stops      int
	lastErrVal string
}

func (f *fakeLog) Stdout() io.Writer  { return &f.stdout }
func (f *fakeLog) Stderr() io.Writer  { return &f.stderr }
func (f *fakeLog) MarkStart()         { f.starts++ }
func (f *fakeLog) MarkStop()          { f.stops++ }
func (f *fakeLog) LastError() string  { return f.lastErrVal }

func newFakeLog() *fakeLog { return &fakeLog{} }

func TestRunSuccessBracketsOutput(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2026, time.March, 5, 10, 30, 0, 0, time.UTC) }
	defer func() { nowFunc = time.Now }()

	log := newFakeLog()
	r := New(nil)
	code, captured, err := r.Run(log, []string{"echo", "hello"}, WithCaptureStdout(true))

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", string(captured))
	assert.Equal(t, 1, log.starts)
	assert.Equal(t, 1, log.stops)
	assert.Contains(t, log.stdout.String(), "START: echo hello")
	assert.Contains(t, log.stdout.String(), "COMPLETE with return code: 0")
}

func TestRunFailureIsFatalByDefault(t *testing.T) {
	log := newFakeLog()
	r := New(nil)
	code, _, err := r.Run(log, []string{"false"})

	require.Error(t, err)
	var exitErr *bigerr.ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, exitErr.Retcode)
}

func TestRunFailureNotFatalWhenDisabled(t *testing.T) {
	log := newFakeLog()
	r := New(nil)
	code, _, err := r.Run(log, []string{"false"}, WithErrorFatal(false))

	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestSplitHookTokenizes(t *testing.T) {
	words, err := SplitHook(`echo "hello world" --flag=1`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hello world", "--flag=1"}, words)
}

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp(time.Date(2026, time.March, 5, 9, 7, 3, 123400000, time.UTC))
	assert.Equal(t, "[Thu Mar 05 09:07:03.1234 UTC 2026]", ts)
}
