package runlog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	attachments []string
	outputs     []string
}

func (f *fakeMailer) AddAttachment(text, desc string) {
	f.attachments = append(f.attachments, desc)
}

func (f *fakeMailer) AddOutput(command, stdout, stderr string) {
	f.outputs = append(f.outputs, command)
}

func TestMarkStartStopCapturesSegment(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "widget", nil)
	require.NoError(t, err)

	io.WriteString(l.Stdout(), "before\n")
	io.WriteString(l.Stderr(), "before-err\n")

	l.MarkStart()
	io.WriteString(l.Stdout(), "segment-out\n")
	io.WriteString(l.Stderr(), "segment-err\n")
	l.MarkStop()

	io.WriteString(l.Stdout(), "after\n")

	stdout, stderr, ok := l.LastOutput()
	require.True(t, ok)
	assert.Equal(t, "segment-out\n", stdout)
	assert.Equal(t, "segment-err\n", stderr)
}

func TestLastOutputFalseBeforeAnySegment(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "widget", nil)
	require.NoError(t, err)

	_, _, ok := l.LastOutput()
	assert.False(t, ok)
}

func TestAllOutputAndAllErrors(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "widget", nil)
	require.NoError(t, err)

	io.WriteString(l.Stdout(), "one\n")
	io.WriteString(l.Stdout(), "two\n")
	io.WriteString(l.Stderr(), "oops\n")

	assert.Equal(t, "one\ntwo\n", l.AllOutput())
	assert.Equal(t, "oops\n", l.AllErrors())
}

func TestWriteErrorBypassesBracket(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "widget", nil)
	require.NoError(t, err)

	l.WriteError("caught: boom\n")
	assert.Equal(t, "caught: boom\n", l.AllErrors())
}

func TestMailLastOutputAttachesSegment(t *testing.T) {
	dir := t.TempDir()
	m := &fakeMailer{}
	l, err := Open(dir, "widget", m)
	require.NoError(t, err)

	l.MarkStart()
	io.WriteString(l.Stdout(), "out\n")
	io.WriteString(l.Stderr(), "err\n")
	l.MarkStop()

	l.MailLastOutput("cvs update")
	require.Len(t, m.outputs, 1)
	assert.Equal(t, "cvs update", m.outputs[0])
}

func TestCloseCompressesNonEmptyStreamsAndAttachesStderr(t *testing.T) {
	dir := t.TempDir()
	m := &fakeMailer{}
	l, err := Open(dir, "widget", m)
	require.NoError(t, err)

	stdoutPath := l.stdoutPath
	stderrPath := l.stderrPath

	io.WriteString(l.Stdout(), "output\n")
	io.WriteString(l.Stderr(), "trouble\n")

	require.NoError(t, l.Close())

	assert.NoFileExists(t, stdoutPath)
	assert.NoFileExists(t, stderrPath)
	assert.FileExists(t, stdoutPath+".gz")
	assert.FileExists(t, stderrPath+".gz")

	assert.Contains(t, m.attachments, "errors for widget")

	gz, err := os.Open(stdoutPath + ".gz")
	require.NoError(t, err)
	defer gz.Close()
	r, err := gzip.NewReader(gz)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "output\n", string(data))
}

func TestCloseLeavesEmptyStreamsUncompressed(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "widget", nil)
	require.NoError(t, err)

	stdoutPath := l.stdoutPath
	stderrPath := l.stderrPath

	require.NoError(t, l.Close())

	assert.FileExists(t, stdoutPath)
	assert.FileExists(t, stderrPath)
	assert.NoFileExists(t, stdoutPath+".gz")
}

func TestOpenCreatesRepositoryDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, "projects/widget", nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "projects/widget"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
