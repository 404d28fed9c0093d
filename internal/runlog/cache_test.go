package runlog

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetReusesSameLog(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, nil)

	l1, err := c.Get("widget")
	require.NoError(t, err)
	l2, err := c.Get("widget")
	require.NoError(t, err)

	assert.Same(t, l1, l2)
}

func TestCacheCloseAllEvicts(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, nil)

	l, err := c.Get("widget")
	require.NoError(t, err)
	io.WriteString(l.Stdout(), "hello\n")

	require.NoError(t, c.CloseAll())

	l2, err := c.Get("widget")
	require.NoError(t, err)
	assert.NotSame(t, l, l2)
}

func TestCacheUsesMailerFactoryPerRepository(t *testing.T) {
	dir := t.TempDir()
	built := map[string]bool{}
	c := NewCache(dir, func(repository string) MailSink {
		built[repository] = true
		return nil
	})

	_, err := c.Get("widget")
	require.NoError(t, err)
	_, err = c.Get("gadget")
	require.NoError(t, err)

	assert.True(t, built["widget"])
	assert.True(t, built["gadget"])
}
