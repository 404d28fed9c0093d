package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetReusesSameMailer(t *testing.T) {
	var built int
	c := NewCache(func(repository string) *Mailer {
		built++
		return New(repository, nil, "", "")
	})

	m1 := c.Get("widget")
	m2 := c.Get("widget")

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, built)
}

func TestCacheSendAllEvictsEntries(t *testing.T) {
	c := NewCache(func(repository string) *Mailer {
		return New(repository, nil, "", "")
	})

	c.Get("widget")
	c.Get("gadget")

	var seen []string
	err := c.SendAll(
		func(repository string) string { seen = append(seen, repository); return "out" },
		func(repository string) string { return "err" },
	)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widget", "gadget"}, seen)

	// a second SendAll finds nothing left to send
	var secondPassCalled bool
	err = c.SendAll(
		func(repository string) string { secondPassCalled = true; return "" },
		nil,
	)
	require.NoError(t, err)
	assert.False(t, secondPassCalled)
}
