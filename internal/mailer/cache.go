package mailer

import (
	cmap "github.com/orcaman/concurrent-map"
)

// Factory builds the Mailer for a repository on first access.
type Factory func(repository string) *Mailer

// Cache lazily creates and caches one Mailer per repository, evicting the
// entry once it has been sent (or found to have nothing to send).
type Cache struct {
	build Factory
	mails cmap.ConcurrentMap
}

// NewCache returns a Cache that builds new Mailers with build.
func NewCache(build Factory) *Cache {
	return &Cache{build: build, mails: cmap.New()}
}

// Get returns the Mailer for repository, creating it on first access.
func (c *Cache) Get(repository string) *Mailer {
	if existing, ok := c.mails.Get(repository); ok {
		return existing.(*Mailer)
	}
	m := c.build(repository)
	if !c.mails.SetIfAbsent(repository, m) {
		existing, _ := c.mails.Get(repository)
		return existing.(*Mailer)
	}
	return m
}

// SendAll sends (and evicts) every cached Mailer, passing allOut/allErr as
// the first two attachments on each. Returns the first error encountered.
func (c *Cache) SendAll(allOut, allErr func(repository string) string) error {
	var first error
	for item := range c.mails.IterBuffered() {
		m := item.Val.(*Mailer)
		var out, errText string
		if allOut != nil {
			out = allOut(item.Key)
		}
		if allErr != nil {
			errText = allErr(item.Key)
		}
		if err := m.Send(out, errText); err != nil && first == nil {
			first = err
		}
		c.mails.Remove(item.Key)
	}
	return first
}
