package runlog

import (
	cmap "github.com/orcaman/concurrent-map"
)

// Cache lazily creates and caches one Log per repository for the
// lifetime of a run; CloseAll closes each Log and then evicts its entry.
// It is built on a concurrent map (rather than a plain
// map+mutex) so a future repository-level parallel scheduler (the
// "parallel" configuration knob) can share this cache across goroutines
// without the cache itself needing to change.
type Cache struct {
	logDir string
	mailer func(repository string) MailSink
	logs   cmap.ConcurrentMap
}

// NewCache creates a Cache that opens logs under logDir. mailerFor
// resolves the MailSink a given repository's Log should report errors to;
// it is typically the repository's entry in a mailer.Cache.
func NewCache(logDir string, mailerFor func(repository string) MailSink) *Cache {
	return &Cache{
		logDir: logDir,
		mailer: mailerFor,
		logs:   cmap.New(),
	}
}

// Get returns the Log for repository, creating it on first access.
func (c *Cache) Get(repository string) (*Log, error) {
	if existing, ok := c.logs.Get(repository); ok {
		return existing.(*Log), nil
	}
	var sink MailSink
	if c.mailer != nil {
		sink = c.mailer(repository)
	}
	log, err := Open(c.logDir, repository, sink)
	if err != nil {
		return nil, err
	}
	// Another goroutine may have raced us; keep whichever won.
	if !c.logs.SetIfAbsent(repository, log) {
		log.Close()
		existing, _ := c.logs.Get(repository)
		return existing.(*Log), nil
	}
	return log, nil
}

// CloseAll closes and evicts every cached Log, returning the first error
// encountered (if any) after attempting every close.
func (c *Cache) CloseAll() error {
	var first error
	for item := range c.logs.IterBuffered() {
		log := item.Val.(*Log)
		if err := log.Close(); err != nil && first == nil {
			first = err
		}
		c.logs.Remove(item.Key)
	}
	return first
}
