// Package cache memoizes generated command text per request shape.
package cache

import (
	"github.com/satishbabariya/dbkit/internal/debug"
	"github.com/satishbabariya/dbkit/query/request"
	"golang.org/x/sync/singleflight"
)

// Default is the process-wide command-text cache. Its size is bounded only
// by the number of distinct request shapes.
var Default = New(0)

// CommandTextCache maps request keys to SQL text. Concurrent misses for
// the same key share one build, and failed builds are not stored.
type CommandTextCache struct {
	entries *lru
	group   singleflight.Group
}

// New returns a cache holding at most maxSize texts; 0 means unbounded.
func New(maxSize int) *CommandTextCache {
	return &CommandTextCache{entries: newLRU(maxSize)}
}

// Key returns the cache key of req, "dialect:Kind:table:hash". dialect
// must name everything that changes the rendered text, as
// dialect.CacheName does.
func Key(dialect string, req request.Request) string {
	return dialect + ":" + req.Key()
}

// Get returns the cached text of req, calling build on a miss.
func (c *CommandTextCache) Get(dialect string, req request.Request, build func() (string, error)) (string, error) {
	key := Key(dialect, req)
	if text, ok := c.entries.get(key); ok {
		return text, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another caller may have stored it between the miss and Do.
		if text, ok := c.entries.peek(key); ok {
			return text, nil
		}
		text, err := build()
		if err != nil {
			return "", err
		}
		c.entries.set(key, text)
		debug.Debug("Command text cached", "key", key)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		debug.Debug("Command text build shared", "key", key)
	}
	return v.(string), nil
}

// Remove drops the text of req.
func (c *CommandTextCache) Remove(dialect string, req request.Request) {
	c.entries.remove(Key(dialect, req))
}

// InvalidatePattern removes every key matching pattern, where "*" matches
// one ":" separated part. "*:*:users:*" drops all statements on users.
func (c *CommandTextCache) InvalidatePattern(pattern string) int {
	return c.entries.removeMatching(pattern)
}

// Flush removes all entries and resets the statistics.
func (c *CommandTextCache) Flush() {
	c.entries.clear()
}

// Stats returns the cache statistics.
func (c *CommandTextCache) Stats() Stats {
	return c.entries.stats()
}
