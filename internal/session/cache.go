// Package session binds submissions to assistant sessions: it creates them
// at most once per submission, reuses them within a TTL, and reclaims them
// when they go idle.
package session

import (
	"sync"
	"time"
)

// Entry is the process-local view of a submission's session.
type Entry struct {
	SessionID string
	LastUsed  time.Time
	Active    bool
}

// Cache maps submission IDs to their last known session. It is an
// observation aid only; the store decides whether a session is reused.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

func (c *Cache) Get(submissionID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[submissionID]
	return e, ok
}

func (c *Cache) Put(submissionID string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[submissionID] = e
}

// Touch refreshes LastUsed of an existing entry. It reports whether the
// entry was present.
func (c *Cache) Touch(submissionID string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[submissionID]
	if !ok {
		return false
	}
	e.LastUsed = at
	c.entries[submissionID] = e
	return true
}

// Deactivate marks an entry as no longer usable without dropping it.
func (c *Cache) Deactivate(submissionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[submissionID]; ok {
		e.Active = false
		c.entries[submissionID] = e
	}
}

func (c *Cache) Remove(submissionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, submissionID)
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
