package permission

import (
	"sync"
	"time"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

// permCache caches permission records with a TTL. Entries are shared-read;
// invalidation is a plain delete, never an in-place mutation, so readers
// can't observe torn records.
type permCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	perms   *types.AgentPermissions
	expires time.Time
}

func newPermCache(ttl time.Duration) *permCache {
	return &permCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *permCache) get(agentID string) (*types.AgentPermissions, bool) {
	c.mu.RLock()
	e, ok := c.entries[agentID]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.perms, true
}

func (c *permCache) set(agentID string, p *types.AgentPermissions) {
	c.mu.Lock()
	c.entries[agentID] = cacheEntry{perms: p, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *permCache) invalidate(agentID string) {
	c.mu.Lock()
	delete(c.entries, agentID)
	c.mu.Unlock()
}

func (c *permCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}
