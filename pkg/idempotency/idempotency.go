package idempotency

import (
	"net/http"
	"strings"
	"sync"
)

const Header = "Idempotency-Key"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// ReplayCache maps idempotency keys to the entity id created under them,
// so a retried create returns the original entity instead of a conflict.
type ReplayCache struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewReplayCache() *ReplayCache {
	return &ReplayCache{keys: make(map[string]string)}
}

func (c *ReplayCache) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.keys[key]
	return id, ok
}

func (c *ReplayCache) Store(key, id string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = id
}
