package cache

import (
	"ctf_backend/internal/repository"
	"sync"
)

// BlacklistCache mirrors the set of banned user ids. Consulted before any
// scoring operation; the interval refresh is a fallback for changes made
// outside this process.
type BlacklistCache struct {
	mu   sync.RWMutex
	ids  map[string]struct{}
	repo *repository.UserRepository
}

func NewBlacklistCache(repo *repository.UserRepository) *BlacklistCache {
	return &BlacklistCache{
		ids:  make(map[string]struct{}),
		repo: repo,
	}
}

func (c *BlacklistCache) Refresh() error {
	ids, err := c.repo.ListBlacklistedIDs()
	if err != nil {
		return err
	}

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	c.mu.Lock()
	c.ids = next
	c.mu.Unlock()
	return nil
}

func (c *BlacklistCache) Add(id string) {
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
}

func (c *BlacklistCache) Remove(id string) {
	c.mu.Lock()
	delete(c.ids, id)
	c.mu.Unlock()
}

func (c *BlacklistCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}
