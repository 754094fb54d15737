package cache

import (
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"sort"
	"sync"
)

// ChallengeCache is a read-mostly mirror of the challenges table. It exists
// for advisory lookups (publish guards, autocomplete); scoring decisions must
// re-read the store. Refreshed on a fixed interval and synchronously after
// every local mutation.
type ChallengeCache struct {
	mu         sync.RWMutex
	challenges map[uint]model.Challenge
	repo       *repository.ChallengeRepository
}

func NewChallengeCache(repo *repository.ChallengeRepository) *ChallengeCache {
	return &ChallengeCache{
		challenges: make(map[uint]model.Challenge),
		repo:       repo,
	}
}

// Refresh replaces the whole mirror from the store.
func (c *ChallengeCache) Refresh() error {
	challenges, err := c.repo.All()
	if err != nil {
		return err
	}

	next := make(map[uint]model.Challenge, len(challenges))
	for _, ch := range challenges {
		next[ch.ID] = ch
	}

	c.mu.Lock()
	c.challenges = next
	c.mu.Unlock()
	return nil
}

func (c *ChallengeCache) Set(challenge model.Challenge) {
	c.mu.Lock()
	c.challenges[challenge.ID] = challenge
	c.mu.Unlock()
}

func (c *ChallengeCache) Invalidate(id uint) {
	c.mu.Lock()
	delete(c.challenges, id)
	c.mu.Unlock()
}

func (c *ChallengeCache) Get(id uint) (model.Challenge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.challenges[id]
	return ch, ok
}

// Find returns the first challenge matching the predicate.
func (c *ChallengeCache) Find(pred func(model.Challenge) bool) (model.Challenge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.challenges {
		if pred(ch) {
			return ch, true
		}
	}
	return model.Challenge{}, false
}

// All returns a snapshot ordered by most recently edited.
func (c *ChallengeCache) All() []model.Challenge {
	c.mu.RLock()
	out := make([]model.Challenge, 0, len(c.challenges))
	for _, ch := range c.challenges {
		out = append(out, ch)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].EditedAt.After(out[j].EditedAt)
	})
	return out
}
