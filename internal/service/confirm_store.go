package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ConfirmStore backs the two-phase operations (hint charge, publish override,
// round reset). A token is issued with a deadline and may be consumed exactly
// once; an expired or reused token means the pending action was cancelled.
type ConfirmStore interface {
	Issue(ctx context.Context, kind, key string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, kind, key, token string) (bool, error)
}

func newConfirmToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// RedisConfirmStore keeps pending confirmations in redis so deadlines survive
// process restarts.
type RedisConfirmStore struct {
	Redis *redis.Client
}

func NewRedisConfirmStore(rdb *redis.Client) *RedisConfirmStore {
	return &RedisConfirmStore{Redis: rdb}
}

func confirmKey(kind, key string) string {
	return fmt.Sprintf("confirm:%s:%s", kind, key)
}

func (s *RedisConfirmStore) Issue(ctx context.Context, kind, key string, ttl time.Duration) (string, error) {
	token := newConfirmToken()
	if err := s.Redis.Set(ctx, confirmKey(kind, key), token, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisConfirmStore) Consume(ctx context.Context, kind, key, token string) (bool, error) {
	// GETDEL makes the consume single-use even under concurrent commits.
	stored, err := s.Redis.GetDel(ctx, confirmKey(kind, key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == token, nil
}

// MemoryConfirmStore is the fallback when redis is not configured, and the
// double used in tests.
type MemoryConfirmStore struct {
	mu      sync.Mutex
	pending map[string]memoryConfirm
}

type memoryConfirm struct {
	token    string
	deadline time.Time
}

func NewMemoryConfirmStore() *MemoryConfirmStore {
	return &MemoryConfirmStore{pending: make(map[string]memoryConfirm)}
}

func (s *MemoryConfirmStore) Issue(ctx context.Context, kind, key string, ttl time.Duration) (string, error) {
	token := newConfirmToken()
	s.mu.Lock()
	s.pending[confirmKey(kind, key)] = memoryConfirm{token: token, deadline: time.Now().Add(ttl)}
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryConfirmStore) Consume(ctx context.Context, kind, key, token string) (bool, error) {
	k := confirmKey(kind, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[k]
	if !ok {
		return false, nil
	}
	delete(s.pending, k)
	if time.Now().After(entry.deadline) {
		return false, nil
	}
	return entry.token == token, nil
}
