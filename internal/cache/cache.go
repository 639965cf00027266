package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Store is a TTL key/value cache. Values are serialized strings so the same
// abstraction can back both process-local and Redis deployments. The store
// is an optimization only; the relational store stays authoritative.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store with lazy expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// RedisStore is a Store backed by a shared Redis instance, used for the
// generate debounce so identical requests across replicas still converge.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Loader combines a Store with single-flight loading so concurrent misses
// for the same key trigger exactly one upstream call.
type Loader struct {
	store Store
	group singleflight.Group
}

// NewLoader creates a Loader over the given store.
func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// GetOrLoad returns the cached value for key, or runs load once per key and
// caches the result for ttl. Load failures are not cached.
func (l *Loader) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (string, error) {
	if value, ok, err := l.store.Get(ctx, key); err == nil && ok {
		return value, nil
	}

	value, err, _ := l.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have populated it.
		if value, ok, err := l.store.Get(ctx, key); err == nil && ok {
			return value, nil
		}
		value, err := load(ctx)
		if err != nil {
			return "", err
		}
		if err := l.store.Set(ctx, key, value, ttl); err != nil {
			return value, nil
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate removes a key from the underlying store.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}
