package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the default number of entries kept in memory.
const DefaultMemorySize = 64

// MemoryStore is a bounded in-process LRU store.
type MemoryStore struct {
	entries *lru.Cache[string, memoryItem]
	config  Config
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryStore creates an LRU store holding at most size entries.
func NewMemoryStore(size int, config Config) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &MemoryStore{entries: entries, config: config}, nil
}

// Get retrieves a value from the store
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullKey := m.config.Prefix + key
	item, ok := m.entries.Get(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.entries.Remove(fullKey)
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the store
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.TTL
	}

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}
	m.entries.Add(m.config.Prefix+key, item)
	return nil
}

// Delete removes a value from the store
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.entries.Remove(m.config.Prefix + key)
	return nil
}

// Len returns the number of entries
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

// Close purges the store
func (m *MemoryStore) Close() error {
	m.entries.Purge()
	return nil
}
