package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cfnschema/cfnschema/internal/compiler/schema"
)

// Store is a byte store backing the result cache.
type Store interface {
	// Get retrieves a value, returning ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl uses the store's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources
	Close() error
}

// Config holds common configuration for stores
type Config struct {
	// TTL is the default time-to-live of entries; zero keeps them forever
	TTL time.Duration
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		Prefix: "cfnschema:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// Results caches encoded documents on top of a Store.
type Results struct {
	store Store
}

// NewResults wraps store.
func NewResults(store Store) *Results {
	return &Results{store: store}
}

// Load returns the cached output for key. ok is false on a miss.
func (r *Results) Load(ctx context.Context, key string) (enc *schema.Encoded, ok bool, err error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	// A corrupt entry is a miss; the next Save overwrites it.
	plain, err := schema.Decompress(data)
	if err != nil {
		return nil, false, nil
	}
	enc = &schema.Encoded{}
	if err := json.Unmarshal(plain, enc); err != nil {
		return nil, false, nil
	}
	return enc, true, nil
}

// Save stores enc under key, gzip-compressed.
func (r *Results) Save(ctx context.Context, key string, enc *schema.Encoded) error {
	if enc == nil {
		return fmt.Errorf("encoded output cannot be nil")
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	data, err = schema.Compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress cache entry: %w", err)
	}
	if err := r.store.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (r *Results) Close() error {
	return r.store.Close()
}
