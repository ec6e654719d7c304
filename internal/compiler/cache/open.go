package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Backends lists the valid backend names.
var Backends = []string{BackendNone, BackendMemory, BackendBadger, BackendRedis}

// Options selects and configures a backend.
type Options struct {
	Backend string
	TTL     time.Duration

	// memory
	Size int
	// badger
	Path string
	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open creates the result cache for the configured backend. It returns
// nil, nil for the none backend.
func Open(ctx context.Context, opts Options) (*Results, error) {
	config := DefaultConfig()
	config.TTL = opts.TTL

	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		store, err = NewMemoryStore(opts.Size, config)
	case BackendBadger:
		store, err = NewBadgerStore(BadgerOptions{Path: opts.Path, Config: config})
	case BackendRedis:
		redisConfig := DefaultRedisConfig()
		if opts.RedisAddr != "" {
			redisConfig.Addr = opts.RedisAddr
		}
		redisConfig.Password = opts.RedisPassword
		redisConfig.DB = opts.RedisDB
		redisConfig.Config = config
		store, err = NewRedisStore(ctx, redisConfig)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", opts.Backend, err)
	}
	return NewResults(store), nil
}
