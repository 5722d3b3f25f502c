// Package cache is a small key-value port backing the status probe. Values
// are strings; adapters own serialization concerns.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss signals a cache miss in a typed way so callers can tell misses
// from transport errors.
var ErrMiss = errors.New("cache: miss")

// Cache is the minimal contract. Implementations must be concurrency-safe.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Noop always misses. Used when no Redis is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }

func (Noop) Set(ctx context.Context, key string, value string, ttl time.Duration) error { return nil }

func (Noop) Del(ctx context.Context, keys ...string) error { return nil }

func (Noop) Close() error { return nil }
