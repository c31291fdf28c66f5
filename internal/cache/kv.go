package cache

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache miss")

// KV is a string key-value cache with per-key TTL. A zero TTL never expires.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NopKV caches nothing; every Get misses.
type NopKV struct{}

func (NopKV) Get(context.Context, string) (string, error) { return "", ErrMiss }

func (NopKV) Set(context.Context, string, string, time.Duration) error { return nil }

func (NopKV) Delete(context.Context, string) error { return nil }
