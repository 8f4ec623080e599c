// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cache provides the short-lived byte cache used for product
// listings, with an in-process backend and a Redis backend.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores opaque values with a time to live.
type Cache interface {
	// Get returns the value and true when key is present and not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

type entry struct {
	value    []byte
	expireAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	m.now = now
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expireAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expireAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	return nil
}

// New builds the backend named by kind ("memory" or "redis").
func New(kind, redisAddr string) (Cache, error) {
	switch kind {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		if redisAddr == "" {
			return nil, fmt.Errorf("redis cache requires an address")
		}
		return NewRedisCache(redisAddr), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}
