// Package cache implements the shared types.Cache contract as an in-process
// LRU store: cached values such as thumbnail bytes share one bounded map,
// while generation locks and rate-limit counters are kept in maps of their
// own outside the LRU.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/shelfcloud/core/pkg/types"
)

var _ types.Cache = (*MemoryCache)(nil)

// Config configures a MemoryCache.
type Config struct {
	MaxSize         int64         `yaml:"max_size"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// NewDefaultConfig returns sane defaults: 512MiB / 100k entries.
func NewDefaultConfig() *Config {
	return &Config{
		MaxSize:         512 * 1024 * 1024,
		MaxEntries:      100_000,
		CleanupInterval: time.Minute,
	}
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// MemoryCache is a thread-safe, size-bounded LRU implementation of
// types.Cache, with a separate namespace for named locks and rate limit
// counters so they don't compete with cached payloads for eviction.
type MemoryCache struct {
	mu        sync.Mutex
	cfg       *Config
	items     map[string]*entry
	evictList *list.List
	size      int64

	locks   map[string]*lockState
	limiter map[string]*rateWindow

	stopCleanup chan struct{}
}

type lockState struct {
	held      bool
	expiresAt time.Time
	waiters   []chan struct{}
}

type rateWindow struct {
	windowStart time.Time
	count       int
}

// New creates a MemoryCache. A nil config uses NewDefaultConfig.
func New(cfg *Config) *MemoryCache {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	c := &MemoryCache{
		cfg:         cfg,
		items:       make(map[string]*entry),
		evictList:   list.New(),
		locks:       make(map[string]*lockState),
		limiter:     make(map[string]*rateWindow),
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Close stops the background cleanup goroutine.
func (c *MemoryCache) Close() { close(c.stopCleanup) }

func (c *MemoryCache) cleanupLoop() {
	interval := c.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCleanup:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, e := range c.items {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					c.removeLocked(k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get returns the value for key, reporting false if it is absent or
// expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeLocked(key)
		return nil, false, nil
	}
	c.evictList.MoveToFront(e.element)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// GetMany returns the subset of keys present and unexpired.
func (c *MemoryCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			result[k] = v
		}
	}
	return result, nil
}

// Set stores value under key with an optional ttl (zero means no expiry).
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
	return nil
}

// SetNX stores value under key only if absent or expired.
func (c *MemoryCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt) {
			return false, nil
		}
		c.removeLocked(key)
	}
	c.setLocked(key, value, ttl)
	return true, nil
}

func (c *MemoryCache) setLocked(key string, value []byte, ttl time.Duration) {
	cp := make([]byte, len(value))
	copy(cp, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		c.size -= int64(len(e.value))
		e.value = cp
		e.expiresAt = expiresAt
		c.size += int64(len(cp))
		c.evictList.MoveToFront(e.element)
		c.evictIfNeeded()
		return
	}

	e := &entry{key: key, value: cp, expiresAt: expiresAt}
	e.element = c.evictList.PushFront(e)
	c.items[key] = e
	c.size += int64(len(cp))
	c.evictIfNeeded()
}

func (c *MemoryCache) removeLocked(key string) {
	e, ok := c.items[key]
	if !ok {
		return
	}
	c.evictList.Remove(e.element)
	delete(c.items, key)
	c.size -= int64(len(e.value))
}

func (c *MemoryCache) evictIfNeeded() {
	for (c.cfg.MaxSize > 0 && c.size > c.cfg.MaxSize) ||
		(c.cfg.MaxEntries > 0 && len(c.items) > c.cfg.MaxEntries) {
		back := c.evictList.Back()
		if back == nil {
			return
		}
		c.removeLocked(back.Value.(*entry).key)
	}
}

// Lock acquires a named lock that auto-expires after expire. If wait is
// false and the lock is already held, it returns immediately with
// ok=false. If wait is true, it blocks (bounded by ctx) polling until the
// lock frees or the context is done.
func (c *MemoryCache) Lock(ctx context.Context, key string, expire time.Duration, wait bool) (func(), bool, error) {
	for {
		c.mu.Lock()
		ls, ok := c.locks[key]
		now := time.Now()
		if !ok || !ls.held || now.After(ls.expiresAt) {
			c.locks[key] = &lockState{held: true, expiresAt: now.Add(expire)}
			c.mu.Unlock()
			release := func() {
				c.mu.Lock()
				if cur, ok := c.locks[key]; ok {
					cur.held = false
				}
				c.mu.Unlock()
			}
			return release, true, nil
		}
		c.mu.Unlock()

		if !wait {
			return func() {}, false, nil
		}

		select {
		case <-ctx.Done():
			return func() {}, false, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// RateLimit reports whether one more event is allowed under limit events
// per period for key using a fixed-window counter, bumping the counter if
// allowed.
func (c *MemoryCache) RateLimit(ctx context.Context, key string, limit int, period time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	w, ok := c.limiter[key]
	if !ok || now.Sub(w.windowStart) >= period {
		c.limiter[key] = &rateWindow{windowStart: now, count: 1}
		return true, nil
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}
