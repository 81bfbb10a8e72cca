package services

import (
	"context"
	"encoding/json"
	"sonata/types"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LookupTTL is how long a successful catalog lookup is memoized
const LookupTTL = 24 * time.Hour

// defaultLookupCacheSize bounds the in-memory cache before FIFO eviction
const defaultLookupCacheSize = 512

// LookupKey derives the memoization key from a title and artist
func LookupKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title) + "_" + strings.TrimSpace(artist))
}

// LookupCache memoizes successful catalog lookups. Implementations must be
// safe for concurrent use across all jobs.
type LookupCache interface {
	Get(ctx context.Context, key string) (*types.MetadataRecord, bool)
	Put(ctx context.Context, key string, record *types.MetadataRecord)
}

type cachedLookup struct {
	record    types.MetadataRecord
	expiresAt time.Time
}

// memoryLookupCache is a bounded in-process cache with FIFO eviction
type memoryLookupCache struct {
	entries map[string]cachedLookup
	order   []string
	maxSize int
	mu      sync.Mutex
}

// NewMemoryLookupCache creates the default in-memory lookup cache
func NewMemoryLookupCache(maxSize int) LookupCache {
	if maxSize <= 0 {
		maxSize = defaultLookupCacheSize
	}
	return &memoryLookupCache{
		entries: make(map[string]cachedLookup),
		maxSize: maxSize,
	}
}

func (c *memoryLookupCache) Get(_ context.Context, key string) (*types.MetadataRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	record := entry.record
	return &record, true
}

func (c *memoryLookupCache) Put(_ context.Context, key string, record *types.MetadataRecord) {
	if record == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cachedLookup{record: *record, expiresAt: time.Now().Add(LookupTTL)}

	// Oldest-first eviction once over the ceiling
	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// redisLookupCache stores memoized lookups in Redis so multiple instances
// share one cache. TTL handling is delegated to Redis.
type redisLookupCache struct {
	client *redis.Client
}

// NewRedisLookupCache creates a Redis-backed lookup cache
func NewRedisLookupCache(addr string) LookupCache {
	return &redisLookupCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (c *redisLookupCache) Get(ctx context.Context, key string) (*types.MetadataRecord, bool) {
	data, err := c.client.Get(ctx, "lookup:"+key).Bytes()
	if err != nil {
		return nil, false
	}

	var record types.MetadataRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false
	}
	return &record, true
}

func (c *redisLookupCache) Put(ctx context.Context, key string, record *types.MetadataRecord) {
	if record == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	c.client.Set(ctx, "lookup:"+key, data, LookupTTL)
}
