// Package cache keeps simulation results close to the API. The in-process
// LRU serves community deployments and fronts Redis in the two-phase cache.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultLRUSize applies when no positive capacity is configured.
const defaultLRUSize = 10000

// entryKey scopes a key to its tenant. A struct key cannot collide the way
// joined strings can when tenant IDs contain the separator.
type entryKey struct {
	tenantID string
	key      string
}

type lruEntry struct {
	id        entryKey
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LRUCache is a bounded, tenant-scoped cache with per-entry TTL. Expired
// entries are dropped when read; the least recently used entry is evicted
// when the cache is full.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[entryKey]*list.Element
	recency  *list.List // front is most recent
	now      func() time.Time
}

func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = defaultLRUSize
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[entryKey]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns nil, nil on a miss or an expired entry.
func (c *LRUCache) Get(_ context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, errTenantRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[entryKey{tenantID, key}]
	if !ok {
		return nil, nil
	}
	entry := elem.Value.(*lruEntry)
	if entry.expired(c.now()) {
		c.drop(elem)
		return nil, nil
	}
	c.recency.MoveToFront(elem)
	return entry.value, nil
}

// Set stores value for ttl. A non-positive ttl keeps the entry until it
// is evicted, as Redis does.
func (c *LRUCache) Set(_ context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return errTenantRequired
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	id := entryKey{tenantID, key}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value, entry.expiresAt = value, expiresAt
		c.recency.MoveToFront(elem)
		return nil
	}

	c.entries[id] = c.recency.PushFront(&lruEntry{id: id, value: value, expiresAt: expiresAt})
	for c.recency.Len() > c.capacity {
		c.drop(c.recency.Back())
	}
	return nil
}

func (c *LRUCache) GetSimulation(ctx context.Context, tenantID string, key string) (*domain.SimulationResult, error) {
	data, err := c.Get(ctx, tenantID, key)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSimulation(data)
}

func (c *LRUCache) SetSimulation(ctx context.Context, tenantID string, key string, result *domain.SimulationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, key, data, ttl)
}

// Ping always succeeds; the cache lives in process.
func (c *LRUCache) Ping(context.Context) error {
	return nil
}

// Close empties the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.recency.Init()
	return nil
}

// Stats reports the number of held entries and the capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len(), c.capacity
}

func (c *LRUCache) drop(elem *list.Element) {
	entry := c.recency.Remove(elem).(*lruEntry)
	delete(c.entries, entry.id)
}
