package walletage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache memoizes creation times.
type Cache interface {
	Get(ctx context.Context, address string) (time.Time, bool, error)
	Set(ctx context.Context, address string, created time.Time) error
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)

type memEntry struct {
	created time.Time
	expires time.Time
	seq     uint64
}

type memSlot struct {
	address string
	seq     uint64
}

// MemoryCache is a bounded, expiring in-process cache. When full, the oldest
// insertion is evicted. Safe for concurrent use.
type MemoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]memEntry
	order      []memSlot
	seq        uint64
	now        func() time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries for ttl each.
// A non-positive ttl never expires; a non-positive maxEntries is unbounded.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memEntry),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, address string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[address]
	if !ok {
		return time.Time{}, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, address)
		return time.Time{}, false, nil
	}
	return e.created, true, nil
}

func (c *MemoryCache) Set(_ context.Context, address string, created time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := memEntry{created: created, seq: c.seq}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[address] = e
	c.order = append(c.order, memSlot{address: address, seq: c.seq})

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if cur, ok := c.entries[oldest.address]; ok && cur.seq == oldest.seq {
			delete(c.entries, oldest.address)
		}
	}
	// Drop slots superseded by later writes or expiry.
	if len(c.order) > 2*len(c.entries)+16 {
		live := c.order[:0]
		for _, s := range c.order {
			if cur, ok := c.entries[s.address]; ok && cur.seq == s.seq {
				live = append(live, s)
			}
		}
		c.order = live
	}
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

const redisKeyPrefix = "scout:wallet_created:"

// RedisCache stores creation times as unix seconds with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, address string) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, redisKeyPrefix+address).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get: malformed value %q: %w", val, err)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func (c *RedisCache) Set(ctx context.Context, address string, created time.Time) error {
	val := strconv.FormatInt(created.Unix(), 10)
	if err := c.client.Set(ctx, redisKeyPrefix+address, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
