// Package lookup resolves lowest-BIN prices and seller names for the
// visibility enricher.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config locates the redis instance the price service writes to.
type Config struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	Prefix   string        `json:"prefix"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// SetDefaults fills the key prefix and local cache TTL.
func (c *Config) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "flip"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Second
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisLookup reads "<prefix>:lbin:<tag>" and "<prefix>:seller:<uuid>".
// Missing keys resolve to zero values. Results are cached in memory for
// CacheTTL.
type RedisLookup struct {
	client getter
	closer func() error
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]entry
}

type entry struct {
	v   string
	exp time.Time
}

// NewRedisLookup connects and pings the server.
func NewRedisLookup(cfg Config) (*RedisLookup, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l := newLookup(client, cfg)
	l.closer = client.Close
	return l, nil
}

func newLookup(g getter, cfg Config) *RedisLookup {
	cfg.SetDefaults()
	return &RedisLookup{client: g, prefix: cfg.Prefix, ttl: cfg.CacheTTL, now: time.Now, cache: make(map[string]entry)}
}

func (l *RedisLookup) get(ctx context.Context, key string) (string, error) {
	key = l.prefix + ":" + key
	now := l.now()
	l.mu.RLock()
	e, ok := l.cache[key]
	l.mu.RUnlock()
	if ok && now.Before(e.exp) {
		return e.v, nil
	}
	v, err := l.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	l.mu.Lock()
	l.cache[key] = entry{v: v, exp: now.Add(l.ttl)}
	l.mu.Unlock()
	return v, nil
}

// LowestBin returns the cheapest BIN listed for tag, or 0 when unknown.
func (l *RedisLookup) LowestBin(ctx context.Context, tag string) (int64, error) {
	v, err := l.get(ctx, "lbin:"+tag)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lowest bin %q: %w", v, err)
	}
	return n, nil
}

// SellerName returns the display name of a seller, or "" when unknown.
func (l *RedisLookup) SellerName(ctx context.Context, sellerID string) (string, error) {
	return l.get(ctx, "seller:"+sellerID)
}

// Prune drops expired cache entries.
func (l *RedisLookup) Prune() {
	now := l.now()
	l.mu.Lock()
	for k, e := range l.cache {
		if !now.Before(e.exp) {
			delete(l.cache, k)
		}
	}
	l.mu.Unlock()
}

// Close closes the redis client.
func (l *RedisLookup) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

// NopLookup knows nothing.
type NopLookup struct{}

func (NopLookup) LowestBin(context.Context, string) (int64, error)   { return 0, nil }
func (NopLookup) SellerName(context.Context, string) (string, error) { return "", nil }
