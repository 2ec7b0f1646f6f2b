package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper reports whether a platform event was already handled. The
// chat platform redelivers events when an ack is slow, and a redelivered
// message must not trigger a second billable AI call.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// MemoryDeduper is the fallback used when Redis is not configured.
type MemoryDeduper struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryDeduper{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, key)
		}
	}

	if _, ok := d.seen[eventID]; ok {
		return true, nil
	}
	d.seen[eventID] = now.Add(d.ttl)
	return false, nil
}

// RedisDeduper parks seen event IDs in Redis with a TTL so that multiple
// bot instances share one dedupe window.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{
		client: client,
		ttl:    ttl,
		prefix: "menu_bot:event:",
	}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	stored, err := d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe setnx: %w", err)
	}
	return !stored, nil
}
