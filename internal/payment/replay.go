package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayGuard records webhook deliveries so redeliveries can be acknowledged without reprocessing.
type ReplayGuard interface {
	// Acquire claims key for ttl. It reports false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so a later delivery can be processed again.
	Release(ctx context.Context, key string) error
}

// RedisReplayGuard stores claims in Redis with SETNX.
type RedisReplayGuard struct {
	Client redis.Cmdable
}

// Acquire implements ReplayGuard.
func (g RedisReplayGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.Client == nil {
		return false, errors.New("replay guard: redis client not configured")
	}
	return g.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release implements ReplayGuard.
func (g RedisReplayGuard) Release(ctx context.Context, key string) error {
	if g.Client == nil {
		return errors.New("replay guard: redis client not configured")
	}
	return g.Client.Del(ctx, key).Err()
}

// MemoryReplayGuard keeps claims in process memory. Claims are lost on restart
// and are not shared between replicas.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryReplayGuard returns an empty in-process guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{entries: make(map[string]time.Time), now: time.Now}
}

// Acquire implements ReplayGuard.
func (g *MemoryReplayGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entries == nil {
		g.entries = make(map[string]time.Time)
	}
	now := g.clock()
	if expiresAt, ok := g.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.entries[key] = now.Add(ttl)
	return true, nil
}

// Release implements ReplayGuard.
func (g *MemoryReplayGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

// Sweep removes expired claims and returns how many were dropped.
func (g *MemoryReplayGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	removed := 0
	for key, expiresAt := range g.entries {
		if !now.Before(expiresAt) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

func (g *MemoryReplayGuard) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

// Len reports the number of tracked claims, expired ones included.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Run sweeps expired claims every interval until ctx is cancelled.
func (g *MemoryReplayGuard) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
