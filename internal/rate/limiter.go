// Package rate limita intentos de login por (ip, userid) con ventana fija.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func windowKey(prefix, key string, now time.Time, window time.Duration) string {
	start := now.UTC().Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func result(hits, max int64, retry time.Duration) Result {
	res := Result{Allowed: hits <= max, CurrentHits: hits, Remaining: max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = retry
	}
	return res
}

// RedisLimiter: fixed window (INCR + EXPIRE en la misma TX).
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := windowKey(l.Prefix, key, l.now(), l.Window)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX: solo el primer hit de la ventana fija el TTL
	pipe.ExpireNX(ctx, k, l.Window)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = l.Window
	}
	return result(incr.Val(), l.Max, retry), nil
}

// MemoryLimiter: misma semántica sobre go-cache, para una sola instancia.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration
	c      *gocache.Cache
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		c:      gocache.New(window, 2*window),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	k := windowKey("", key, now, l.Window)

	// Add falla si la key existe: en ese caso incrementamos.
	var hits int64 = 1
	if err := l.c.Add(k, int64(1), l.Window); err != nil {
		n, err := l.c.IncrementInt64(k, 1)
		if err != nil {
			// expiró entre Add e Increment
			l.c.Set(k, int64(1), l.Window)
			n = 1
		}
		hits = n
	}
	end := now.UTC().Truncate(l.Window).Add(l.Window)
	return result(hits, l.Max, end.Sub(now.UTC())), nil
}
