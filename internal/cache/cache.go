// Package cache provee un key/value con TTL sobre dos backends:
//   - memory (go-cache, in-process; single instance / tests)
//   - redis (compartido entre réplicas; producción)
//
// Lo usa la lista de revocación de tokens: una escritura debe ser visible
// para la siguiente lectura de cualquier réplica, por eso con más de una
// instancia el backend tiene que ser redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get retorna ErrNotFound si la key no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda con TTL; ttl <= 0 = sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error

	Close() error

	Stats(ctx context.Context) (Stats, error)
}

type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind       string // "memory" | "redis"
	Addr       string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration // solo memory
}

var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente según cfg.Kind.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return nil, errors.New("cache: unknown kind " + cfg.Kind)
	}
}
