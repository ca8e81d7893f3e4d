// Package pg implementa los repositorios sobre PostgreSQL usando pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

// Options ajustes del pool.
type Options struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

// New abre el pool y verifica conectividad.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	} else {
		pcfg.MaxConns = 10
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = int32(opts.MinConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (métricas, migraciones).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close es idempotente.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ─── Repositorios ───

func (s *Store) Users() repository.UserRepository           { return &userRepo{pool: s.pool} }
func (s *Store) Sessions() repository.SessionRepository     { return &sessionRepo{pool: s.pool} }
func (s *Store) Activities() repository.ActivityRepository { return &activityRepo{pool: s.pool} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
