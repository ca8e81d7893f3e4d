// Package store arma la capa de persistencia según configuración.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/store/memory"
	"github.com/dropDatabas3/usersvc/internal/store/pg"
	"github.com/dropDatabas3/usersvc/internal/util"
	migrations "github.com/dropDatabas3/usersvc/migrations/postgres"
)

// Store agrupa los repositorios del servicio.
type Store interface {
	Users() repository.UserRepository
	Sessions() repository.SessionRepository
	Activities() repository.ActivityRepository
	Ping(ctx context.Context) error
	Close() error
}

// Open crea el store configurado. Con storage.migrate=true aplica las
// migraciones embebidas antes de retornar.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	log := logger.From(ctx).With(logger.Component("store"))

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil

	case "postgres":
		log.Info("opening postgres", logger.String("dsn", util.MaskURL(cfg.Storage.DSN)))
		s, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{
			MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
		})
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			res, err := s.Migrate(ctx, migrations.FS, migrations.Dir)
			if err != nil {
				s.Close()
				return nil, err
			}
			log.Info("migrations applied", logger.Count(len(res.Applied)), logger.Int("skipped", len(res.Skipped)))
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.Storage.Driver)
}
