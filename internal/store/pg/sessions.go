package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type sessionRepo struct{ pool *pgxpool.Pool }

const sessionColumns = `id, user_id, userid, token_hash, issued_at, expires_at, last_used_at, revoked_at`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.UserLogin, &s.TokenHash,
		&s.IssuedAt, &s.ExpiresAt, &s.LastUsedAt, &s.RevokedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	const q = `
		INSERT INTO refresh_session (id, user_id, userid, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, in.ID, in.UserID, in.UserLogin, in.TokenHash, in.IssuedAt, in.ExpiresAt))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("pg: insert session: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*repository.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM refresh_session WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get session: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM refresh_session WHERE token_hash = $1`, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get session by hash: %w", err)
	}
	return s, nil
}

// Rotate es un compare-and-swap sobre token_hash: solo una de dos rotaciones
// concurrentes del mismo token afecta la fila.
func (r *sessionRepo) Rotate(ctx context.Context, id, oldHash, newHash string, at time.Time) error {
	const q = `
		UPDATE refresh_session SET token_hash = $3, last_used_at = $4
		WHERE id = $1 AND token_hash = $2 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, id, oldHash, newHash, at)
	if err != nil {
		return fmt.Errorf("pg: rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleToken
	}
	return nil
}

func (r *sessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE refresh_session SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("pg: revoke session: %w", err)
	}
	return nil
}

func (r *sessionRepo) RevokeAllByUser(ctx context.Context, userID int64, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE refresh_session SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("pg: revoke user sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
