package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type userRepo struct{ pool *pgxpool.Pool }

const userColumns = `id, userid, password_hash, role, is_active, is_system_admin, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.UserID, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.IsSystemAdmin, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user by id: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUserID(ctx context.Context, userID string) (*repository.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE userid = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user by userid: %w", err)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context, filter repository.ListUsersFilter) ([]repository.User, int, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	var (
		where []string
		args  []any
	)
	if len(filter.Roles) > 0 {
		args = append(args, filter.Roles)
		where = append(where, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM app_user`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg: count users: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM app_user%s ORDER BY id ASC LIMIT $%d OFFSET $%d`,
		userColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg: list users: %w", err)
	}
	defer rows.Close()

	users := make([]repository.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pg: scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	const q = `
		INSERT INTO app_user (userid, password_hash, role, is_active, is_system_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, in.UserID, in.PasswordHash, in.Role, in.IsActive, in.IsSystemAdmin))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("pg: insert user: %w", err)
	}
	return u, nil
}

// Mutate: SELECT ... FOR UPDATE + UPDATE en la misma TX. El último commit gana.
func (r *userRepo) Mutate(ctx context.Context, id int64, fn repository.UserMutation) (*repository.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: lock user: %w", err)
	}

	if err := fn(u); err != nil {
		return nil, err
	}

	const upd = `
		UPDATE app_user SET role = $2, is_active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err = scanUser(tx.QueryRow(ctx, upd, id, u.Role, u.IsActive))
	if err != nil {
		return nil, fmt.Errorf("pg: update user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pg: commit tx: %w", err)
	}
	return u, nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE app_user SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("pg: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE app_user SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("pg: touch last_login: %w", err)
	}
	return nil
}
