package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type activityRepo struct{ pool *pgxpool.Pool }

const activityColumns = `id, actor, actor_role, action, target, result, ip_address, user_agent, error_message, created_at`

func scanActivity(row pgx.Row) (*repository.ActivityRecord, error) {
	var a repository.ActivityRecord
	if err := row.Scan(&a.ID, &a.Actor, &a.ActorRole, &a.Action, &a.Target, &a.Result,
		&a.IPAddress, &a.UserAgent, &a.ErrorMessage, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepo) Append(ctx context.Context, a repository.ActivityRecord) error {
	const q = `
		INSERT INTO user_activity (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q, a.ID, a.Actor, a.ActorRole, a.Action, a.Target, a.Result,
		a.IPAddress, a.UserAgent, a.ErrorMessage, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("pg: insert activity: %w", err)
	}
	return nil
}

func (r *activityRepo) List(ctx context.Context, f repository.ActivityFilter) ([]repository.ActivityRecord, int, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	var (
		where []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if len(f.ActorRoles) > 0 {
		add("actor_role = ANY($%d)", f.ActorRoles)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Result != "" {
		add("result = $%d", f.Result)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_activity`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg: count activities: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM user_activity%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		activityColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg: list activities: %w", err)
	}
	defer rows.Close()

	out := make([]repository.ActivityRecord, 0, limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pg: scan activity: %w", err)
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (r *activityRepo) GetByID(ctx context.Context, id string) (*repository.ActivityRecord, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM user_activity WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		// uuid mal formado: para el llamador es simplemente "no existe"
		if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get activity: %w", err)
	}
	return a, nil
}
