package directory

import (
	"context"
	"strings"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/rbac"
)

// ActivityQuery filtros de listado.
type ActivityQuery struct {
	Action string
	Result string
	Limit  int
	Offset int
}

// ListActivities aplica la misma regla de visibilidad que ListUsers:
// deny en view-activities = solo la actividad propia.
func (s *Service) ListActivities(ctx context.Context, c Caller, q ActivityQuery) (*Page[repository.ActivityRecord], error) {
	q.Action = strings.TrimSpace(q.Action)
	q.Result = strings.TrimSpace(q.Result)
	if q.Action != "" && !audit.ValidAction(q.Action) {
		return nil, invalid("action", "unknown_action")
	}
	if q.Result != "" && q.Result != repository.ResultSuccess && q.Result != repository.ResultFailure {
		return nil, invalid("result", "unknown_result")
	}

	scope, err := s.deps.Guard.Visibility(c.Role, rbac.ViewActivities)
	if err != nil {
		return nil, err
	}

	limit, offset := clamp(q.Limit, q.Offset)
	f := repository.ActivityFilter{
		Action: q.Action,
		Result: q.Result,
		Limit:  limit,
		Offset: offset,
	}
	switch {
	case scope.Self:
		f.Actor = c.UserID
	case !scope.All:
		f.ActorRoles = scope.RoleStrings()
	}

	recs, total, err := s.deps.Activities.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page[repository.ActivityRecord]{Items: recs, Total: total}, nil
}

// GetActivity un registro fuera del alcance del caller se reporta como inexistente.
func (s *Service) GetActivity(ctx context.Context, c Caller, id string) (*repository.ActivityRecord, error) {
	rec, err := s.deps.Activities.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	scope, err := s.deps.Guard.Visibility(c.Role, rbac.ViewActivities)
	if err != nil {
		return nil, err
	}
	if !visible(scope, c, rec) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func visible(scope rbac.Scope, c Caller, rec *repository.ActivityRecord) bool {
	switch {
	case scope.All:
		return true
	case scope.Self:
		return rec.Actor == c.UserID
	}
	for _, r := range scope.Roles {
		if string(r) == rec.ActorRole {
			return true
		}
	}
	return false
}
