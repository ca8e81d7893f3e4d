// Package directory expone las operaciones sobre usuarios y actividad,
// cada una pasando por el guard y dejando registro en audit.
package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
)

var (
	ErrNotFound             = repository.ErrNotFound
	ErrConflict             = repository.ErrConflict
	ErrSystemAdminProtected = errors.New("system admin is protected")
	ErrValidation           = errors.New("validation failed")
)

// ValidationError rechazo de un campo de entrada.
type ValidationError struct {
	Field   string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, strings.Join(e.Reasons, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field string, reasons ...string) error {
	return &ValidationError{Field: field, Reasons: reasons}
}

// UserIDPattern formato de userid para altas por API.
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

const (
	defaultLimit = 50
	maxLimit     = 200
)

func clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Caller usuario autenticado que invoca la operación.
type Caller struct {
	ID        int64
	UserID    string
	Role      rbac.Role
	IP        string
	UserAgent string
}

// Revoker invalida las sesiones de un usuario (auth.Service).
type Revoker interface {
	RevokeAllForUser(ctx context.Context, id int64) (int, error)
}

type Deps struct {
	Users      repository.UserRepository
	Activities repository.ActivityRepository
	Guard      *rbac.Guard
	Recorder   *audit.Recorder
	Revoker    Revoker
	Hasher     *password.Hasher
	Policy     password.Policy
	Metrics    *metrics.Metrics
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Guard == nil {
		deps.Guard = rbac.Default()
	}
	if deps.Hasher == nil {
		deps.Hasher = password.NewHasher(password.Default)
	}
	return &Service{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Page resultado paginado.
type Page[T any] struct {
	Items []T
	Total int
}

// authorize envuelve el guard para contar denegaciones.
func (s *Service) authorize(c Caller, op rbac.Operation, target ...rbac.Role) error {
	err := s.deps.Guard.Authorize(c.Role, op, target...)
	if errors.Is(err, rbac.ErrPermissionDenied) {
		s.deps.Metrics.AuthzDenied(string(op))
	}
	return err
}

func (s *Service) record(ctx context.Context, c Caller, action, target string, err error) {
	e := audit.Entry{
		Actor:     c.UserID,
		ActorRole: string(c.Role),
		Action:    action,
		Target:    target,
		Success:   err == nil,
		IPAddress: c.IP,
		UserAgent: c.UserAgent,
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.deps.Recorder.Record(ctx, e)
}
