package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rbac"
)

// ListOptions paginación y filtro de estado.
type ListOptions struct {
	Active *bool
	Limit  int
	Offset int
}

// ListUsers devuelve lo que el rol del caller puede ver: todo, los roles
// objetivo de su regla, o solo su propio registro si la regla es deny.
func (s *Service) ListUsers(ctx context.Context, c Caller, opt ListOptions) (*Page[repository.User], error) {
	scope, err := s.deps.Guard.Visibility(c.Role, rbac.ListUsers)
	if err != nil {
		return nil, err
	}

	if scope.Self {
		u, err := s.deps.Users.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if opt.Active != nil && u.IsActive != *opt.Active {
			return &Page[repository.User]{Items: []repository.User{}}, nil
		}
		return &Page[repository.User]{Items: []repository.User{*u}, Total: 1}, nil
	}

	limit, offset := clamp(opt.Limit, opt.Offset)
	users, total, err := s.deps.Users.List(ctx, repository.ListUsersFilter{
		Roles:  scope.RoleStrings(),
		Active: opt.Active,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	return &Page[repository.User]{Items: users, Total: total}, nil
}

// GetUser detalle por id. El propio registro siempre es visible.
func (s *Service) GetUser(ctx context.Context, c Caller, id int64) (*repository.User, error) {
	u, err := s.deps.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.ID == c.ID {
		return u, nil
	}
	if err := s.authorize(c, rbac.ViewUserDetail, rbac.Role(u.Role)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetSelf(ctx context.Context, c Caller) (*repository.User, error) {
	return s.deps.Users.GetByID(ctx, c.ID)
}

// SetRole cambia el rol de id. La autorización se evalúa con la fila
// bloqueada, contra el rol vigente del destino.
func (s *Service) SetRole(ctx context.Context, c Caller, id int64, newRole string) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Component("directory"), logger.Op("SetRole"))

	next, err := rbac.ParseRole(strings.TrimSpace(newRole))
	if err != nil {
		return nil, err
	}

	var target string
	u, err := s.deps.Users.Mutate(ctx, id, func(u *repository.User) error {
		target = u.UserID
		if u.IsSystemAdmin {
			return ErrSystemAdminProtected
		}
		if err := s.deps.Guard.AuthorizeRoleChange(c.Role, rbac.Role(u.Role), next); err != nil {
			if errors.Is(err, rbac.ErrPermissionDenied) {
				s.deps.Metrics.AuthzDenied(string(rbac.SetRole))
			}
			return err
		}
		u.Role = string(next)
		return nil
	})
	if repository.IsNotFound(err) {
		return nil, err
	}
	s.record(ctx, c, audit.ActionSetRole, target, err)
	if err != nil {
		return nil, err
	}
	log.Info("role changed", logger.UserID(c.UserID), logger.Target(u.UserID), logger.Role(u.Role))
	return u, nil
}

func (s *Service) Activate(ctx context.Context, c Caller, id int64) (*repository.User, error) {
	return s.setActive(ctx, c, id, true)
}

// Deactivate además revoca las sesiones del usuario. Si la revocación falla
// igual queda inactivo, y Validate lo rechaza en la próxima llamada.
func (s *Service) Deactivate(ctx context.Context, c Caller, id int64) (*repository.User, error) {
	return s.setActive(ctx, c, id, false)
}

func (s *Service) setActive(ctx context.Context, c Caller, id int64, active bool) (*repository.User, error) {
	action := audit.ActionActivate
	if !active {
		action = audit.ActionDeactivate
	}

	var target string
	u, err := s.deps.Users.Mutate(ctx, id, func(u *repository.User) error {
		target = u.UserID
		if !active && u.IsSystemAdmin {
			return ErrSystemAdminProtected
		}
		if err := s.authorize(c, rbac.ActivateUser, rbac.Role(u.Role)); err != nil {
			return err
		}
		u.IsActive = active
		return nil
	})
	if repository.IsNotFound(err) {
		return nil, err
	}
	s.record(ctx, c, action, target, err)
	if err != nil {
		return nil, err
	}
	if !active {
		s.revoke(ctx, u.ID)
	}
	return u, nil
}

// DeactivateSelf el caller desactiva su propia cuenta.
func (s *Service) DeactivateSelf(ctx context.Context, c Caller) error {
	if err := s.authorize(c, rbac.DeactivateSelf); err != nil {
		return err
	}
	_, err := s.deps.Users.Mutate(ctx, c.ID, func(u *repository.User) error {
		if u.IsSystemAdmin {
			return ErrSystemAdminProtected
		}
		u.IsActive = false
		return nil
	})
	if repository.IsNotFound(err) {
		return err
	}
	s.record(ctx, c, audit.ActionDeactivate, c.UserID, err)
	if err != nil {
		return err
	}
	s.revoke(ctx, c.ID)
	return nil
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.deps.Revoker == nil {
		return
	}
	if _, err := s.deps.Revoker.RevokeAllForUser(ctx, id); err != nil {
		logger.From(ctx).Warn("session revocation failed",
			logger.Component("directory"), logger.Int("user_id", int(id)), logger.Err(err))
	}
}

// CreateUserInput alta de usuario por un administrador.
type CreateUserInput struct {
	UserID          string
	Password        string
	PasswordConfirm string
	Role            string
}

func (s *Service) CreateUser(ctx context.Context, c Caller, in CreateUserInput) (*repository.User, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.Role == "" {
		in.Role = string(rbac.Student)
	}
	// cada rechazo queda auditado como register fallido
	fail := func(err error) (*repository.User, error) {
		s.record(ctx, c, audit.ActionRegister, in.UserID, err)
		return nil, err
	}
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return fail(err)
	}
	if err := s.authorize(c, rbac.CreateUser, role); err != nil {
		return fail(err)
	}
	if role == rbac.SuperAdmin && c.Role != rbac.SuperAdmin {
		return fail(rbac.ErrPermissionDenied)
	}

	if !UserIDPattern.MatchString(in.UserID) {
		return fail(invalid("userid", "invalid_format"))
	}
	if in.Password != in.PasswordConfirm {
		return fail(invalid("password_confirm", "mismatch"))
	}
	if ok, reasons := s.deps.Policy.Validate(in.Password); !ok {
		return fail(invalid("password", reasons...))
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return fail(fmt.Errorf("directory: hash password: %w", err))
	}
	u, err := s.deps.Users.Create(ctx, repository.CreateUserInput{
		UserID:       in.UserID,
		PasswordHash: hash,
		Role:         string(role),
		IsActive:     true,
	})
	if err != nil {
		return fail(err)
	}
	s.record(ctx, c, audit.ActionRegister, in.UserID, nil)
	return u, nil
}

// ChangePasswordInput cambio de la propia contraseña.
type ChangePasswordInput struct {
	Current    string
	New        string
	NewConfirm string
}

// ChangePassword verifica la actual, aplica la política y revoca todas las
// sesiones. La cuenta raíz solo cambia su contraseña por configuración.
func (s *Service) ChangePassword(ctx context.Context, c Caller, in ChangePasswordInput) error {
	if err := s.authorize(c, rbac.ChangePassword); err != nil {
		return err
	}
	u, err := s.deps.Users.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if u.IsSystemAdmin {
		s.record(ctx, c, audit.ActionChangePassword, c.UserID, ErrSystemAdminProtected)
		return ErrSystemAdminProtected
	}

	// 1. Contraseña actual
	if !s.deps.Hasher.Verify(in.Current, u.PasswordHash) {
		err := invalid("current_password", "incorrect")
		s.record(ctx, c, audit.ActionChangePassword, c.UserID, err)
		return err
	}
	// 2. Nueva
	if in.New != in.NewConfirm {
		return invalid("new_password_confirm", "mismatch")
	}
	if in.New == in.Current {
		return invalid("new_password", "same_as_current")
	}
	if ok, reasons := s.deps.Policy.Validate(in.New); !ok {
		return invalid("new_password", reasons...)
	}

	// 3. Persistir y cortar sesiones
	hash, err := s.deps.Hasher.Hash(in.New)
	if err != nil {
		return fmt.Errorf("directory: hash password: %w", err)
	}
	if err := s.deps.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	s.revoke(ctx, u.ID)
	s.record(ctx, c, audit.ActionChangePassword, c.UserID, nil)
	return nil
}
