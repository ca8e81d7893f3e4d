// Package bootstrap crea la cuenta raíz y los usuarios semilla. Todo es
// idempotente: correrlo en cada arranque no duplica ni pisa nada.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
)

// DefaultSeedUsers set de desarrollo cuando seed_test_users está activo y
// no se configuraron usuarios explícitos.
var DefaultSeedUsers = []config.SeedUser{
	{UserID: "competition_admin01", Password: "TestPass123!", Role: string(rbac.CompetitionAdmin)},
	{UserID: "teacher01", Password: "TestPass123!", Role: string(rbac.Teacher)},
	{UserID: "student01", Password: "student123", Role: string(rbac.Student)},
	{UserID: "student02", Password: "student123", Role: string(rbac.Student)},
}

// Run asegura la cuenta raíz y, si corresponde, los usuarios semilla.
func Run(ctx context.Context, users repository.UserRepository, hasher *password.Hasher, cfg *config.Config) error {
	if _, _, err := EnsureAdmin(ctx, users, hasher, cfg.Bootstrap.AdminUserID, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}
	seeds := cfg.Bootstrap.SeedUsers
	if len(seeds) == 0 && cfg.Bootstrap.SeedTestUsers {
		seeds = DefaultSeedUsers
	}
	if len(seeds) == 0 {
		return nil
	}
	_, err := SeedUsers(ctx, users, hasher, seeds)
	return err
}

// EnsureAdmin crea la cuenta raíz (super_admin, is_system_admin) si no existe.
// Si ya existe no toca su contraseña.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, hasher *password.Hasher, userID, plain string) (*repository.User, bool, error) {
	log := logger.From(ctx).With(logger.Component("bootstrap"), logger.Op("EnsureAdmin"))

	userID = strings.TrimSpace(userID)
	if userID == "" || plain == "" {
		return nil, false, errors.New("bootstrap: admin userid and password are required")
	}

	// 1. ¿Ya existe?
	u, err := users.GetByUserID(ctx, userID)
	if err == nil {
		log.Debug("admin present", logger.UserID(userID))
		return u, false, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, fmt.Errorf("bootstrap: lookup admin: %w", err)
	}

	// 2. Crear
	hash, err := hasher.Hash(plain)
	if err != nil {
		return nil, false, fmt.Errorf("bootstrap: hash admin password: %w", err)
	}
	u, err = users.Create(ctx, repository.CreateUserInput{
		UserID:        userID,
		PasswordHash:  hash,
		Role:          string(rbac.SuperAdmin),
		IsActive:      true,
		IsSystemAdmin: true,
	})
	if repository.IsConflict(err) {
		// otra réplica ganó la carrera
		u, err = users.GetByUserID(ctx, userID)
		return u, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("bootstrap: create admin: %w", err)
	}
	log.Info("admin created", logger.UserID(userID))
	return u, true, nil
}

// SeedUsers crea los que falten y retorna cuántos creó.
func SeedUsers(ctx context.Context, users repository.UserRepository, hasher *password.Hasher, seeds []config.SeedUser) (int, error) {
	log := logger.From(ctx).With(logger.Component("bootstrap"), logger.Op("SeedUsers"))
	created := 0
	for _, s := range seeds {
		role, err := rbac.ParseRole(s.Role)
		if err != nil {
			return created, fmt.Errorf("bootstrap: seed %q: %w", s.UserID, err)
		}
		if _, err := users.GetByUserID(ctx, s.UserID); err == nil {
			continue
		} else if !repository.IsNotFound(err) {
			return created, fmt.Errorf("bootstrap: lookup %q: %w", s.UserID, err)
		}
		hash, err := hasher.Hash(s.Password)
		if err != nil {
			return created, fmt.Errorf("bootstrap: hash %q: %w", s.UserID, err)
		}
		_, err = users.Create(ctx, repository.CreateUserInput{
			UserID:       s.UserID,
			PasswordHash: hash,
			Role:         string(role),
			IsActive:     true,
		})
		if repository.IsConflict(err) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("bootstrap: create %q: %w", s.UserID, err)
		}
		created++
		log.Info("seed user created", logger.UserID(s.UserID), logger.Role(string(role)))
	}
	return created, nil
}

// SetPassword reemplaza la contraseña de userID sin pasar por la política.
// Es el único camino para cambiar la de la cuenta raíz.
func SetPassword(ctx context.Context, users repository.UserRepository, hasher *password.Hasher, userID, plain string) error {
	if plain == "" {
		return password.ErrEmpty
	}
	u, err := users.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("bootstrap: lookup %q: %w", userID, err)
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("bootstrap: hash: %w", err)
	}
	return users.UpdatePasswordHash(ctx, u.ID, hash)
}

// PromptPassword pide una contraseña dos veces sin eco.
func PromptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use --password")
	}
	fmt.Fprint(out, "New password: ")
	p1, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Confirm password: ")
	p2, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(p1) != string(p2) {
		return "", errors.New("passwords do not match")
	}
	return string(p1), nil
}
