// Package auth contiene los controllers de /api/v1/auth.
package auth

import (
	"context"

	svc "github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

// TokenService lo implementa auth.Service.
type TokenService interface {
	Login(ctx context.Context, userID, password string, meta svc.Meta) (*svc.TokenPair, error)
	Refresh(ctx context.Context, raw string, meta svc.Meta) (*svc.TokenPair, error)
	Logout(ctx context.Context, raw string, meta svc.Meta) error
}

// AccountService lo implementa directory.Service.
type AccountService interface {
	ChangePassword(ctx context.Context, c directory.Caller, in directory.ChangePasswordInput) error
	CreateUser(ctx context.Context, c directory.Caller, in directory.CreateUserInput) (*repository.User, error)
}

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Login          *LoginController
	Refresh        *RefreshController
	Logout         *LogoutController
	ChangePassword *ChangePasswordController
	Register       *RegisterController
}

func NewControllers(tokens TokenService, accounts AccountService) *Controllers {
	return &Controllers{
		Login:          NewLoginController(tokens),
		Refresh:        NewRefreshController(tokens),
		Logout:         NewLogoutController(tokens),
		ChangePassword: NewChangePasswordController(accounts),
		Register:       NewRegisterController(accounts),
	}
}
