// Package users contiene los controllers de /api/v1/users.
package users

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
)

// Service lo implementa directory.Service.
type Service interface {
	ListUsers(ctx context.Context, c directory.Caller, opt directory.ListOptions) (*directory.Page[repository.User], error)
	GetUser(ctx context.Context, c directory.Caller, id int64) (*repository.User, error)
	GetSelf(ctx context.Context, c directory.Caller) (*repository.User, error)
	SetRole(ctx context.Context, c directory.Caller, id int64, role string) (*repository.User, error)
	Activate(ctx context.Context, c directory.Caller, id int64) (*repository.User, error)
	Deactivate(ctx context.Context, c directory.Caller, id int64) (*repository.User, error)
	DeactivateSelf(ctx context.Context, c directory.Caller) error
}

// Controllers agrupa los controllers de usuarios.
type Controllers struct {
	Users *UsersController
}

func NewControllers(service Service) *Controllers {
	return &Controllers{Users: NewUsersController(service)}
}

// pathID lee {id}; un id no numérico es 404, igual que un id inexistente.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return 0, false
	}
	return id, true
}
