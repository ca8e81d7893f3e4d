package auth

import (
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
)

// RegisterController maneja POST /api/v1/auth/register (alta por administrador).
type RegisterController struct {
	service AccountService
}

func NewRegisterController(service AccountService) *RegisterController {
	return &RegisterController{service: service}
}

func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	var req dto.RegisterRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(err.Error()))
		return
	}

	u, err := c.service.CreateUser(r.Context(), caller, directory.CreateUserInput{
		UserID:          req.UserID,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.UserFrom(u))
}
