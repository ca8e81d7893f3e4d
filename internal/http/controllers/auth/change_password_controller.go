package auth

import (
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
)

// ChangePasswordController maneja POST /api/v1/auth/change-password.
type ChangePasswordController struct {
	service AccountService
}

func NewChangePasswordController(service AccountService) *ChangePasswordController {
	return &ChangePasswordController{service: service}
}

func (c *ChangePasswordController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := mw.Caller(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	var req dto.ChangePasswordRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(err.Error()))
		return
	}

	err := c.service.ChangePassword(r.Context(), caller, directory.ChangePasswordInput{
		Current:    req.CurrentPassword,
		New:        req.NewPassword,
		NewConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		httperrors.WriteError(w, httperrors.FromDomain(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
