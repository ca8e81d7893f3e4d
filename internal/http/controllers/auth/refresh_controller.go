package auth

import (
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
)

// RefreshController maneja POST /api/v1/auth/refresh.
type RefreshController struct {
	service TokenService
}

func NewRefreshController(service TokenService) *RefreshController {
	return &RefreshController{service: service}
}

func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(err.Error()))
		return
	}

	pair, err := c.service.Refresh(r.Context(), req.RefreshToken, mw.Meta(r))
	if err != nil {
		writeTokenError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	})
}
