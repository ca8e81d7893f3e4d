package auth

import (
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// LogoutController maneja POST /api/v1/auth/logout. No pasa por RequireAuth:
// repetir el logout con el mismo token sigue respondiendo 204.
type LogoutController struct {
	service TokenService
}

func NewLogoutController(service TokenService) *LogoutController {
	return &LogoutController{service: service}
}

func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LogoutController.Logout"))

	// 1. Bearer obligatorio
	access, ok := helpers.BearerToken(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	// 2. Body opcional con refresh_token
	var req dto.LogoutRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	// 3. Revocar
	meta := mw.Meta(r)
	if err := c.service.Logout(ctx, access, meta); err != nil {
		writeTokenError(w, err)
		return
	}
	if req.RefreshToken != "" {
		if err := c.service.Logout(ctx, req.RefreshToken, meta); err != nil {
			log.Debug("refresh token logout ignored", logger.Err(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
