package auth

import (
	"errors"
	"net/http"

	svc "github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/http/dto"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// LoginController maneja POST /api/v1/auth/login.
type LoginController struct {
	service TokenService
}

func NewLoginController(service TokenService) *LoginController {
	return &LoginController{service: service}
}

func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	// 1. Parse
	var req dto.LoginRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	// 2. Campos vacíos cuentan como credenciales inválidas: el servicio
	// registra el intento igual que cualquier otro fallo.
	if err := req.Validate(); err != nil {
		log.Debug("login payload rejected", logger.Err(err))
	}

	// 3. Service
	pair, err := c.service.Login(ctx, req.UserID, req.Password, mw.Meta(r))
	if err != nil {
		writeTokenError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         dto.UserFrom(pair.User),
	})
}

// ─── Helpers ───

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, helpers.ErrBodyTooLarge) {
		httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
		return
	}
	httperrors.WriteError(w, httperrors.ErrInvalidJSON)
}

func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, svc.ErrTokenInvalid):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
		httperrors.WriteError(w, httperrors.ErrTokenInvalid)
	default:
		httperrors.WriteError(w, httperrors.FromDomain(err))
	}
}
