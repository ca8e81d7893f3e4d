package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/auth"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// TokenValidator lo implementa auth.Service.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (*auth.Principal, error)
}

// RequireAuth valida Authorization: Bearer <jwt> en cada request (firma,
// revocación, sesión y estado actual del usuario) y guarda el principal.
func RequireAuth(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := helpers.BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}

			p, err := v.Validate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenInvalid) {
					logger.From(r.Context()).Debug("token rejected", logger.Err(err))
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
					httperrors.WriteError(w, httperrors.ErrTokenInvalid)
					return
				}
				logger.From(r.Context()).Error("token validation failed", logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(p.UserID), logger.Role(string(p.Role))))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
