package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
)

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithPrincipal inyecta el principal autenticado.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal retorna nil si el request no pasó por RequireAuth.
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(ctxPrincipalKey).(*auth.Principal)
	return p
}

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

const ctxClientIPKey ctxKey = "client_ip"

// WithClientIP resuelve la IP del cliente una sola vez por request.
func WithClientIP(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxClientIPKey, helpers.ClientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientIP(ctx context.Context) string {
	s, _ := ctx.Value(ctxClientIPKey).(string)
	return s
}

// Meta datos del request para el registro de actividad.
func Meta(r *http.Request) auth.Meta {
	return auth.Meta{IP: GetClientIP(r.Context()), UserAgent: r.UserAgent()}
}

// Caller principal + metadatos como lo espera directory. ok=false si el
// request no está autenticado.
func Caller(r *http.Request) (directory.Caller, bool) {
	p := GetPrincipal(r.Context())
	if p == nil {
		return directory.Caller{}, false
	}
	return directory.Caller{
		ID:        p.ID,
		UserID:    p.UserID,
		Role:      p.Role,
		IP:        GetClientIP(r.Context()),
		UserAgent: r.UserAgent(),
	}, true
}
