// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	activityctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/activities"
	authctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/health"
	userctrl "github.com/dropDatabas3/usersvc/internal/http/controllers/users"
	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	mw "github.com/dropDatabas3/usersvc/internal/http/middlewares"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/rate"
)

// Deps todo lo que el router necesita ya construido.
type Deps struct {
	Auth       *authctrl.Controllers
	Users      *userctrl.Controllers
	Activities *activityctrl.ActivitiesController
	Health     *healthctrl.HealthController

	Validator  mw.TokenValidator
	Metrics    *metrics.Metrics
	TrustProxy bool

	// LoginLimiter opcional; nil desactiva el rate limiting.
	LoginLimiter rate.Limiter
}

// New retorna el handler raíz. Las barras finales son opcionales.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.StripSlashes,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustProxy),
		mw.WithMetrics(d.Metrics),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Health sin logging (muy frecuentes)
	r.Get("/health", d.Health.Health)
	r.Get("/readyz", d.Health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.WithLogging(), mw.WithNoStore())
		registerAuthRoutes(r, d)
		registerUserRoutes(r, d)
		registerActivityRoutes(r, d)
	})

	return r
}

func registerAuthRoutes(r chi.Router, d Deps) {
	c := d.Auth
	r.Route("/auth", func(r chi.Router) {
		// Públicos
		r.With(mw.WithRateLimit(d.LoginLimiter, mw.LoginRateKey)).Post("/login", c.Login.Login)
		r.With(mw.WithRateLimit(d.LoginLimiter, mw.IPRateKey)).Post("/refresh", c.Refresh.Refresh)
		// logout valida el bearer por su cuenta: repetirlo no es un 401.
		r.Post("/logout", c.Logout.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth(d.Validator))
			r.Post("/change-password", c.ChangePassword.ChangePassword)
			r.Post("/register", c.Register.Register)
		})
	})
}

func registerUserRoutes(r chi.Router, d Deps) {
	c := d.Users.Users
	r.Route("/users", func(r chi.Router) {
		r.Use(mw.RequireAuth(d.Validator))
		r.Get("/", c.List)
		r.Get("/me", c.Me)
		r.Delete("/deactivate", c.DeactivateSelf)
		r.Get("/{id}", c.Get)
		r.Patch("/{id}/set_role", c.SetRole)
		r.Post("/{id}/activate", c.Activate)
		r.Post("/{id}/deactivate", c.Deactivate)
	})
}

func registerActivityRoutes(r chi.Router, d Deps) {
	c := d.Activities
	r.Route("/activities", func(r chi.Router) {
		r.Use(mw.RequireAuth(d.Validator))
		r.Get("/", c.List)
		r.Get("/{id}", c.Get)
	})
}
