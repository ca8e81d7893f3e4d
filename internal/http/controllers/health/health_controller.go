// Package health contiene los controllers de liveness y readiness.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/usersvc/internal/http/dto"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

// Pinger componente con chequeo de conectividad (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps nombre del servicio y componentes a chequear en /readyz.
type Deps struct {
	Service    string
	Version    string
	Components map[string]Pinger
	Timeout    time.Duration
}

type HealthController struct {
	deps Deps
	now  func() time.Time
}

func NewHealthController(deps Deps) *HealthController {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &HealthController{deps: deps, now: time.Now}
}

// Health GET /health/: liveness, no toca dependencias.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Service:   c.deps.Service,
		Version:   c.deps.Version,
		Timestamp: c.now().UTC(),
	})
}

// Readyz GET /readyz: 503 si algún componente no responde.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.deps.Timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	names := make([]string, 0, len(c.deps.Components))
	for name := range c.deps.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.ReadyResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := c.deps.Components[name].Ping(ctx); err != nil {
			log.Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	if c.deps.Version != "" {
		w.Header().Set("X-Service-Version", c.deps.Version)
	}
	helpers.WriteJSON(w, status, resp)
}
