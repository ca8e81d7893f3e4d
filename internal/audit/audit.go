// Package audit registra la actividad relevante para seguridad. Record es
// append puro y nunca hace fallar la operación que lo invoca.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionRefresh        = "refresh"
	ActionRegister       = "register"
	ActionChangePassword = "change_password"
	ActionSetRole        = "set_role"
	ActionActivate       = "activate"
	ActionDeactivate     = "deactivate"
)

// Actions acciones válidas para filtrar.
var Actions = []string{
	ActionLogin, ActionLogout, ActionRefresh, ActionRegister,
	ActionChangePassword, ActionSetRole, ActionActivate, ActionDeactivate,
}

// ValidAction indica si a es una acción conocida.
func ValidAction(a string) bool {
	for _, x := range Actions {
		if x == a {
			return true
		}
	}
	return false
}

// SinkStore nombre del sink primario (ActivityRepository).
const SinkStore = "store"

// DefaultBudget tiempo máximo que Record retiene al caller.
const DefaultBudget = 2 * time.Second

// errorClass clase distintiva en logs para escrituras perdidas.
const errorClass = "audit_write_failure"

// Entry datos provistos por el caller; ID y CreatedAt los asigna el Recorder.
type Entry struct {
	Actor     string
	ActorRole string
	Action    string
	Target    string
	Success   bool
	Error     string
	IPAddress string
	UserAgent string
}

// Sink destino adicional (fan-out) de los registros.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec repository.ActivityRecord) error
}

type Deps struct {
	Store       repository.ActivityRepository
	Sinks       []Sink
	MaxAttempts int           // default 3
	Backoff     time.Duration // default 50ms, se duplica por intento
	Budget      time.Duration // default 2s, tope total de Record incluyendo sinks
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Recorder struct {
	store       repository.ActivityRepository
	sinks       []Sink
	maxAttempts int
	backoff     time.Duration
	budget      time.Duration
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

func NewRecorder(d Deps) *Recorder {
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 3
	}
	if d.Backoff <= 0 {
		d.Backoff = 50 * time.Millisecond
	}
	if d.Budget <= 0 {
		d.Budget = DefaultBudget
	}
	if d.Logger == nil {
		d.Logger = logger.L()
	}
	return &Recorder{
		store:       d.Store,
		sinks:       d.Sinks,
		maxAttempts: d.MaxAttempts,
		backoff:     d.Backoff,
		budget:      d.Budget,
		metrics:     d.Metrics,
		log:         d.Logger.With(logger.Component("audit")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Record persiste la entrada en el store y en cada sink. Los errores se
// reintentan; si se agotan se loguean y se cuentan, nunca se propagan.
// Todo el fan-out comparte un único presupuesto de tiempo.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	// la cancelación del request no debe perder el registro, pero un sink
	// colgado tampoco puede frenar al request más allá de budget
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.budget)
	defer cancel()

	rec := repository.ActivityRecord{
		ID:           uuid.NewString(),
		Actor:        e.Actor,
		ActorRole:    e.ActorRole,
		Action:       e.Action,
		Target:       e.Target,
		Result:       repository.ResultFailure,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		ErrorMessage: e.Error,
		CreatedAt:    r.now(),
	}
	if e.Success {
		rec.Result = repository.ResultSuccess
	}

	r.log.Info("activity",
		logger.Action(rec.Action),
		logger.UserID(rec.Actor),
		logger.Target(rec.Target),
		logger.String("result", rec.Result),
		logger.String("ip", rec.IPAddress),
	)
	r.metrics.AuditRecorded(rec.Action, rec.Result)

	if r.store != nil {
		r.write(ctx, SinkStore, rec, r.store.Append)
	}
	for _, s := range r.sinks {
		r.write(ctx, s.Name(), rec, s.Write)
	}
}

func (r *Recorder) write(ctx context.Context, sink string, rec repository.ActivityRecord, fn func(context.Context, repository.ActivityRecord) error) {
	wait := r.backoff
	var err error
retry:
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = fn(ctx, rec); err == nil {
			return
		}
		// un conflicto de id no se arregla reintentando
		if errors.Is(err, repository.ErrConflict) || attempt == r.maxAttempts {
			break
		}
		r.log.Debug("audit write retry", logger.String("sink", sink), logger.Attempt(attempt), logger.Err(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			err = ctx.Err()
			break retry
		case <-t.C:
		}
		wait *= 2
	}

	r.log.Error("audit write dropped",
		logger.ErrorClass(errorClass),
		logger.String("sink", sink),
		logger.String("activity_id", rec.ID),
		logger.Action(rec.Action),
		logger.UserID(rec.Actor),
		logger.Err(err),
	)
	r.metrics.AuditWriteFailed(sink)
}
