package repository

import (
	"context"
	"time"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ActivityRecord entrada append-only de auditoría.
type ActivityRecord struct {
	ID           string
	Actor        string // userid del actor (o el intentado, en logins fallidos)
	ActorRole    string // snapshot del rol al momento de la acción; vacío si desconocido
	Action       string
	Target       string // userid afectado, opcional
	Result       string
	IPAddress    string
	UserAgent    string
	ErrorMessage string
	CreatedAt    time.Time
}

type ActivityFilter struct {
	Actor      string   // exacto; vacío = cualquiera
	ActorRoles []string // vacío = cualquiera
	Action     string
	Result     string
	Limit      int
	Offset     int
}

type ActivityRepository interface {
	Append(ctx context.Context, rec ActivityRecord) error

	// List ordena por created_at DESC.
	List(ctx context.Context, filter ActivityFilter) ([]ActivityRecord, int, error)

	GetByID(ctx context.Context, id string) (*ActivityRecord, error)
}
