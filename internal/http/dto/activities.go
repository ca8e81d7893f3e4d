package dto

import (
	"time"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type ActivityResponse struct {
	ID           string    `json:"id"`
	Actor        string    `json:"actor"`
	ActorRole    string    `json:"actor_role,omitempty"`
	Action       string    `json:"action"`
	Target       string    `json:"target,omitempty"`
	Result       string    `json:"result"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func ActivityFrom(a *repository.ActivityRecord) *ActivityResponse {
	return &ActivityResponse{
		ID:           a.ID,
		Actor:        a.Actor,
		ActorRole:    a.ActorRole,
		Action:       a.Action,
		Target:       a.Target,
		Result:       a.Result,
		IPAddress:    a.IPAddress,
		UserAgent:    a.UserAgent,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
	}
}

func ActivityList(recs []repository.ActivityRecord, total int) ListResponse[*ActivityResponse] {
	out := make([]*ActivityResponse, 0, len(recs))
	for i := range recs {
		out = append(out, ActivityFrom(&recs[i]))
	}
	return ListResponse[*ActivityResponse]{Count: total, Results: out}
}
