package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type UserResponse struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"userid"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"is_active"`
	IsSystemAdmin bool       `json:"is_system_admin"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func UserFrom(u *repository.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:            u.ID,
		UserID:        u.UserID,
		Role:          u.Role,
		IsActive:      u.IsActive,
		IsSystemAdmin: u.IsSystemAdmin,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// ListResponse sobre paginado {count, results}.
type ListResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func UserList(users []repository.User, total int) ListResponse[*UserResponse] {
	out := make([]*UserResponse, 0, len(users))
	for i := range users {
		out = append(out, UserFrom(&users[i]))
	}
	return ListResponse[*UserResponse]{Count: total, Results: out}
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// Validate solo exige presencia: un rol fuera del enum es UNKNOWN_ROLE, no VALIDATION_ERROR.
func (r SetRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required),
	)
}
