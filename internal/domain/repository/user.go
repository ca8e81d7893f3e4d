package repository

import (
	"context"
	"time"
)

// User es la identidad almacenada. Nunca se borra: se desactiva.
type User struct {
	ID            int64
	UserID        string
	PasswordHash  string
	Role          string
	IsActive      bool
	IsSystemAdmin bool
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateUserInput struct {
	UserID        string
	PasswordHash  string
	Role          string
	IsActive      bool
	IsSystemAdmin bool
}

// ListUsersFilter opciones para listar usuarios.
type ListUsersFilter struct {
	Roles  []string // vacío = todos
	Active *bool
	Limit  int // Default 50, max 200
	Offset int
}

// UserMutation modifica el usuario dentro de la transacción de Mutate.
// Si retorna error la transacción se descarta.
type UserMutation func(u *User) error

type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUserID busca por userid (case-sensitive).
	GetByUserID(ctx context.Context, userID string) (*User, error)

	// List retorna la página pedida y el total que matchea el filtro.
	List(ctx context.Context, filter ListUsersFilter) ([]User, int, error)

	// Create retorna ErrConflict si el userid ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// Mutate lee la fila con lock exclusivo, aplica fn y persiste role/is_active.
	// Dos Mutate concurrentes sobre el mismo id se serializan.
	Mutate(ctx context.Context, id int64, fn UserMutation) (*User, error)

	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
