package repository

import (
	"context"
	"time"
)

// Session es una sesión de refresh. El token crudo nunca se guarda,
// solo SHA256Base64URL(raw). Los access tokens la referencian vía sid.
type Session struct {
	ID         string
	UserID     int64
	UserLogin  string // userid del sujeto
	TokenHash  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

func (s *Session) Revoked() bool { return s.RevokedAt != nil }

func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

type CreateSessionInput struct {
	ID        string
	UserID    int64
	UserLogin string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type SessionRepository interface {
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByHash retorna ErrNotFound si ningún session tiene ese hash vigente.
	GetByHash(ctx context.Context, tokenHash string) (*Session, error)

	// Rotate reemplaza oldHash por newHash sin tocar expires_at.
	// Retorna ErrStaleToken si oldHash ya no es el vigente o la sesión fue revocada.
	Rotate(ctx context.Context, id, oldHash, newHash string, at time.Time) error

	// Revoke marca revoked_at. Idempotente: revocar dos veces no es error.
	Revoke(ctx context.Context, id string, at time.Time) error

	// RevokeAllByUser revoca las sesiones vivas del usuario y retorna cuántas.
	RevokeAllByUser(ctx context.Context, userID int64, at time.Time) (int, error)
}
