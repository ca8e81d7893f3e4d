// Package dto cuerpos de request/response de la API y su validación de forma.
// Las reglas de negocio (política de contraseña, unicidad) viven en los servicios.
package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dropDatabas3/usersvc/internal/directory"
)

type LoginRequest struct {
	UserID   string `json:"userid"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
	)
}

type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *UserResponse `json:"user,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// LogoutRequest body opcional: si trae refresh_token también se revoca.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.NewPasswordConfirm, validation.Required, validation.By(equals(r.NewPassword, "passwords do not match"))),
	)
}

type RegisterRequest struct {
	UserID          string `json:"userid"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Role            string `json:"role"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.Match(directory.UserIDPattern).Error("must be 3-30 letters, digits, '_' or '-'")),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.PasswordConfirm, validation.Required, validation.By(equals(r.Password, "passwords do not match"))),
	)
}

// equals regla ozzo: el valor debe coincidir con want.
func equals(want, msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != want {
			return errors.New(msg)
		}
		return nil
	}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
