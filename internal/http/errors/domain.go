package errors

import (
	stderrors "errors"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/rbac"
)

// FromDomain traduce errores de servicio a la taxonomía de la API. Lo no
// reconocido es 500 y conserva la causa solo para el log.
func FromDomain(err error) *AppError {
	var ve *directory.ValidationError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &ve):
		return ErrValidation.WithDetail(ve.Error())
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case stderrors.Is(err, auth.ErrTokenInvalid):
		return ErrTokenInvalid
	case stderrors.Is(err, rbac.ErrPermissionDenied):
		return ErrPermissionDenied
	case stderrors.Is(err, directory.ErrSystemAdminProtected):
		return ErrSystemAdminProtection
	case stderrors.Is(err, rbac.ErrUnknownRole):
		return ErrUnknownRole
	case stderrors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case stderrors.Is(err, repository.ErrConflict):
		return ErrConflict.WithDetail("userid already registered")
	default:
		return ErrInternalServerError.WithCause(err)
	}
}
