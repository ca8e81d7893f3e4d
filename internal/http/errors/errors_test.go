package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/rbac"
)

func TestWriteError_AppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ErrValidation.WithDetail("userid: invalid_format"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body["code"])
	require.Equal(t, "userid: invalid_format", body["detail"])
	require.Empty(t, ErrValidation.Detail, "predefined error must not be mutated")
}

func TestWriteError_UnknownErrorHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("pg: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
	require.Contains(t, rr.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestWriteError_UnauthorizedChallenge(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ErrTokenInvalid)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestFromDomain(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{auth.ErrInvalidCredentials, "INVALID_CREDENTIALS"},
		{auth.ErrTokenExpired, "TOKEN_INVALID"},
		{auth.ErrTokenRevoked, "TOKEN_INVALID"},
		{rbac.ErrPermissionDenied, "PERMISSION_DENIED"},
		{directory.ErrSystemAdminProtected, "SYSTEM_ADMIN_PROTECTION"},
		{fmt.Errorf("wrap: %w", rbac.ErrUnknownRole), "UNKNOWN_ROLE"},
		{repository.ErrNotFound, "NOT_FOUND"},
		{repository.ErrConflict, "CONFLICT"},
		{&directory.ValidationError{Field: "password", Reasons: []string{"too_short"}}, "VALIDATION_ERROR"},
		{fmt.Errorf("boom"), "INTERNAL_SERVER_ERROR"},
	}
	for _, c := range cases {
		require.Equal(t, c.code, FromDomain(c.err).Code, c.err.Error())
	}
	require.Nil(t, FromDomain(nil))
}
