package dto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginRequest_Validate(t *testing.T) {
	require.NoError(t, LoginRequest{UserID: "admin", Password: "x"}.Validate())
	err := LoginRequest{UserID: "admin"}.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "password")
}

func TestRegisterRequest_Validate(t *testing.T) {
	ok := RegisterRequest{UserID: "student03", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass"}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.UserID = "x"
	require.Error(t, bad.Validate())

	mismatch := ok
	mismatch.PasswordConfirm = "nope"
	err := mismatch.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "password_confirm")
}

func TestChangePasswordRequest_Validate(t *testing.T) {
	r := ChangePasswordRequest{CurrentPassword: "a", NewPassword: "N3w!Passw0rd", NewPasswordConfirm: "N3w!Passw0rd"}
	require.NoError(t, r.Validate())
	r.NewPasswordConfirm = "x"
	require.Error(t, r.Validate())
}

func TestSetRoleRequest_Validate(t *testing.T) {
	require.Error(t, SetRoleRequest{}.Validate())
	require.NoError(t, SetRoleRequest{Role: "wizard"}.Validate())
}
