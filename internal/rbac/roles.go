// Package rbac es el punto único de decisión de autorización: una matriz
// (rol, operación) -> regla, independiente de HTTP.
package rbac

import (
	"errors"
	"fmt"
)

type Role string

const (
	SuperAdmin       Role = "super_admin"
	CompetitionAdmin Role = "competition_admin"
	Teacher          Role = "teacher"
	Student          Role = "student"
)

// Roles en orden de privilegio descendente.
var Roles = []Role{SuperAdmin, CompetitionAdmin, Teacher, Student}

type Operation string

const (
	ListUsers      Operation = "list-users"
	ViewUserDetail Operation = "view-user-detail"
	ViewSelf       Operation = "view-self"
	SetRole        Operation = "set-role"
	ActivateUser   Operation = "activate-user"
	ViewActivities Operation = "view-activities"
	CreateUser     Operation = "create-user"
	ChangePassword Operation = "change-password"
	DeactivateSelf Operation = "deactivate-self"
)

var Operations = []Operation{
	ListUsers, ViewUserDetail, ViewSelf, SetRole, ActivateUser,
	ViewActivities, CreateUser, ChangePassword, DeactivateSelf,
}

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownRole      = errors.New("unknown role")
	ErrUnknownOperation = errors.New("unknown operation")
)

func (r Role) Valid() bool {
	for _, x := range Roles {
		if x == r {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole valida contra el enum.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (o Operation) Valid() bool {
	for _, x := range Operations {
		if x == o {
			return true
		}
	}
	return false
}
