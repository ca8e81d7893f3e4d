package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatrix_IsTotalAndDeterministic(t *testing.T) {
	g := Default()
	for _, role := range Roles {
		for _, op := range Operations {
			first := g.Authorize(role, op)
			for i := 0; i < 3; i++ {
				require.Equal(t, first, g.Authorize(role, op), "%s/%s", role, op)
			}
			if first != nil {
				require.ErrorIs(t, first, ErrPermissionDenied)
			}
		}
	}
}

func TestDefaultMatrix_Rules(t *testing.T) {
	g := Default()
	cases := []struct {
		role   Role
		op     Operation
		target Role
		allow  bool
	}{
		{SuperAdmin, SetRole, SuperAdmin, true},
		{SuperAdmin, ViewActivities, "", true},
		{SuperAdmin, CreateUser, "", true},

		{CompetitionAdmin, ListUsers, "", true},
		{CompetitionAdmin, ViewUserDetail, SuperAdmin, true},
		{CompetitionAdmin, SetRole, Student, true},
		{CompetitionAdmin, SetRole, SuperAdmin, false},
		{CompetitionAdmin, ActivateUser, Teacher, true},
		{CompetitionAdmin, ViewActivities, "", true},
		{CompetitionAdmin, CreateUser, "", false},

		{Teacher, ViewUserDetail, Student, true},
		{Teacher, ViewUserDetail, Teacher, false},
		{Teacher, ViewUserDetail, CompetitionAdmin, false},
		{Teacher, ViewSelf, "", true},
		{Teacher, SetRole, Student, false},
		{Teacher, ActivateUser, Student, false},
		{Teacher, ViewActivities, "", false},

		{Student, ViewSelf, "", true},
		{Student, ListUsers, "", false},
		{Student, ViewUserDetail, Student, false},
		{Student, SetRole, Student, false},
		{Student, ActivateUser, Student, false},
		{Student, ViewActivities, "", false},
	}
	for _, c := range cases {
		var err error
		if c.target == "" {
			err = g.Authorize(c.role, c.op)
		} else {
			err = g.Authorize(c.role, c.op, c.target)
		}
		if c.allow {
			require.NoError(t, err, "%s %s %s", c.role, c.op, c.target)
		} else {
			require.ErrorIs(t, err, ErrPermissionDenied, "%s %s %s", c.role, c.op, c.target)
		}
	}
}

func TestAuthorize_UnknownRole(t *testing.T) {
	g := Default()
	require.ErrorIs(t, g.Authorize("root", ListUsers), ErrUnknownRole)
	require.ErrorIs(t, g.Authorize(SuperAdmin, ViewUserDetail, "janitor"), ErrUnknownRole)
	require.ErrorIs(t, g.Authorize(SuperAdmin, "drop-database"), ErrUnknownOperation)
	_, err := ParseRole("Super_Admin")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestAuthorizeRoleChange_NoElevationToSuperAdmin(t *testing.T) {
	g := Default()
	for _, caller := range Roles {
		for _, current := range Roles {
			err := g.AuthorizeRoleChange(caller, current, SuperAdmin)
			if caller == SuperAdmin {
				require.NoError(t, err)
				continue
			}
			require.ErrorIs(t, err, ErrPermissionDenied, "%s elevating %s", caller, current)
		}
	}
	require.NoError(t, g.AuthorizeRoleChange(CompetitionAdmin, Student, Teacher))
	require.ErrorIs(t, g.AuthorizeRoleChange(CompetitionAdmin, Student, "wizard"), ErrUnknownRole)
}

func TestAuthorizeRoleChange_InvariantSurvivesPermissiveConfig(t *testing.T) {
	m := DefaultMatrix()
	require.NoError(t, m.Apply(Overrides{
		"student": {"set-role": {Allow: true}},
	}))
	g, err := NewGuard(m)
	require.NoError(t, err)

	require.NoError(t, g.AuthorizeRoleChange(Student, Student, Teacher))
	require.ErrorIs(t, g.AuthorizeRoleChange(Student, Student, SuperAdmin), ErrPermissionDenied)
}

func TestVisibility(t *testing.T) {
	g := Default()

	s, err := g.Visibility(SuperAdmin, ListUsers)
	require.NoError(t, err)
	require.True(t, s.All)

	s, _ = g.Visibility(Teacher, ListUsers)
	require.False(t, s.All)
	require.Equal(t, []string{"student"}, s.RoleStrings())

	s, _ = g.Visibility(Student, ListUsers)
	require.True(t, s.Self)

	s, _ = g.Visibility(Teacher, ViewActivities)
	require.True(t, s.Self)
}

func TestOverrides_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rbac.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
teacher:
  view-activities:
    allow: true
    targets: [student, teacher]
  list-users:
    allow: false
`), 0o600))

	o, err := LoadOverridesFile(path)
	require.NoError(t, err)
	m := DefaultMatrix()
	require.NoError(t, m.Apply(o))
	g, err := NewGuard(m)
	require.NoError(t, err)

	s, _ := g.Visibility(Teacher, ViewActivities)
	require.Equal(t, []string{"student", "teacher"}, s.RoleStrings())
	require.ErrorIs(t, g.Authorize(Teacher, ListUsers), ErrPermissionDenied)
}

func TestOverrides_RejectTypos(t *testing.T) {
	m := DefaultMatrix()
	require.ErrorIs(t, m.Apply(Overrides{"teachr": {"list-users": {Allow: true}}}), ErrUnknownRole)
	require.ErrorIs(t, m.Apply(Overrides{"teacher": {"list-user": {Allow: true}}}), ErrUnknownOperation)
	require.ErrorIs(t, m.Apply(Overrides{"teacher": {"list-users": {Allow: true, Targets: []string{"pupil"}}}}), ErrUnknownRole)
}
