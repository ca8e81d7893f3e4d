package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

func TestUsers_CreateConflictAndLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.Users().Create(ctx, repository.CreateUserInput{UserID: "student01", PasswordHash: "h", Role: "student", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), u.ID)

	_, err = s.Users().Create(ctx, repository.CreateUserInput{UserID: "student01", PasswordHash: "x", Role: "teacher"})
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.Users().GetByUserID(ctx, "student01")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.Users().GetByID(ctx, 99)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers_ListFiltersByRole(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, in := range []repository.CreateUserInput{
		{UserID: "admin", Role: "super_admin", IsActive: true},
		{UserID: "teacher01", Role: "teacher", IsActive: true},
		{UserID: "student01", Role: "student", IsActive: true},
		{UserID: "student02", Role: "student", IsActive: false},
	} {
		_, err := s.Users().Create(ctx, in)
		require.NoError(t, err)
	}

	users, total, err := s.Users().List(ctx, repository.ListUsersFilter{Roles: []string{"student"}})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "student01", users[0].UserID)

	active := true
	_, total, err = s.Users().List(ctx, repository.ListUsersFilter{Active: &active})
	require.NoError(t, err)
	require.Equal(t, 3, total)

	users, total, err = s.Users().List(ctx, repository.ListUsersFilter{Limit: 1, Offset: 3})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, users, 1)
}

func TestUsers_MutateSerializes(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.Users().Create(ctx, repository.CreateUserInput{UserID: "t1", Role: "student", IsActive: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Users().Mutate(ctx, u.ID, func(x *repository.User) error {
				x.IsActive = i%2 == 0
				if i%3 == 0 {
					x.Role = "teacher"
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "teacher", got.Role)
}

func TestUsers_MutateErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.Users().Create(ctx, repository.CreateUserInput{UserID: "t1", Role: "student", IsActive: true})

	_, err := s.Users().Mutate(ctx, u.ID, func(x *repository.User) error {
		x.Role = "super_admin"
		return repository.ErrInvalidInput
	})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	got, _ := s.Users().GetByID(ctx, u.ID)
	require.Equal(t, "student", got.Role)
}

func TestSessions_RotateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()
	exp := time.Now().Add(time.Hour)
	_, err := s.Sessions().Create(ctx, repository.CreateSessionInput{ID: "s1", UserID: 1, TokenHash: "h1", IssuedAt: time.Now(), ExpiresAt: exp})
	require.NoError(t, err)

	require.NoError(t, s.Sessions().Rotate(ctx, "s1", "h1", "h2", time.Now()))
	require.ErrorIs(t, s.Sessions().Rotate(ctx, "s1", "h1", "h3", time.Now()), repository.ErrStaleToken)

	_, err = s.Sessions().GetByHash(ctx, "h1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	got, err := s.Sessions().GetByHash(ctx, "h2")
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(exp))

	require.NoError(t, s.Sessions().Revoke(ctx, "s1", time.Now()))
	require.NoError(t, s.Sessions().Revoke(ctx, "s1", time.Now()))
	require.ErrorIs(t, s.Sessions().Rotate(ctx, "s1", "h2", "h4", time.Now()), repository.ErrStaleToken)
}

func TestSessions_RevokeAllByUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, h := range []string{"a", "b", "c"} {
		uid := int64(1)
		if i == 2 {
			uid = 2
		}
		_, err := s.Sessions().Create(ctx, repository.CreateSessionInput{ID: h, UserID: uid, TokenHash: h, ExpiresAt: time.Now().Add(time.Hour)})
		require.NoError(t, err)
	}
	n, err := s.Sessions().RevokeAllByUser(ctx, 1, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.Sessions().RevokeAllByUser(ctx, 1, time.Now())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestActivities_NewestFirstAndFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()
	recs := []repository.ActivityRecord{
		{ID: "1", Actor: "student01", ActorRole: "student", Action: "login", Result: "success", CreatedAt: base},
		{ID: "2", Actor: "student01", ActorRole: "student", Action: "login", Result: "failure", CreatedAt: base.Add(time.Second)},
		{ID: "3", Actor: "teacher01", ActorRole: "teacher", Action: "logout", Result: "success", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range recs {
		require.NoError(t, s.Activities().Append(ctx, r))
	}

	all, total, err := s.Activities().List(ctx, repository.ActivityFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, "3", all[0].ID)

	mine, _, err := s.Activities().List(ctx, repository.ActivityFilter{Actor: "student01", Result: "failure"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "2", mine[0].ID)

	teachers, _, err := s.Activities().List(ctx, repository.ActivityFilter{ActorRoles: []string{"teacher"}})
	require.NoError(t, err)
	require.Len(t, teachers, 1)

	_, err = s.Activities().GetByID(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
