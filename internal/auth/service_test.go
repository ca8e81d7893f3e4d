package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	jwtx "github.com/dropDatabas3/usersvc/internal/jwt"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/store/memory"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	cache cache.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	iss, err := jwtx.NewIssuer("usersvc-test", "k1", []byte("test-secret-0123456789"), 15*time.Minute)
	require.NoError(t, err)
	c := cache.NewMemory("test:", 0)
	hasher := password.NewHasher(password.Fast)

	svc := NewService(Deps{
		Users:      st.Users(),
		Sessions:   st.Sessions(),
		Issuer:     iss,
		Hasher:     hasher,
		Cache:      c,
		Recorder:   audit.NewRecorder(audit.Deps{Store: st.Activities()}),
		RefreshTTL: time.Hour,
	})

	for _, u := range []struct {
		id, pwd, role string
		active        bool
	}{
		{"admin", "admin123", "super_admin", true},
		{"student01", "student123", "student", true},
		{"dormant", "student123", "student", false},
	} {
		h, err := hasher.Hash(u.pwd)
		require.NoError(t, err)
		_, err = st.Users().Create(context.Background(), repository.CreateUserInput{
			UserID: u.id, PasswordHash: h, Role: u.role, IsActive: u.active,
		})
		require.NoError(t, err)
	}
	return &fixture{svc: svc, store: st, cache: c}
}

func (f *fixture) activities(t *testing.T, action, result string) int {
	t.Helper()
	_, n, err := f.store.Activities().List(context.Background(), repository.ActivityFilter{Action: action, Result: result})
	require.NoError(t, err)
	return n
}

func TestLogin_SuccessAndValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "admin", "admin123", Meta{IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.True(t, len(pair.RefreshToken) > 0)
	require.Equal(t, TokenType, pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)

	p, err := f.svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", p.UserID)
	require.Equal(t, rbac.SuperAdmin, p.Role)

	u, err := f.store.Users().GetByUserID(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	require.Equal(t, 1, f.activities(t, audit.ActionLogin, repository.ResultSuccess))
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct{ user, pwd string }{
		{"admin", "wrong"},
		{"nobody", "admin123"},
		{"dormant", "student123"},
		{"", ""},
	}
	for _, c := range cases {
		_, err := f.svc.Login(ctx, c.user, c.pwd, Meta{})
		require.ErrorIs(t, err, ErrInvalidCredentials, c.user)
	}
	require.Equal(t, len(cases), f.activities(t, audit.ActionLogin, repository.ResultFailure))
	require.Equal(t, 0, f.activities(t, audit.ActionLogin, repository.ResultSuccess))
}

func TestLogin_NSuccessesNRecords(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(context.Background(), "student01", "student123", Meta{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.activities(t, audit.ActionLogin, repository.ResultSuccess))
}

func TestValidate_RejectsGarbage(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := f.svc.Validate(context.Background(), raw)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestValidate_RoleComesFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	_, err = f.store.Users().Mutate(ctx, pair.User.ID, func(u *repository.User) error {
		u.Role = string(rbac.Teacher)
		return nil
	})
	require.NoError(t, err)

	p, err := f.svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, rbac.Teacher, p.Role)
}

func TestValidate_InactiveUserRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	_, err = f.store.Users().Mutate(ctx, pair.User.ID, func(u *repository.User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, Meta{})
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogout_AccessTokenIsRevokedAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "admin", "admin123", Meta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.AccessToken, Meta{}))
	_, err = f.svc.Validate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// la sesión también cayó: el refresh no sirve
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, Meta{})
	require.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, f.svc.Logout(ctx, pair.AccessToken, Meta{}))
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken, Meta{}))
}

func TestLogout_RefreshTokenRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "admin", "admin123", Meta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken, Meta{}))
	_, err = f.svc.Validate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.Equal(t, 1, f.activities(t, audit.ActionLogout, repository.ResultSuccess))
}

func TestLogout_BadSignature(t *testing.T) {
	f := newFixture(t)
	other, err := jwtx.NewIssuer("usersvc-test", "k1", []byte("another-secret-xxxxxxxx"), time.Minute)
	require.NoError(t, err)
	forged, _, _, err := other.IssueAccess(jwtx.Subject{UserID: "admin", ID: 1, Role: "super_admin", SessionID: "x"})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Logout(context.Background(), forged, Meta{}), ErrTokenInvalid)
	_, err = f.svc.Validate(context.Background(), forged)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefresh_RotatesWithoutExtendingLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken, Meta{})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.True(t, next.RefreshExpiresAt.Equal(pair.RefreshExpiresAt))

	// el token viejo ya no rota
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, Meta{})
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = f.svc.Validate(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, 1, f.activities(t, audit.ActionRefresh, repository.ResultSuccess))
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	tp, err := f.svc.Refresh(ctx, pair.RefreshToken, Meta{})
	require.ErrorIs(t, err, ErrTokenExpired)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.Nil(t, tp)
}

func TestRefresh_ConcurrentRotationSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(ctx, pair.RefreshToken, Meta{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrTokenInvalid)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestRevokeAllForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)
	b, err := f.svc.Login(ctx, "student01", "student123", Meta{})
	require.NoError(t, err)

	n, err := f.svc.RevokeAllForUser(ctx, a.User.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, tok := range []string{a.AccessToken, b.AccessToken} {
		_, err := f.svc.Validate(ctx, tok)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

// ctxUsers falla como un driver real cuando el ctx ya terminó.
type ctxUsers struct{ repository.UserRepository }

func (u ctxUsers) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.UserRepository.GetByID(ctx, id)
}

func TestLookupUser_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Users = ctxUsers{f.store.Users()}
	admin, err := f.store.Users().GetByUserID(context.Background(), "admin")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u, err := f.svc.lookupUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.UserID)
}
