// Package memory implementa los repositorios en memoria. Cada operación es
// atómica bajo un único mutex, equivalente a una transacción serializable;
// se usa en tests y en modo single-process (storage.driver=memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
)

type Store struct {
	mu sync.Mutex

	nextID     int64
	users      map[int64]*repository.User
	byLogin    map[string]int64
	sessions   map[string]*repository.Session
	byHash     map[string]string
	activities []repository.ActivityRecord

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    map[int64]*repository.User{},
		byLogin:  map[string]int64{},
		sessions: map[string]*repository.Session{},
		byHash:   map[string]string{},
		now:      time.Now,
	}
}

func (s *Store) Users() repository.UserRepository           { return (*userRepo)(s) }
func (s *Store) Sessions() repository.SessionRepository     { return (*sessionRepo)(s) }
func (s *Store) Activities() repository.ActivityRepository { return (*activityRepo)(s) }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ─── UserRepository ───

type userRepo Store

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByUserID(_ context.Context, userID string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byLogin[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *userRepo) List(_ context.Context, f repository.ListUsersFilter) ([]repository.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []repository.User
	for _, u := range r.users {
		if len(f.Roles) > 0 && !contains(f.Roles, u.Role) {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		all = append(all, *cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byLogin[in.UserID]; dup {
		return nil, repository.ErrConflict
	}
	r.nextID++
	now := r.now()
	u := &repository.User{
		ID:            r.nextID,
		UserID:        in.UserID,
		PasswordHash:  in.PasswordHash,
		Role:          in.Role,
		IsActive:      in.IsActive,
		IsSystemAdmin: in.IsSystemAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.users[u.ID] = u
	r.byLogin[u.UserID] = u.ID
	return cloneUser(u), nil
}

func (r *userRepo) Mutate(_ context.Context, id int64, fn repository.UserMutation) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	work := cloneUser(u)
	if err := fn(work); err != nil {
		return nil, err
	}
	// solo role / is_active son mutables por esta vía
	u.Role = work.Role
	u.IsActive = work.IsActive
	u.UpdatedAt = r.now()
	return cloneUser(u), nil
}

func (r *userRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.now()
	return nil
}

func (r *userRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		t := at
		u.LastLogin = &t
	}
	return nil
}

// ─── SessionRepository ───

type sessionRepo Store

func cloneSession(s *repository.Session) *repository.Session {
	cp := *s
	return &cp
}

func (r *sessionRepo) Create(_ context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sessions[in.ID]; dup {
		return nil, repository.ErrConflict
	}
	if _, dup := r.byHash[in.TokenHash]; dup {
		return nil, repository.ErrConflict
	}
	s := &repository.Session{
		ID:        in.ID,
		UserID:    in.UserID,
		UserLogin: in.UserLogin,
		TokenHash: in.TokenHash,
		IssuedAt:  in.IssuedAt,
		ExpiresAt: in.ExpiresAt,
	}
	r.sessions[s.ID] = s
	r.byHash[s.TokenHash] = s.ID
	return cloneSession(s), nil
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(s), nil
}

func (r *sessionRepo) GetByHash(_ context.Context, tokenHash string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(r.sessions[id]), nil
}

func (r *sessionRepo) Rotate(_ context.Context, id, oldHash, newHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.TokenHash != oldHash || s.RevokedAt != nil {
		return repository.ErrStaleToken
	}
	delete(r.byHash, oldHash)
	s.TokenHash = newHash
	t := at
	s.LastUsedAt = &t
	r.byHash[newHash] = id
	return nil
}

func (r *sessionRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

func (r *sessionRepo) RevokeAllByUser(_ context.Context, userID int64, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

// ─── ActivityRepository ───

type activityRepo Store

func (r *activityRepo) Append(_ context.Context, a repository.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	r.activities = append(r.activities, a)
	return nil
}

func (r *activityRepo) List(_ context.Context, f repository.ActivityFilter) ([]repository.ActivityRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.ActivityRecord, 0)
	// más reciente primero; a igual timestamp, el último insertado primero
	for i := len(r.activities) - 1; i >= 0; i-- {
		a := r.activities[i]
		if f.Actor != "" && a.Actor != f.Actor {
			continue
		}
		if len(f.ActorRoles) > 0 && !contains(f.ActorRoles, a.ActorRole) {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		if f.Result != "" && a.Result != f.Result {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *activityRepo) GetByID(_ context.Context, id string) (*repository.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.activities {
		if r.activities[i].ID == id {
			a := r.activities[i]
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}
