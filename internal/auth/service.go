// Package auth emite, rota, valida y revoca los tokens del servicio.
//
// Access token: JWT corto (HS256) que referencia una sesión (sid).
// Refresh token: opaco, se guarda hasheado en la sesión y rota en cada uso
// sin extender la expiración original.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/usersvc/internal/audit"
	"github.com/dropDatabas3/usersvc/internal/cache"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	jwtx "github.com/dropDatabas3/usersvc/internal/jwt"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	tokens "github.com/dropDatabas3/usersvc/internal/security/token"
)

// TokenType valor de token_type en las respuestas.
const TokenType = "Bearer"

const revokedJTIPrefix = "revoked:jti:"

// Errores del emisor. Expired y Revoked envuelven ErrTokenInvalid: hacia
// afuera son el mismo error, adentro sirven para logs y métricas.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenRevoked       = fmt.Errorf("%w: revoked", ErrTokenInvalid)
)

// Meta datos del request que terminan en el registro de actividad.
type Meta struct {
	IP        string
	UserAgent string
}

// TokenPair resultado de Login y Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64 // segundos de vida del access token
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             *repository.User
}

// Principal identidad resuelta de un access token válido.
// Role es el rol almacenado al momento de validar, no el del token.
type Principal struct {
	UserID    string
	ID        int64
	Role      rbac.Role
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

type Deps struct {
	Users      repository.UserRepository
	Sessions   repository.SessionRepository
	Issuer     *jwtx.Issuer
	Hasher     *password.Hasher
	Cache      cache.Client // lista de revocación de jti
	Recorder   *audit.Recorder
	Metrics    *metrics.Metrics
	RefreshTTL time.Duration
}

type Service struct {
	deps Deps
	now  func() time.Time
	sf   singleflight.Group
}

func NewService(deps Deps) *Service {
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = 7 * 24 * time.Hour
	}
	if deps.Hasher == nil {
		deps.Hasher = password.NewHasher(password.Default)
	}
	return &Service{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Login valida credenciales y abre una sesión. Usuario inexistente, password
// incorrecta y cuenta inactiva producen el mismo ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, userID, plain string, meta Meta) (*TokenPair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("Login"),
	)

	userID = strings.TrimSpace(userID)
	fail := func(reason string, role string) (*TokenPair, error) {
		log.Info("login failed", logger.UserID(userID), logger.String("reason", reason))
		s.deps.Metrics.AuthEvent("login", repository.ResultFailure)
		s.deps.Recorder.Record(ctx, audit.Entry{
			Actor: userID, ActorRole: role, Action: audit.ActionLogin,
			Error: "invalid credentials", IPAddress: meta.IP, UserAgent: meta.UserAgent,
		})
		return nil, ErrInvalidCredentials
	}

	// 1. Campos requeridos
	if userID == "" || plain == "" {
		return fail("missing_fields", "")
	}

	// 2. Buscar usuario; si no existe igual pagamos el costo del hash
	u, err := s.deps.Users.GetByUserID(ctx, userID)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("user lookup failed", logger.Err(err))
			return nil, fmt.Errorf("auth: lookup user: %w", err)
		}
		s.deps.Hasher.VerifyDummy(plain)
		return fail("unknown_user", "")
	}

	// 3. Password, después estado (para no filtrar cuentas inactivas)
	if !s.deps.Hasher.Verify(plain, u.PasswordHash) {
		return fail("bad_password", u.Role)
	}
	if !u.IsActive {
		return fail("inactive", u.Role)
	}

	// 4. Sesión + tokens
	pair, err := s.openSession(ctx, u)
	if err != nil {
		log.Error("session issue failed", logger.UserID(u.UserID), logger.Err(err))
		return nil, err
	}

	if err := s.deps.Users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		log.Warn("touch last_login failed", logger.Err(err))
	}

	s.deps.Metrics.AuthEvent("login", repository.ResultSuccess)
	s.deps.Recorder.Record(ctx, audit.Entry{
		Actor: u.UserID, ActorRole: u.Role, Action: audit.ActionLogin, Success: true,
		IPAddress: meta.IP, UserAgent: meta.UserAgent,
	})
	log.Info("login ok", logger.UserID(u.UserID), logger.Role(u.Role))
	return pair, nil
}

func (s *Service) openSession(ctx context.Context, u *repository.User) (*TokenPair, error) {
	raw, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("auth: generate refresh: %w", err)
	}
	now := s.now()
	sess, err := s.deps.Sessions.Create(ctx, repository.CreateSessionInput{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		UserLogin: u.UserID,
		TokenHash: tokens.SHA256Base64URL(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.deps.RefreshTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	return s.issuePair(u, sess, raw)
}

func (s *Service) issuePair(u *repository.User, sess *repository.Session, raw string) (*TokenPair, error) {
	access, _, exp, err := s.deps.Issuer.IssueAccess(jwtx.Subject{
		UserID:    u.UserID,
		ID:        u.ID,
		Role:      u.Role,
		SessionID: sess.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: issue access: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		TokenType:        TokenType,
		ExpiresIn:        int64(s.deps.Issuer.AccessTTL.Seconds()),
		AccessExpiresAt:  exp,
		RefreshExpiresAt: sess.ExpiresAt,
		User:             u,
	}, nil
}

// Refresh rota el refresh token: el presentado queda inutilizable y el nuevo
// hereda el mismo expires_at de la sesión.
func (s *Service) Refresh(ctx context.Context, raw string, meta Meta) (*TokenPair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.refresh"),
		logger.Op("Refresh"),
	)

	raw = strings.TrimSpace(raw)
	if !tokens.LooksOpaque(raw) {
		s.deps.Metrics.AuthEvent("refresh", repository.ResultFailure)
		return nil, ErrTokenInvalid
	}
	oldHash := tokens.SHA256Base64URL(raw)

	// 1. Resolver sesión por hash vigente
	sess, err := s.deps.Sessions.GetByHash(ctx, oldHash)
	if err != nil {
		if repository.IsNotFound(err) {
			s.deps.Metrics.AuthEvent("refresh", repository.ResultFailure)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: get session: %w", err)
	}
	log = log.With(logger.SessionID(sess.ID), logger.UserID(sess.UserLogin))

	reject := func(e error) (*TokenPair, error) {
		log.Info("refresh rejected", logger.Err(e))
		s.deps.Metrics.AuthEvent("refresh", repository.ResultFailure)
		s.deps.Recorder.Record(ctx, audit.Entry{
			Actor: sess.UserLogin, Action: audit.ActionRefresh,
			Error: e.Error(), IPAddress: meta.IP, UserAgent: meta.UserAgent,
		})
		return nil, e
	}

	// 2. Estado de la sesión
	now := s.now()
	if sess.Revoked() {
		return reject(ErrTokenRevoked)
	}
	if sess.Expired(now) {
		return reject(ErrTokenExpired)
	}

	// 3. Usuario activo
	u, err := s.deps.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return reject(ErrTokenInvalid)
		}
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	if !u.IsActive {
		return reject(ErrTokenInvalid)
	}

	// 4. Rotación CAS
	next, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("auth: generate refresh: %w", err)
	}
	if err := s.deps.Sessions.Rotate(ctx, sess.ID, oldHash, tokens.SHA256Base64URL(next), now); err != nil {
		if errors.Is(err, repository.ErrStaleToken) {
			// otro request rotó primero
			return reject(ErrTokenInvalid)
		}
		return nil, fmt.Errorf("auth: rotate: %w", err)
	}

	pair, err := s.issuePair(u, sess, next)
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.AuthEvent("refresh", repository.ResultSuccess)
	s.deps.Recorder.Record(ctx, audit.Entry{
		Actor: u.UserID, ActorRole: u.Role, Action: audit.ActionRefresh, Success: true,
		IPAddress: meta.IP, UserAgent: meta.UserAgent,
	})
	log.Debug("refresh rotated")
	return pair, nil
}

// Logout revoca la sesión del token presentado (access o refresh). Con un
// access token además pone su jti en la lista de revocación hasta que expire.
// Idempotente.
func (s *Service) Logout(ctx context.Context, raw string, meta Meta) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("Logout"),
	)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrTokenInvalid
	}
	now := s.now()

	var (
		sid   string
		actor string
		role  string
	)
	if tokens.LooksOpaque(raw) {
		sess, err := s.deps.Sessions.GetByHash(ctx, tokens.SHA256Base64URL(raw))
		if err != nil {
			if repository.IsNotFound(err) {
				log.Debug("refresh token not found, treating as already revoked")
				return nil
			}
			return fmt.Errorf("auth: get session: %w", err)
		}
		sid, actor = sess.ID, sess.UserLogin
	} else {
		claims, err := s.deps.Issuer.Parse(raw)
		if err != nil {
			if errors.Is(err, jwtx.ErrExpired) {
				// ya no sirve para nada; nada que revocar
				return nil
			}
			return ErrTokenInvalid
		}
		if ttl := claims.ExpiresAt.Time.Sub(now); ttl > 0 {
			if err := s.deps.Cache.Set(ctx, revokedJTIPrefix+claims.ID, claims.Subject, ttl); err != nil {
				return fmt.Errorf("auth: denylist jti: %w", err)
			}
		}
		sid, actor, role = claims.SID, claims.Subject, claims.Role
	}

	if sid != "" {
		if err := s.deps.Sessions.Revoke(ctx, sid, now); err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("auth: revoke session: %w", err)
		}
	}

	s.deps.Metrics.AuthEvent("logout", repository.ResultSuccess)
	s.deps.Recorder.Record(ctx, audit.Entry{
		Actor: actor, ActorRole: role, Action: audit.ActionLogout, Success: true,
		IPAddress: meta.IP, UserAgent: meta.UserAgent,
	})
	log.Info("logout", logger.UserID(actor), logger.SessionID(sid))
	return nil
}

// Validate resuelve un access token. Cualquier rechazo satisface
// errors.Is(err, ErrTokenInvalid); otros errores son fallas de infraestructura.
func (s *Service) Validate(ctx context.Context, raw string) (*Principal, error) {
	// 1. Firma, alg, iss, exp, token_use
	claims, err := s.deps.Issuer.Parse(strings.TrimSpace(raw))
	if err != nil {
		s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	// 2. Lista de revocación
	revoked, err := s.deps.Cache.Exists(ctx, revokedJTIPrefix+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: revocation check: %w", err)
	}
	if revoked {
		s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
		return nil, ErrTokenRevoked
	}

	// 3. Sesión viva
	sess, err := s.deps.Sessions.GetByID(ctx, claims.SID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: get session: %w", err)
	}
	if sess.Revoked() {
		s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
		return nil, ErrTokenRevoked
	}

	// 4. Usuario existente y activo, con su rol actual
	u, err := s.lookupUser(ctx, claims.UID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	if !u.IsActive || u.UserID != claims.Subject || sess.UserID != u.ID {
		s.deps.Metrics.AuthEvent("validate", repository.ResultFailure)
		return nil, ErrTokenInvalid
	}

	return &Principal{
		UserID:    u.UserID,
		ID:        u.ID,
		Role:      rbac.Role(u.Role),
		SessionID: sess.ID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// lookupUser agrupa lecturas concurrentes del mismo usuario.
func (s *Service) lookupUser(ctx context.Context, id int64) (*repository.User, error) {
	v, err, _ := s.sf.Do(strconv.FormatInt(id, 10), func() (any, error) {
		// la lectura compartida no depende del request que la disparó
		return s.deps.Users.GetByID(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.User), nil
}

// RevokeAllForUser revoca todas las sesiones del usuario. Los access tokens
// emitidos quedan inválidos porque su sesión ya no está viva.
func (s *Service) RevokeAllForUser(ctx context.Context, id int64) (int, error) {
	n, err := s.deps.Sessions.RevokeAllByUser(ctx, id, s.now())
	if err != nil {
		return 0, fmt.Errorf("auth: revoke all: %w", err)
	}
	logger.From(ctx).Info("sessions revoked",
		logger.Component("auth"), logger.Op("RevokeAllForUser"),
		logger.Int("user_id", int(id)), logger.Count(n))
	return n, nil
}

// VerifyPassword compara plain contra el hash de u. Lo usa change-password.
func (s *Service) VerifyPassword(u *repository.User, plain string) bool {
	return s.deps.Hasher.Verify(plain, u.PasswordHash)
}

// HashPassword hashea con los parámetros del servicio.
func (s *Service) HashPassword(plain string) (string, error) {
	return s.deps.Hasher.Hash(plain)
}
