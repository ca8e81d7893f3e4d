// Package jwt firma y valida los access tokens (HS256).
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenUseAccess es el valor de token_use en access tokens.
const TokenUseAccess = "access"

var (
	ErrMalformed = errors.New("jwt: malformed token")
	ErrExpired   = errors.New("jwt: token expired")
	ErrInvalid   = errors.New("jwt: invalid token")
)

// AccessClaims payload del access token. sub = userid.
type AccessClaims struct {
	UID      int64  `json:"uid"`
	Role     string `json:"role"`
	SID      string `json:"sid"`
	TokenUse string `json:"token_use"`
	jwtv5.RegisteredClaims
}

// Issuer firma tokens con un secreto compartido.
type Issuer struct {
	Iss       string
	KeyID     string
	AccessTTL time.Duration

	secret []byte
	now    func() time.Time
}

func NewIssuer(iss, kid string, secret []byte, accessTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt: empty signing secret")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Issuer{Iss: iss, KeyID: kid, AccessTTL: accessTTL, secret: secret, now: time.Now}, nil
}

// Subject datos mínimos para emitir un access token.
type Subject struct {
	UserID    string
	ID        int64
	Role      string
	SessionID string
}

// IssueAccess emite un access token; retorna token, jti y expiración.
func (i *Issuer) IssueAccess(s Subject) (string, string, time.Time, error) {
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.AccessTTL)
	jti := uuid.NewString()

	claims := AccessClaims{
		UID:      s.ID,
		Role:     s.Role,
		SID:      s.SessionID,
		TokenUse: TokenUseAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   s.UserID,
			ID:        jti,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	if i.KeyID != "" {
		tk.Header["kid"] = i.KeyID
	}
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, jti, exp, nil
}

// Parse valida firma, alg, iss, exp/nbf y token_use. Distingue expirado del
// resto solo para logging; hacia afuera ambos son "token inválido".
func (i *Issuer) Parse(raw string) (*AccessClaims, error) {
	p := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithTimeFunc(i.now),
	)
	var claims AccessClaims
	_, err := p.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) { return i.secret, nil })
	switch {
	case err == nil:
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return nil, ErrMalformed
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.TokenUse != TokenUseAccess || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// ParseUnverified decodifica sin validar firma (solo para `usersctl token inspect`).
func ParseUnverified(raw string) (*AccessClaims, map[string]any, error) {
	var claims AccessClaims
	tk, _, err := jwtv5.NewParser().ParseUnverified(raw, &claims)
	if err != nil {
		return nil, nil, ErrMalformed
	}
	return &claims, tk.Header, nil
}
