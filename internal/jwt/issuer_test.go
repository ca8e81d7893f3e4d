package jwt

import (
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer("user-service", "k1", []byte("0123456789abcdef0123456789abcdef"), time.Minute)
	require.NoError(t, err)
	return iss
}

func TestIssueAndParse(t *testing.T) {
	iss := newTestIssuer(t)
	raw, jti, exp, err := iss.IssueAccess(Subject{UserID: "admin", ID: 1, Role: "super_admin", SessionID: "s-1"})
	require.NoError(t, err)
	require.NotEmpty(t, jti)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	c, err := iss.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "admin", c.Subject)
	require.Equal(t, int64(1), c.UID)
	require.Equal(t, "super_admin", c.Role)
	require.Equal(t, "s-1", c.SID)
	require.Equal(t, jti, c.ID)

	_, hdr, err := ParseUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "k1", hdr["kid"])
}

func TestParse_Expired(t *testing.T) {
	iss := newTestIssuer(t)
	past := time.Now().Add(-time.Hour)
	iss.now = func() time.Time { return past }
	raw, _, _, err := iss.IssueAccess(Subject{UserID: "u", ID: 2, Role: "student", SessionID: "s"})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestParse_Rejections(t *testing.T) {
	iss := newTestIssuer(t)
	raw, _, _, err := iss.IssueAccess(Subject{UserID: "u", ID: 2, Role: "student", SessionID: "s"})
	require.NoError(t, err)

	_, err = iss.Parse("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformed)

	// firma alterada
	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	_, err = iss.Parse(tampered)
	require.Error(t, err)

	// otro secreto
	other, _ := NewIssuer("user-service", "", []byte("another-secret-another-secret-xx"), time.Minute)
	_, err = other.Parse(raw)
	require.ErrorIs(t, err, ErrInvalid)

	// otro issuer
	foreign, _ := NewIssuer("someone-else", "", []byte("0123456789abcdef0123456789abcdef"), time.Minute)
	_, err = foreign.Parse(raw)
	require.ErrorIs(t, err, ErrInvalid)

	// alg none
	none := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, AccessClaims{TokenUse: TokenUseAccess})
	s, err := none.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(s)
	require.Error(t, err)
}

func TestParse_WrongTokenUse(t *testing.T) {
	iss := newTestIssuer(t)
	now := time.Now()
	claims := AccessClaims{
		TokenUse: "refresh",
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer: "user-service", Subject: "u", ID: "j",
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(time.Minute)),
		},
	}
	s, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	_, err = iss.Parse(s)
	require.ErrorIs(t, err, ErrInvalid)
}
