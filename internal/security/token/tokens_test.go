package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(RefreshTokenBytes)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(RefreshTokenBytes)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 43)
	require.True(t, LooksOpaque(a))
	require.False(t, LooksOpaque("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.sig"))
}

func TestSHA256Base64URL_Stable(t *testing.T) {
	require.Equal(t, SHA256Base64URL("abc"), SHA256Base64URL("abc"))
	require.Equal(t, "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0", SHA256Base64URL("abc"))
}
