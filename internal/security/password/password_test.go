package password

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify_Argon2id(t *testing.T) {
	h, err := Hash(Fast, "TestPass123!")
	require.NoError(t, err)
	require.Contains(t, h, "$argon2id$v=19$")
	require.True(t, Verify("TestPass123!", h))
	require.False(t, Verify("TestPass123?", h))

	_, err = Hash(Fast, "")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestVerify_Bcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, Verify("admin123", string(b)))
	require.False(t, Verify("admin1234", string(b)))
}

func TestVerify_Garbage(t *testing.T) {
	require.False(t, Verify("x", ""))
	require.False(t, Verify("x", "$argon2id$v=19$broken"))
	require.False(t, Verify("x", "pbkdf2_sha256$..."))
}

func TestHasher_Dummy(t *testing.T) {
	h := NewHasher(Fast)
	h.VerifyDummy("anything")
	enc, err := h.Hash("secret-Value1")
	require.NoError(t, err)
	require.True(t, h.Verify("secret-Value1", enc))
}

func TestPolicy(t *testing.T) {
	bl, err := LoadBlacklist("")
	require.NoError(t, err)
	p := Policy{MinLength: 8, MaxLength: 128, RequireUpper: true, RequireLower: true, RequireDigit: true, RequireSymbol: true, Blacklist: bl}

	ok, reasons := p.Validate("TestPass123!")
	require.True(t, ok, reasons)

	ok, reasons = p.Validate("short1!")
	require.False(t, ok)
	require.Contains(t, reasons, "too_short")
	require.Contains(t, reasons, "missing_upper")

	long := make([]byte, 130)
	for i := range long {
		long[i] = 'a'
	}
	_, reasons = p.Validate("A1!" + string(long))
	require.Contains(t, reasons, "too_long")

	_, reasons = p.Validate("P@ssw0rd")
	require.Contains(t, reasons, "too_common")
}

func TestLoadBlacklist_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bl.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nHunter2!\n\n"), 0o600))
	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	require.True(t, bl.Contains("hunter2!"))
	require.True(t, bl.Contains("password"))
	require.False(t, bl.Contains("# comment"))
}
