package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// Fast para tests y seeds masivos; nunca en producción.
var Fast = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

var ErrEmpty = errors.New("empty password")

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify acepta argon2id (formato propio) y bcrypt ($2a$/$2b$/$2y$) para
// hashes importados de otros sistemas.
func Verify(plain, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(plain, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
	}
	return false
}

func verifyArgon2id(plain, phc string) bool {
	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<dk>
	parts := strings.Split(phc, "$")
	if len(parts) != 6 {
		return false
	}
	var v int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &v); err != nil || v != argon2.Version {
		return false
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, t, m, p, uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}

// Hasher fija los parámetros que usa el servicio.
type Hasher struct {
	Params Params
	// dummy se compara cuando el usuario no existe, para igualar el costo.
	dummy string
}

func NewHasher(p Params) *Hasher {
	h := &Hasher{Params: p}
	h.dummy, _ = Hash(p, "dummy-password-for-timing")
	return h
}

func (h *Hasher) Hash(plain string) (string, error) { return Hash(h.Params, plain) }

func (h *Hasher) Verify(plain, encoded string) bool { return Verify(plain, encoded) }

// VerifyDummy consume el mismo tiempo que un Verify real y siempre falla.
func (h *Hasher) VerifyDummy(plain string) {
	_ = Verify(plain, h.dummy)
}
