// Package tokens genera los refresh tokens opacos y su hash de almacenamiento.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// RefreshTokenBytes entropía de un refresh token (256 bits).
const RefreshTokenBytes = 32

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// LooksOpaque distingue un refresh token opaco de un JWT (que tiene dos puntos).
func LooksOpaque(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(RefreshTokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
