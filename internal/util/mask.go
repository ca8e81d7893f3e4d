// Package util helpers chicos sin dependencias del dominio.
package util

import (
	"net/url"
	"strings"
)

// MaskURL oculta la contraseña de un DSN o URL (postgres://, amqp://, redis://).
// Si no parsea se enmascara entero.
func MaskURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}

// MaskSecret deja ver solo el prefijo de un token o secreto.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "…"
}
