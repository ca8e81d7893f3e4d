// Package helpers utilidades de request/response compartidas por controllers
// y middlewares.
package helpers

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP usa X-Forwarded-For / X-Real-IP solo si trustProxy; si no, RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			return strings.TrimSpace(strings.Split(xf, ",")[0])
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
			return xr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// BearerToken extrae el token de Authorization: Bearer <token>.
func BearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(ah[7:])
	return tok, tok != ""
}

// QueryInt lee un entero de la query; def si falta. ok=false si no parsea.
func QueryInt(r *http.Request, key string, def int) (int, bool) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def, false
	}
	return n, true
}

// QueryBool "true"/"false"/"1"/"0"; nil si falta.
func QueryBool(r *http.Request, key string) (*bool, bool) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, false
	}
	return &b, true
}
