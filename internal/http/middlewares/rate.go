package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	httperrors "github.com/dropDatabas3/usersvc/internal/http/errors"
	"github.com/dropDatabas3/usersvc/internal/http/helpers"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
	"github.com/dropDatabas3/usersvc/internal/rate"
)

// RateKeyFunc clave de rate limiting para un request.
type RateKeyFunc func(r *http.Request) string

// extractJSONField lee hasta max bytes del body para sacar un campo y lo repone.
func extractJSONField(r *http.Request, field string, max int64) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, max)
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf.Bytes()), rest), rest}

	var tmp map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tmp); err == nil {
		if s, ok := tmp[field].(string); ok {
			return s
		}
	}
	return ""
}

func requestIP(r *http.Request) string {
	if ip := GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return helpers.ClientIP(r, false)
}

// LoginRateKey ip + userid: un atacante no bloquea a otros usuarios de la misma IP.
func LoginRateKey(r *http.Request) string {
	uid := strings.ToLower(strings.TrimSpace(extractJSONField(r, "userid", 4096)))
	if uid == "" {
		uid = "-"
	}
	return "login|" + requestIP(r) + "|" + uid
}

// IPRateKey solo por IP y path.
func IPRateKey(r *http.Request) string {
	return requestIP(r) + "|" + r.URL.Path
}

// WithRateLimit con limiter nil es no-op. Un error del limiter deja pasar el request.
func WithRateLimit(l rate.Limiter, key RateKeyFunc) Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httperrors.WriteError(w, httperrors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
