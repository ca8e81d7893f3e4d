package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field alias para no importar zap en cada llamador.
type Field = zap.Field

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// DurationMs registra la latencia en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// ─── Identidad / autorización ───

// UserID es el userid de negocio (no el id numérico).
func UserID(v string) zap.Field    { return zap.String("userid", v) }
func Role(v string) zap.Field      { return zap.String("role", v) }
func Target(v string) zap.Field    { return zap.String("target", v) }
func Operation(v string) zap.Field { return zap.String("operation", v) }
func SessionID(v string) zap.Field { return zap.String("sid", v) }
func Action(v string) zap.Field    { return zap.String("action", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ErrorClass agrupa fallas para alertas (ej: audit_write_failure).
func ErrorClass(v string) zap.Field { return zap.String("error_class", v) }

func Attempt(n int) zap.Field { return zap.Int("attempt", n) }
func Count(v int) zap.Field   { return zap.Int("count", v) }

func String(key, v string) zap.Field  { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
