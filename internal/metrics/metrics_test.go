package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", "success")
	m.AuditWriteFailed("store")
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.InflightInc()
	m.InflightDec()
	require.NoError(t, m.WatchPool(nil))
}

func TestCountersAndHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.AuditWriteFailed("store")
	m.AuditWriteFailed("store")
	m.AuthEvent("login", "failure")
	require.Equal(t, 2.0, testutil.ToFloat64(m.auditFailures.WithLabelValues("store")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "failure")))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "usersvc_audit_write_failures_total"))
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "/api/v1/users/:param", NormalizePath("/api/v1/users/42/"))
	require.Equal(t, "/api/v1/activities/:param", NormalizePath("/api/v1/activities/6f1c2a8e-1b2c-4d5e-8f90-123456789abc"))
	require.Equal(t, "/health", NormalizePath("/health?x=1"))
	require.Equal(t, "/", NormalizePath(""))
}
