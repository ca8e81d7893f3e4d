// Package metrics agrupa los collectors Prometheus del servicio. Todos los
// métodos aceptan receptor nil (no-op) para que los tests no necesiten registry.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "usersvc"

type Metrics struct {
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	authEvents    *prometheus.CounterVec
	auditRecords  *prometheus.CounterVec
	auditFailures *prometheus.CounterVec
	authzDenials  *prometheus.CounterVec
}

// New registra los collectors en un registry propio (más runtime/process).
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg:      reg,
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests en vuelo",
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Operaciones del emisor de tokens por resultado",
		}, []string{"op", "result"}),
		auditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Registros de actividad persistidos",
		}, []string{"action", "result"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Escrituras de auditoría descartadas tras agotar reintentos",
		}, []string{"sink"}),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_denials_total",
			Help:      "Decisiones deny del guard por operación",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.httpInflight,
		m.authEvents, m.auditRecords, m.auditFailures, m.authzDenials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// registerCollector registra ignorando duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler para GET /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer expuesto para tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// WatchPool registra gauges del pool pgx.
func (m *Metrics) WatchPool(pool *pgxpool.Pool) error {
	if m == nil || pool == nil {
		return nil
	}
	return registerCollector(m.reg, newPoolCollector(pool))
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) InflightInc() {
	if m != nil {
		m.httpInflight.Inc()
	}
}

func (m *Metrics) InflightDec() {
	if m != nil {
		m.httpInflight.Dec()
	}
}

// AuthEvent op: login|refresh|logout|validate; result: success|failure.
func (m *Metrics) AuthEvent(op, result string) {
	if m != nil {
		m.authEvents.WithLabelValues(op, result).Inc()
	}
}

func (m *Metrics) AuditRecorded(action, result string) {
	if m != nil {
		m.auditRecords.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) AuditWriteFailed(sink string) {
	if m != nil {
		m.auditFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) AuthzDenied(operation string) {
	if m != nil {
		m.authzDenials.WithLabelValues(operation).Inc()
	}
}

type poolCollector struct {
	pool     *pgxpool.Pool
	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:     pool,
		acquired: prometheus.NewDesc(namespace+"_pgxpool_acquired", "Conexiones adquiridas", nil, nil),
		idle:     prometheus.NewDesc(namespace+"_pgxpool_idle", "Conexiones inactivas", nil, nil),
		total:    prometheus.NewDesc(namespace+"_pgxpool_total", "Conexiones totales", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(st.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.TotalConns()))
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F-]{32,36}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// NormalizePath reemplaza segmentos dinámicos por :param para acotar la cardinalidad
// cuando no hay patrón de ruta (404, rutas no registradas).
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			seg = ":param"
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 || uuidSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}
