// Package metrics registra las métricas Prometheus del servicio. Todos los
// métodos aceptan receiver nil para que los services funcionen sin métricas.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados de webhook.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDeadEnd   = "dead_end"
	WebhookRetry     = "retry"
	WebhookRejected  = "invalid_signature"
)

// Metrics agrupa los collectors de la aplicación.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	signupTotal       *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	tenantsCreated    *prometheus.CounterVec
	accountingRefresh *prometheus.CounterVec
	accountingConnect *prometheus.CounterVec
	reaped            *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
	externalDuration  *prometheus.HistogramVec
}

// New crea las métricas sobre un registry propio (más los collectors de Go/proceso).
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo",
	})

	m.signupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signup_attempts_total",
		Help: "Intentos de signup por resultado",
	}, []string{"result"})

	m.webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Eventos de webhook de pagos por tipo y resultado",
	}, []string{"type", "result"})

	m.tenantsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenants_created_total",
		Help: "Tenants materializados por origen (webhook|provision)",
	}, []string{"source"})

	m.accountingRefresh = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_token_refresh_total",
		Help: "Refresh de credenciales contables por resultado",
	}, []string{"result"})

	m.accountingConnect = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accounting_callbacks_total",
		Help: "Callbacks OAuth del proveedor contable por resultado",
	}, []string{"result"})

	m.reaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pending_identities_reaped_total",
		Help: "Identidades pendientes eliminadas por el reaper",
	}, []string{"result"})

	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rechazadas por rate limit",
	}, []string{"route"})

	m.externalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "external_call_duration_seconds",
		Help:    "Latencia de llamadas a servicios externos",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"service", "op", "result"})

	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.signupTotal, m.webhookEvents, m.tenantsCreated,
		m.accountingRefresh, m.accountingConnect, m.reaped, m.rateLimited,
		m.externalDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registerCollector(m.registry, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew es New pero panic ante error (solo en main/tests).
func MustNew() *Metrics {
	m, err := New()
	if err != nil {
		panic(err)
	}
	return m
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry expone el registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) InflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.httpInflight.Add(delta)
}

func (m *Metrics) Signup(result string) {
	if m == nil {
		return
	}
	m.signupTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) TenantCreated(source string) {
	if m == nil {
		return
	}
	m.tenantsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) AccountingRefresh(result string) {
	if m == nil {
		return
	}
	m.accountingRefresh.WithLabelValues(result).Inc()
}

func (m *Metrics) AccountingCallback(result string) {
	if m == nil {
		return
	}
	m.accountingConnect.WithLabelValues(result).Inc()
}

func (m *Metrics) Reaped(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

// ObserveExternal registra la latencia de una llamada externa (stripe, accounting, identity).
func (m *Metrics) ObserveExternal(service, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.externalDuration.WithLabelValues(service, op, result).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
