// Package metrics provides Prometheus metrics collection
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors tracking kernel activity. Every
// value here is a read-only projection of engine/diagnostics state — it
// never feeds back into OrgState.
type Metrics struct {
	// Engine activity
	EventsAppliedTotal       *prometheus.CounterVec
	InvariantFailuresTotal   *prometheus.CounterVec
	TransitionDuration       *prometheus.HistogramVec

	// Diagnostics gauges, one observation per stream
	StructuralDebt prometheus.GaugeVec
	ActiveRoles    prometheus.GaugeVec
	RolesTotal     prometheus.GaugeVec
	GlobalDensity  prometheus.GaugeVec
	ClusterCount   prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simorg_events_applied_total",
				Help: "Total number of events committed by the kernel, by event type and outcome",
			},
			[]string{"service", "event_type", "outcome"},
		),
		InvariantFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simorg_invariant_failures_total",
				Help: "Total number of invariant violations encountered, by rule name",
			},
			[]string{"service", "rule"},
		),
		TransitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simorg_transition_duration_seconds",
				Help:    "Wall-clock time spent applying a single event",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
			},
			[]string{"service", "event_type"},
		),

		StructuralDebt: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simorg_structural_debt",
				Help: "Accumulated structural debt of the most recently observed state, by stream",
			},
			[]string{"service", "stream"},
		),
		ActiveRoles: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simorg_active_roles",
				Help: "Number of active roles in the most recently observed state, by stream",
			},
			[]string{"service", "stream"},
		),
		RolesTotal: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simorg_roles_total",
				Help: "Total number of roles (active and retired) in the most recently observed state, by stream",
			},
			[]string{"service", "stream"},
		),
		GlobalDensity: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simorg_global_density",
				Help: "Global structural density (fixed-point, scale 10000) of the most recently observed state, by stream",
			},
			[]string{"service", "stream"},
		),
		ClusterCount: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simorg_cluster_count",
				Help: "Number of clusters in the most recent projection, by stream",
			},
			[]string{"service", "stream"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.EventsAppliedTotal,
			m.InvariantFailuresTotal,
			m.TransitionDuration,
			&m.StructuralDebt,
			&m.ActiveRoles,
			&m.RolesTotal,
			&m.GlobalDensity,
			&m.ClusterCount,
			m.ErrorsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordEventApplied records the outcome of a single ApplyEvent call.
func (m *Metrics) RecordEventApplied(service, eventType, outcome string, duration time.Duration) {
	m.EventsAppliedTotal.WithLabelValues(service, eventType, outcome).Inc()
	m.TransitionDuration.WithLabelValues(service, eventType).Observe(duration.Seconds())
}

// RecordInvariantFailure records a single invariant violation by rule name.
func (m *Metrics) RecordInvariantFailure(service, rule string) {
	m.InvariantFailuresTotal.WithLabelValues(service, rule).Inc()
}

// ObserveDiagnostics republishes a diagnostics snapshot for stream as
// gauge values. ApplyEvent's own commit path never calls it.
func (m *Metrics) ObserveDiagnostics(service, stream string, activeRoles, rolesTotal int, structuralDebt, globalDensity int64) {
	m.ActiveRoles.WithLabelValues(service, stream).Set(float64(activeRoles))
	m.RolesTotal.WithLabelValues(service, stream).Set(float64(rolesTotal))
	m.StructuralDebt.WithLabelValues(service, stream).Set(float64(structuralDebt))
	m.GlobalDensity.WithLabelValues(service, stream).Set(float64(globalDensity))
}

// ObserveClusterCount republishes the size of the most recent cluster
// projection for stream.
func (m *Metrics) ObserveClusterCount(service, stream string, count int) {
	m.ClusterCount.WithLabelValues(service, stream).Set(float64(count))
}

// RecordError records an error
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// UpdateUptime updates the service uptime
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// Helper functions

func getEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("SIMORG_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return getEnvironment() != "production"
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
