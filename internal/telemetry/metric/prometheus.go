package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "respkv"

// Metrics holds all application metrics and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Connection metrics
	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
	ProtocolErrors      prometheus.Counter

	// Persistence metrics
	SavesTotal        *prometheus.CounterVec
	SaveDuration      prometheus.Histogram
	LastSaveTimestamp prometheus.Gauge
}

// New creates the metrics and registers them, together with the Go runtime
// and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "total",
			Help:      "Commands executed, by command name and status",
		}, []string{"command", "status"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Command execution latency",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"command"}),

		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Currently open client connections",
		}),

		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Client connections accepted",
		}),

		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "rejected_total",
			Help:      "Client connections refused, by reason",
		}, []string{"reason"}),

		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "protocol_errors_total",
			Help:      "Connections closed because of malformed input",
		}),

		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "saves_total",
			Help:      "Snapshot saves, by result",
		}, []string{"result"}),

		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_duration_seconds",
			Help:      "Time spent writing a snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		LastSaveTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "last_save_timestamp_seconds",
			Help:      "Unix timestamp of the last successful save",
		}),
	}

	m.registry.MustRegister(
		m.CommandsTotal,
		m.CommandDuration,
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.ConnectionsRejected,
		m.ProtocolErrors,
		m.SavesTotal,
		m.SaveDuration,
		m.LastSaveTimestamp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry so other components can register
// their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand records one executed command.
func (m *Metrics) ObserveCommand(name string, elapsed time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// ConnClosed records a closed connection.
func (m *Metrics) ConnClosed() {
	m.ConnectionsActive.Dec()
}

// ConnRejected records a refused connection.
func (m *Metrics) ConnRejected(reason string) {
	m.ConnectionsRejected.WithLabelValues(reason).Inc()
}

// ProtocolError records a connection dropped on malformed input.
func (m *Metrics) ProtocolError() {
	m.ProtocolErrors.Inc()
}

// ObserveSave records a snapshot save attempt.
func (m *Metrics) ObserveSave(at time.Time, elapsed time.Duration, err error) {
	if err != nil {
		m.SavesTotal.WithLabelValues("error").Inc()
		return
	}
	m.SavesTotal.WithLabelValues("ok").Inc()
	m.SaveDuration.Observe(elapsed.Seconds())
	m.LastSaveTimestamp.Set(float64(at.Unix()))
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
