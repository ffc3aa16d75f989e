package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register and
// observe the supervisor only; nothing here feeds back into control flow.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptd",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process starts, restarts included.",
		},
	)
	processRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptd",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of automatic respawns after a non-zero exit.",
		},
	)
	processStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptd",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of explicit stop operations that removed a record.",
		},
	)
	logLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptd",
			Subsystem: "logs",
			Name:      "lines_total",
			Help:      "Number of log lines appended across all processes.",
		},
	)
	logEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptd",
			Subsystem: "logs",
			Name:      "evicted_lines_total",
			Help:      "Number of log lines evicted from ring buffers.",
		},
	)
	attachSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scriptd",
			Subsystem: "attach",
			Name:      "sessions",
			Help:      "Currently registered attach subscribers.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		processStarts, processRestarts, processStops,
		logLines, logEvictions, attachSessions,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers against the default prometheus registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

func IncStart()   { processStarts.Inc() }
func IncRestart() { processRestarts.Inc() }
func IncStop()    { processStops.Inc() }

func IncLogLine() { logLines.Inc() }
func IncEvicted() { logEvictions.Inc() }

func AttachOpened() { attachSessions.Inc() }
func AttachClosed() { attachSessions.Dec() }

// Handler exposes the default registry, mounted by the HTTP status server.
func Handler() http.Handler { return promhttp.Handler() }
