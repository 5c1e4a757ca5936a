// Package metrics exposes ledger counters and oracle latency to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"chainlend-backend/internal/domain/ledgererr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chainlend"

type Metrics struct {
	reg        *prometheus.Registry
	operations *prometheus.CounterVec
	oracle     *prometheus.HistogramVec
}

// New builds a private registry so tests can create as many as they like.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and result (ok, an error kind, or error).",
		}, []string{"operation", "result"}),
		oracle: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of price feed reads.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"source", "outcome"}),
	}
	m.reg.MustRegister(
		m.operations,
		m.oracle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if k := ledgererr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func (m *Metrics) ObserveOperation(op string, err error) {
	m.operations.WithLabelValues(op, result(err)).Inc()
}

// ObserveOracleFetch matches oracle.Observer.
func (m *Metrics) ObserveOracleFetch(source string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.oracle.WithLabelValues(source, outcome).Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
