// Package metrics exposes Prometheus collectors for the loan engine and the
// HTTP layer.
package metrics

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"collateral-loans/internal/domain/loan"
)

type Metrics struct {
	operations      *prometheus.CounterVec
	totalCollateral prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

var (
	defaultOnce sync.Once
	defaultReg  *Metrics
)

// Default returns the collectors registered on the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultReg = New(prometheus.DefaultRegisterer)
	})
	return defaultReg
}

// New builds and registers a fresh set of collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loans",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Loan engine operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		totalCollateral: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loans",
			Subsystem: "engine",
			Name:      "total_collateral",
			Help:      "Collateral held across all loans, in base units.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loans",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loans",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.operations, m.totalCollateral, m.httpRequests, m.httpLatency)
	return m
}

func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// SetTotalCollateral reports the total as a float; precision loss above 2^53
// only affects the gauge.
func (m *Metrics) SetTotalCollateral(total loan.Amount) {
	if m == nil {
		return
	}
	f, _ := new(big.Float).SetInt(total.Big()).Float64()
	m.totalCollateral.Set(f)
}

func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(took.Seconds())
}
