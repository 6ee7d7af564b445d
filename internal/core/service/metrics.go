package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK           = "ok"
	outcomeInsufficient = "insufficient_stock"
	outcomeNotFound     = "not_found"
	outcomeFault        = "storage_fault"
	outcomeReplayed     = "replayed"
	outcomeInvalid      = "invalid"
	outcomeExists       = "exists"
)

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	restock    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including the storage round trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		restock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "restock_jobs_total",
			Help:      "Deferred stock restorations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.operations, m.duration, m.restock)
	return m
}

// observe starts timing op; the returned func records the outcome. Safe on a nil receiver.
func (m *Metrics) observe(op string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	return func(outcome string) {
		m.operations.WithLabelValues(op, outcome).Inc()
		m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) restockJob(result string) {
	if m == nil {
		return
	}
	m.restock.WithLabelValues(result).Inc()
}
