package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type EngineMetrics struct {
	invocations  *prometheus.CounterVec
	cost         *prometheus.HistogramVec
	opCost       *prometheus.CounterVec
	cellsWritten *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the lazily registered collectors for invocation accounting.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gasbench",
				Subsystem: "engine",
				Name:      "invocations_total",
				Help:      "Top-level invocations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			cost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gasbench",
				Subsystem: "engine",
				Name:      "invocation_cost",
				Help:      "Accounted cost per top-level invocation.",
				Buckets:   prometheus.ExponentialBuckets(100, 2, 14),
			}, []string{"method"}),
			opCost: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gasbench",
				Subsystem: "engine",
				Name:      "op_cost_total",
				Help:      "Accumulated cost per primitive operation kind.",
			}, []string{"op"}),
			cellsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gasbench",
				Subsystem: "engine",
				Name:      "cells_committed_total",
				Help:      "Storage cells committed by successful invocations.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			engineRegistry.invocations,
			engineRegistry.cost,
			engineRegistry.opCost,
			engineRegistry.cellsWritten,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) ObserveInvocation(method string, reverted bool, cost uint64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "committed"
	if reverted {
		outcome = "reverted"
	}
	m.invocations.WithLabelValues(method, outcome).Inc()
	m.cost.WithLabelValues(method).Observe(float64(cost))
}

func (m *EngineMetrics) AddOpCost(op string, cost uint64) {
	if m == nil || cost == 0 {
		return
	}
	m.opCost.WithLabelValues(op).Add(float64(cost))
}

func (m *EngineMetrics) AddCellsCommitted(method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cellsWritten.WithLabelValues(method).Add(float64(n))
}
