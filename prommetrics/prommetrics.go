// Package prommetrics exports packedmap operations as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	pc, _ := prommetrics.New(reg)
//	m, _ := packedmap.New[int, string](1000, packedmap.WithMetricsCollector(pc))
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/packedmap"
)

const namespace = "packedmap"

var _ packedmap.MetricsCollector = (*Collector)(nil)

// Collector implements packedmap.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency      *prometheus.HistogramVec
	opResults      *prometheus.CounterVec
	rebalances     *prometheus.CounterVec
	rebalanceWidth prometheus.Histogram
	rebalanceMoves prometheus.Counter
	rebalanceTime  prometheus.Histogram
	restarts       *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg. A nil reg
// registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of map operations",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"op", "status"}),
		opResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Map operations by outcome",
		}, []string{"op", "result"}),
		rebalances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalances_total",
			Help:      "Rebalance windows by status",
		}, []string{"status"}),
		rebalanceWidth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebalance_window_cells",
			Help:      "Number of cells in a rebalance window",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 20),
		}),
		rebalanceMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalance_moves_total",
			Help:      "Occupants relocated by rebalances",
		}),
		rebalanceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebalance_duration_seconds",
			Help:      "Time a rebalance window was held",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Operations restarted after losing a race",
		}, []string{"op"}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.opResults, c.rebalances, c.rebalanceWidth,
		c.rebalanceMoves, c.rebalanceTime, c.restarts,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, result string, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
	if err != nil {
		result = "error"
	}
	c.opResults.WithLabelValues(op, result).Inc()
}

// RecordFind implements packedmap.MetricsCollector.
func (c *Collector) RecordFind(d time.Duration, found bool, err error) {
	result := "miss"
	if found {
		result = "hit"
	}
	c.observe("find", d, result, err)
}

// RecordAdd implements packedmap.MetricsCollector.
func (c *Collector) RecordAdd(d time.Duration, inserted bool, err error) {
	result := "updated"
	if inserted {
		result = "inserted"
	}
	c.observe("add", d, result, err)
}

// RecordDelete implements packedmap.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, removed bool, err error) {
	result := "absent"
	if removed {
		result = "removed"
	}
	c.observe("delete", d, result, err)
}

// RecordRebalance implements packedmap.MetricsCollector.
func (c *Collector) RecordRebalance(ev packedmap.RebalanceEvent) {
	c.rebalances.WithLabelValues(status(ev.Err)).Inc()
	if ev.Err != nil {
		return
	}
	c.rebalanceWidth.Observe(float64(ev.Width))
	c.rebalanceMoves.Add(float64(ev.Moved))
	c.rebalanceTime.Observe(ev.Duration.Seconds())
}

// RecordRestart implements packedmap.MetricsCollector.
func (c *Collector) RecordRestart(op string) {
	c.restarts.WithLabelValues(op).Inc()
}
