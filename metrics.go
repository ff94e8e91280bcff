package packedmap

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/packedmap/internal/engine"
)

// RebalanceEvent describes one completed rebalance window.
type RebalanceEvent struct {
	// Lo is the first cell of the window.
	Lo int
	// Width is the number of cells in the window.
	Width int
	// Occupied counts the occupants, including a pending insertion.
	Occupied int
	// Moved is the number of relocated occupants.
	Moved int
	// Insert reports whether the window made room for an insertion.
	Insert   bool
	Duration time.Duration
	Err      error
}

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see the prommetrics package for a ready-made one.
type MetricsCollector interface {
	// RecordFind is called after each lookup.
	RecordFind(duration time.Duration, found bool, err error)

	// RecordAdd is called after each Add. inserted is false for updates.
	RecordAdd(duration time.Duration, inserted bool, err error)

	// RecordDelete is called after each Delete.
	RecordDelete(duration time.Duration, removed bool, err error)

	// RecordRebalance is called after each rebalance window.
	RecordRebalance(ev RebalanceEvent)

	// RecordRestart is called when op restarts after losing a race.
	RecordRestart(op string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFind(time.Duration, bool, error)   {}
func (NoopMetricsCollector) RecordAdd(time.Duration, bool, error)    {}
func (NoopMetricsCollector) RecordDelete(time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordRebalance(RebalanceEvent)          {}
func (NoopMetricsCollector) RecordRestart(string)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FindCount       atomic.Int64
	FindHits        atomic.Int64
	FindErrors      atomic.Int64
	FindTotalNanos  atomic.Int64
	AddCount        atomic.Int64
	AddInserts      atomic.Int64
	AddErrors       atomic.Int64
	AddTotalNanos   atomic.Int64
	DeleteCount     atomic.Int64
	DeleteRemoved   atomic.Int64
	DeleteErrors    atomic.Int64
	RebalanceCount  atomic.Int64
	RebalanceErrors atomic.Int64
	RebalanceCells  atomic.Int64
	RebalanceMoves  atomic.Int64
	RestartCount    atomic.Int64
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(duration time.Duration, found bool, err error) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FindErrors.Add(1)
	} else if found {
		b.FindHits.Add(1)
	}
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, inserted bool, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	} else if inserted {
		b.AddInserts.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, removed bool, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	} else if removed {
		b.DeleteRemoved.Add(1)
	}
}

// RecordRebalance implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebalance(ev RebalanceEvent) {
	b.RebalanceCount.Add(1)
	if ev.Err != nil {
		b.RebalanceErrors.Add(1)
		return
	}
	b.RebalanceCells.Add(int64(ev.Width))
	b.RebalanceMoves.Add(int64(ev.Moved))
}

// RecordRestart implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestart(string) {
	b.RestartCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FindCount:       b.FindCount.Load(),
		FindHits:        b.FindHits.Load(),
		FindErrors:      b.FindErrors.Load(),
		FindAvgNanos:    avg(b.FindTotalNanos.Load(), b.FindCount.Load()),
		AddCount:        b.AddCount.Load(),
		AddInserts:      b.AddInserts.Load(),
		AddErrors:       b.AddErrors.Load(),
		AddAvgNanos:     avg(b.AddTotalNanos.Load(), b.AddCount.Load()),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteRemoved:   b.DeleteRemoved.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		RebalanceCount:  b.RebalanceCount.Load(),
		RebalanceErrors: b.RebalanceErrors.Load(),
		RebalanceCells:  b.RebalanceCells.Load(),
		RebalanceMoves:  b.RebalanceMoves.Load(),
		RestartCount:    b.RestartCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FindCount       int64
	FindHits        int64
	FindErrors      int64
	FindAvgNanos    int64
	AddCount        int64
	AddInserts      int64
	AddErrors       int64
	AddAvgNanos     int64
	DeleteCount     int64
	DeleteRemoved   int64
	DeleteErrors    int64
	RebalanceCount  int64
	RebalanceErrors int64
	RebalanceCells  int64
	RebalanceMoves  int64
	RestartCount    int64
}

// observer forwards engine events to the metrics collector and logger.
type observer struct {
	metrics MetricsCollector
	logger  *Logger
}

func (o observer) OnRebalance(info engine.RebalanceInfo) {
	ev := RebalanceEvent{
		Lo:       info.Lo,
		Width:    info.Width,
		Occupied: info.Occupied,
		Moved:    info.Moved,
		Insert:   info.Insert,
		Duration: info.Duration,
		Err:      translateError(info.Err),
	}
	o.metrics.RecordRebalance(ev)
	o.logger.LogRebalance(context.Background(), ev)
}

func (o observer) OnRestart(op string, _ error) {
	o.metrics.RecordRestart(op)
}
