package engine

import (
	"log/slog"
	"time"

	"github.com/hupe1980/packedmap/internal/resource"
	"github.com/hupe1980/packedmap/internal/retry"
)

// RebalanceInfo describes one completed rebalance.
type RebalanceInfo struct {
	// Lo is the first cell of the window.
	Lo int
	// Width is the number of cells in the window.
	Width int
	// Occupied counts the window occupants, plus one for a pending insertion.
	Occupied int
	// Moved is the number of relocated occupants.
	Moved    int
	Insert   bool
	Duration time.Duration
	Err      error
}

// Observer receives engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// OnRebalance is called when a rebalance completes or fails permanently.
	OnRebalance(info RebalanceInfo)

	// OnRestart is called when an operation restarts after a transient failure.
	OnRestart(op string, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnRebalance(info RebalanceInfo) {}
func (NoopObserver) OnRestart(op string, err error) {}

type config struct {
	logger    *slog.Logger
	observer  Observer
	resources *resource.Controller
	retry     retry.Policy
}

// Option defines a configuration option for the Engine.
type Option func(*config)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver sets the event observer for the engine.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithResourceController sets the resource controller for the engine.
func WithResourceController(rc *resource.Controller) Option {
	return func(c *config) {
		c.resources = rc
	}
}

// WithRetryPolicy sets the backoff policy of contended operations.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *config) {
		c.retry = p
	}
}
