package packedmap

import (
	"log/slog"
	"time"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration

	retriesPerSec float64
	retryBurst    int

	memoryLimit             int64
	maxConcurrentRebalances int64

	lookupCacheSize int64
}

// Option configures a Map.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := packedmap.NewJSONLogger(slog.LevelInfo)
//	m, _ := packedmap.New[int, string](1000, packedmap.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
//	metrics := &packedmap.BasicMetricsCollector{}
//	m, _ := packedmap.New[int, string](1000, packedmap.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithMaxRetries bounds how often a contended operation restarts before it
// fails with ErrContention.
func WithMaxRetries(n uint64) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithBackoff sets the first and the largest pause between restarts.
// Pauses grow exponentially with jitter between the two.
func WithBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		o.initialInterval = initial
		o.maxInterval = max
	}
}

// WithRetryRate throttles restarts across all operations of the map to
// perSec with the given burst.
func WithRetryRate(perSec float64, burst int) Option {
	return func(o *options) {
		o.retriesPerSec = perSec
		o.retryBurst = burst
	}
}

// WithMemoryLimit makes New fail with ErrMemoryLimitExceeded when the cell
// array and tree would need more than bytes.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxConcurrentRebalances bounds the number of rebalance windows held at
// the same time. Zero means unbounded.
func WithMaxConcurrentRebalances(n int64) Option {
	return func(o *options) {
		o.maxConcurrentRebalances = n
	}
}

// WithLookupCache remembers the cell of up to size recently found keys so
// repeated lookups can skip routing. Zero disables the cache.
func WithLookupCache(size int64) Option {
	return func(o *options) {
		o.lookupCacheSize = size
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
