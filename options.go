package pointgo

import (
	"log/slog"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/mask"
)

type options struct {
	includeCoordinates bool
	predicate          mask.Predicate
	workers            int
	builder            index.Builder
	index              index.Index
	metricsCollector   MetricsCollector
	logger             *Logger
}

// Option configures ComputePointMetrics behavior.
type Option func(*options)

// WithoutCoordinates drops the X, Y, Z columns from the result table.
// By default coordinates of the processed points are prepended.
func WithoutCoordinates() Option {
	return func(o *options) {
		o.includeCoordinates = false
	}
}

// WithFilter restricts processing to points for which the predicate
// holds. The predicate narrows only which points are queried; neighbors
// are always drawn from the full cloud. A predicate error aborts the run.
func WithFilter(pred mask.Predicate) Option {
	return func(o *options) {
		o.predicate = pred
	}
}

// WithWorkers enables a parallel sweep with n workers. Each worker gets
// its own neighbor buffer; the index is shared read-only. The aggregation
// function must be safe for concurrent calls when n > 1.
//
// Row order of the result table is unaffected.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithIndexBuilder selects the spatial index implementation. Defaults to
// the k-d tree.
func WithIndexBuilder(b index.Builder) Option {
	return func(o *options) {
		o.builder = b
	}
}

// WithIndex reuses a prebuilt spatial index across runs over the same
// cloud. The index must cover exactly the full cloud.
func WithIndex(idx index.Index) Option {
	return func(o *options) {
		o.index = idx
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// runs. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for runs.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

func applyOptions(optFns []Option) options {
	o := options{
		includeCoordinates: true,
		workers:            1,
		metricsCollector:   NoopMetricsCollector{},
		logger:             NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
