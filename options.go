package relidx

import (
	"log/slog"

	"github.com/tidalstore/relidx/bwtree"
	"github.com/tidalstore/relidx/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	treeOptions      []func(*bwtree.Options)
}

// Option configures index construction behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &relidx.BasicMetricsCollector{}
//	ix, _ := relidx.BuildIndex(meta, relidx.WithMetricsCollector(metrics))
//	// ... use ix ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := relidx.NewJSONLogger(slog.LevelInfo)
//	ix, _ := relidx.BuildIndex(meta, relidx.WithLogger(logger))
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

// WithResourceController bounds the index's memory and consolidation
// throughput. Several indexes may share one controller so they draw from a
// single budget. Nil means unlimited.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithTreeOptions forwards tuning knobs to the underlying tree, such as
// split sizes and the delta chain consolidation threshold.
//
// Example:
//
//	ix, _ := relidx.BuildIndex(meta, relidx.WithTreeOptions(func(to *bwtree.Options) {
//	    to.LeafSplitSize = 128
//	}))
func WithTreeOptions(optFns ...func(*bwtree.Options)) Option {
	return func(o *options) {
		o.treeOptions = append(o.treeOptions, optFns...)
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
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
