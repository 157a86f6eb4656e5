package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type MetricsConfig struct {
	Namespace string
	Endpoint  string
}

// Registry owns the collectors of one process.
type Registry struct {
	reg    *prometheus.Registry
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{reg: prometheus.NewRegistry(), logger: logger}
}

// Registerer exposes the underlying prometheus registerer.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying prometheus gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Serve exposes /metrics on the configured endpoint until the server fails.
func (r *Registry) Serve(cfg *MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.Endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	r.logger.Info("Serving metrics", zap.String("endpoint", cfg.Endpoint))
	return srv
}

type ExecutorMetrics struct {
	Encoded       prometheus.Counter
	EncodeErrors  prometheus.Counter
	PayloadSize   prometheus.Histogram
	HopCount      prometheus.Histogram
	Attempts      prometheus.Counter
	Successes     prometheus.Counter
	Failures      *prometheus.CounterVec
	Duplicates    prometheus.Counter
	GasUsed       prometheus.Histogram
	ExecutionTime prometheus.Histogram
	StepLatency   *prometheus.HistogramVec
}

func NewExecutorMetrics(namespace string, reg prometheus.Registerer) *ExecutorMetrics {
	factory := promauto.With(reg)
	return &ExecutorMetrics{
		Encoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_encoded_total",
			Help:      "Total number of arbitrage requests encoded",
		}),
		EncodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_errors_total",
			Help:      "Total number of arbitrage requests rejected by the encoder",
		}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_size_bytes",
			Help:      "Encoded payload size in bytes",
			Buckets:   prometheus.LinearBuckets(32, 21, 8),
		}),
		HopCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_hops",
			Help:      "Number of hops per route",
			Buckets:   prometheus.LinearBuckets(1, 1, 6),
		}),
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of execution attempts",
		}),
		Successes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "successes_total",
			Help:      "Total number of successful executions",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failed executions by step",
		}, []string{"step"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_payloads_total",
			Help:      "Total number of payloads refused as already submitted",
		}),
		GasUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used per arbitrage execution",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 10),
		}),
		ExecutionTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_time_seconds",
			Help:      "Time taken by a full execution run",
			Buckets:   prometheus.DefBuckets,
		}),
		StepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_latency_seconds",
			Help:      "Latency of each execution step",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"step"}),
	}
}
