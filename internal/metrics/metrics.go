// Package metrics exposes Prometheus instrumentation for analysis runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "donortrace"

// Collector holds the metrics for one process. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	ModelCalls     *prometheus.CounterVec
	ModelDuration  *prometheus.HistogramVec
	ModelTokens    *prometheus.CounterVec
	ParseStages    *prometheus.CounterVec
	BackendCalls   *prometheus.CounterVec
	SearchBatches  *prometheus.CounterVec
	SearchNewBills prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
}

// NewCollector creates a collector on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ModelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_calls_total",
				Help:      "Generative model calls by provider, phase and outcome",
			},
			[]string{"provider", "phase", "outcome"},
		),
		ModelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_call_duration_seconds",
				Help:      "Generative model call latency",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "phase"},
		),
		ModelTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_tokens_total",
				Help:      "Tokens reported by the model provider",
			},
			[]string{"provider", "phase"},
		),
		ParseStages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_results_total",
				Help:      "Structured-output recoveries by phase and winning stage",
			},
			[]string{"phase", "stage"},
		),
		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Remote procedure calls by procedure and outcome",
			},
			[]string{"procedure", "outcome"},
		),
		SearchBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_batches_total",
				Help:      "Evidence-search batches by relevance threshold",
			},
			[]string{"threshold"},
		),
		SearchNewBills: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_batch_new_bills",
				Help:      "New bills contributed per search batch",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}

	registry.MustRegister(
		c.ModelCalls,
		c.ModelDuration,
		c.ModelTokens,
		c.ParseStages,
		c.BackendCalls,
		c.SearchBatches,
		c.SearchNewBills,
		c.CacheLookups,
	)
	return c
}

// Registry returns the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveModelCall records one model call
func (c *Collector) ObserveModelCall(provider, phase string, err error, d time.Duration, tokens int) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.ModelCalls.WithLabelValues(provider, phase, outcome).Inc()
	c.ModelDuration.WithLabelValues(provider, phase).Observe(d.Seconds())
	if tokens > 0 {
		c.ModelTokens.WithLabelValues(provider, phase).Add(float64(tokens))
	}
}

// ObserveParse records which recovery stage produced a value
func (c *Collector) ObserveParse(phase, stage string) {
	if c == nil {
		return
	}
	c.ParseStages.WithLabelValues(phase, stage).Inc()
}

// ObserveBackendCall records one remote procedure call
func (c *Collector) ObserveBackendCall(procedure string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.BackendCalls.WithLabelValues(procedure, outcome).Inc()
}

// ObserveSearchBatch records one search batch
func (c *Collector) ObserveSearchBatch(threshold float64, newBills int) {
	if c == nil {
		return
	}
	c.SearchBatches.WithLabelValues(strconv.FormatFloat(threshold, 'f', 2, 64)).Inc()
	c.SearchNewBills.Observe(float64(newBills))
}

// ObserveCache records a cache hit or miss
func (c *Collector) ObserveCache(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(cache, result).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if c == nil {
		return fmt.Errorf("metrics collector is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
