// Package metrics exposes engine activity as Prometheus collectors.
//
// All methods are safe on a nil *Metrics so the engine can run without a
// registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rowscope/cli/internal/chunk"
	"rowscope/cli/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rowscope"

// Probe outcomes.
const (
	ProbeOK      = "ok"
	ProbeTimeout = "timeout"
	ProbeFailure = "failure"
	ProbeSkipped = "skipped"
)

// Metrics holds the engine collectors.
type Metrics struct {
	probe     *prometheus.HistogramVec
	decisions *prometheus.CounterVec
	loads     *prometheus.HistogramVec
	reg       prometheus.Registerer
}

// New creates and registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		probe: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "count_probe_seconds",
			Help:      "Duration of row-count probes by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_decisions_total",
			Help:      "Loading modes chosen for queries.",
		}, []string{"mode"}),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_seconds",
			Help:      "Duration of backend loads by kind and result.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.probe, m.decisions, m.loads)
	return m
}

// ObserveProbe records a count probe.
func (m *Metrics) ObserveProbe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.probe.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveDecision counts a mode decision.
func (m *Metrics) ObserveDecision(mode model.Mode) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(mode.String()).Inc()
}

// ObserveLoad records a finished window or eager load.
func (m *Metrics) ObserveLoad(kind string, d time.Duration, err error, stale bool) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case stale:
		result = "stale"
	case err != nil:
		result = "error"
	}
	m.loads.WithLabelValues(kind, result).Observe(d.Seconds())
}

// RegisterCache exposes cache counters read through stats.
func (m *Metrics) RegisterCache(stats func() chunk.Stats) {
	if m == nil {
		return
	}
	counter := func(name, help string, pick func(chunk.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: name, Help: help,
		}, func() float64 { return float64(pick(stats())) })
	}
	gauge := func(name, help string, pick func(chunk.Stats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: name, Help: help,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.reg.MustRegister(
		counter("hits_total", "Chunk lookups served from cache.", func(s chunk.Stats) int64 { return s.Hits }),
		counter("misses_total", "Chunk lookups that missed.", func(s chunk.Stats) int64 { return s.Misses }),
		counter("loads_total", "Chunk loads started.", func(s chunk.Stats) int64 { return s.Loads }),
		counter("evictions_total", "Chunks evicted to honor capacity.", func(s chunk.Stats) int64 { return s.Evictions }),
		counter("discarded_total", "Completions dropped because their epoch was stale.", func(s chunk.Stats) int64 { return s.Discarded }),
		counter("failures_total", "Chunk loads that failed.", func(s chunk.Stats) int64 { return s.Failures }),
		gauge("chunks", "Chunks currently cached.", func(s chunk.Stats) int64 { return s.Size }),
		gauge("inflight", "Chunk loads currently executing.", func(s chunk.Stats) int64 { return s.InFlight }),
	)
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
