// Package metrics exposes Prometheus metrics for the backup engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "gosnap"

// Metrics holds the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	Cycles         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	SnapshotBytes  prometheus.Gauge
	Streak         prometheus.Gauge
	Pruned         prometheus.Counter
	PruneFailures  prometheus.Counter
	Scheduled      prometheus.Gauge
	LastSuccessful prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Backup cycles by outcome.",
		}, []string{"status"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of executed backup cycles.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Size of the most recent snapshot.",
		}),
		Streak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "same_size_streak",
			Help:      "Consecutive snapshots with unchanged size.",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_pruned_total",
			Help:      "Snapshots deleted by retention.",
		}),
		PruneFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prune_failures_total",
			Help:      "Snapshots that could not be deleted.",
		}),
		Scheduled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_active",
			Help:      "1 while automatic backups are scheduled.",
		}),
		LastSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Cycles, m.CycleDuration, m.SnapshotBytes, m.Streak,
		m.Pruned, m.PruneFailures, m.Scheduled, m.LastSuccessful,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordCycle records the outcome of a finished cycle.
func (m *Metrics) RecordCycle(result *models.CycleResult, finished time.Time) {
	if m == nil || result == nil {
		return
	}
	m.Cycles.WithLabelValues(string(result.Status)).Inc()
	if result.Status == models.CycleSkipped {
		return
	}
	m.CycleDuration.Observe(result.Duration.Seconds())
	if result.Snapshot != nil {
		m.SnapshotBytes.Set(float64(result.Snapshot.SizeBytes))
		m.Streak.Set(float64(result.Streak))
	}
	if result.Prune != nil {
		m.Pruned.Add(float64(len(result.Prune.Removed)))
		m.PruneFailures.Add(float64(len(result.Prune.Failed)))
	}
	if result.Status == models.CycleSuccess {
		m.LastSuccessful.Set(float64(finished.Unix()))
	}
}

// SetScheduled records whether the schedule is active.
func (m *Metrics) SetScheduled(active bool) {
	if m == nil {
		return
	}
	if active {
		m.Scheduled.Set(1)
	} else {
		m.Scheduled.Set(0)
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
