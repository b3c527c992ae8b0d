// Package metrics provides Prometheus metrics for the daemon.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Feed names used as label values.
const (
	FeedModerators = "moderators"
	FeedPlayers    = "players"
)

// Metrics holds all Prometheus metrics for the daemon.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	ModeratorsOnline prometheus.Gauge
	ModeratorsSeen   prometheus.Gauge
	PlayersOnline    prometheus.Gauge
	PublishTotal     *prometheus.CounterVec
	FetchErrorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modwatch_cycles_total",
				Help: "Total polling cycles by result.",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modwatch_cycle_duration_seconds",
				Help:    "Wall time of one polling cycle.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ModeratorsOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modwatch_moderators_online",
				Help: "Moderators online in the latest sample.",
			},
		),
		ModeratorsSeen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modwatch_moderators_seen_today",
				Help: "Distinct moderators seen during the tracked day.",
			},
		),
		PlayersOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modwatch_players_online",
				Help: "Player count from the latest successful player fetch; NaN when it carried no count.",
			},
		),
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modwatch_publish_total",
				Help: "Status message publishes by action.",
			},
			[]string{"action"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modwatch_fetch_errors_total",
				Help: "Upstream fetch failures by feed.",
			},
			[]string{"feed"},
		),
		registry: reg,
	}

	reg.MustRegister(m.CyclesTotal)
	reg.MustRegister(m.CycleDuration)
	reg.MustRegister(m.ModeratorsOnline)
	reg.MustRegister(m.ModeratorsSeen)
	reg.MustRegister(m.PlayersOnline)
	reg.MustRegister(m.PublishTotal)
	reg.MustRegister(m.FetchErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle counts a finished cycle and its duration.
func (m *Metrics) RecordCycle(result string, d time.Duration) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// RecordFetchError counts a failed fetch of feed.
func (m *Metrics) RecordFetchError(feed string) {
	m.FetchErrorsTotal.WithLabelValues(feed).Inc()
}

// RecordPublish counts a publish by action.
func (m *Metrics) RecordPublish(action string) {
	m.PublishTotal.WithLabelValues(action).Inc()
}

// SetModerators sets the online and seen-today gauges.
func (m *Metrics) SetModerators(online, seen int) {
	m.ModeratorsOnline.Set(float64(online))
	m.ModeratorsSeen.Set(float64(seen))
}

// SetPlayers sets the player gauge. A nil count marks it unknown (NaN)
// rather than keeping the previous cycle's value.
func (m *Metrics) SetPlayers(count *int) {
	if count == nil {
		m.PlayersOnline.Set(math.NaN())
		return
	}
	m.PlayersOnline.Set(float64(*count))
}

// Serve exposes /metrics on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
