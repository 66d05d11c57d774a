// Package metrics exposes Prometheus metrics for the harvester.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
)

const namespace = "newsapi"

// Metrics implements newsapi.Observer and records pipeline outcomes.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	PaginationLimits  *prometheus.CounterVec
	DuplicatesTotal   *prometheus.CounterVec
	CyclesTotal       *prometheus.CounterVec
	ArticlesEmitted   *prometheus.CounterVec
	ArticlesProcessed *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of API requests by endpoint and HTTP status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		PaginationLimits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pagination_limit_total",
				Help:      "Times paging stopped because the plan does not allow deeper pages",
			},
			[]string{"endpoint"},
		),
		DuplicatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_duplicates_total",
				Help:      "Articles suppressed by the recency window",
			},
			[]string{"endpoint"},
		),
		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_cycles_total",
				Help:      "Completed polling cycles",
			},
			[]string{"endpoint"},
		),
		ArticlesEmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_articles_total",
				Help:      "Articles emitted by streams",
			},
			[]string{"endpoint"},
		),
		ArticlesProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_articles_total",
				Help:      "Articles handled by the publish pipeline by query and outcome",
			},
			[]string{"query", "outcome"},
		),
	}
}

func (m *Metrics) RequestCompleted(e newsapi.Endpoint, _ int, status int, elapsed time.Duration, _ error) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(e.Name(), label).Inc()
	m.RequestDuration.WithLabelValues(e.Name()).Observe(elapsed.Seconds())
}

func (m *Metrics) PaginationLimitReached(e newsapi.Endpoint, _ int) {
	if m == nil {
		return
	}
	m.PaginationLimits.WithLabelValues(e.Name()).Inc()
}

func (m *Metrics) DuplicateSuppressed(e newsapi.Endpoint, _ string) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.WithLabelValues(e.Name()).Inc()
}

func (m *Metrics) CycleCompleted(e newsapi.Endpoint, emitted, _ int) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(e.Name()).Inc()
	m.ArticlesEmitted.WithLabelValues(e.Name()).Add(float64(emitted))
}

// ArticleProcessed counts one pipeline outcome (published, skipped, failed).
func (m *Metrics) ArticleProcessed(query, outcome string) {
	if m == nil {
		return
	}
	m.ArticlesProcessed.WithLabelValues(query, outcome).Inc()
}

// Serve exposes g on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
