// Package telemetry exposes Prometheus collectors for the scrape pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeRunsTotal            *prometheus.CounterVec
	scrapeBranchesTotal        *prometheus.CounterVec
	screenshotsTotal           *prometheus.CounterVec
	projectsUpsertedTotal      prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_scrape_runs_total",
				Help: "Total reconciliation runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		scrapeBranchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_scrape_branches_total",
				Help: "Branches handled per run, labeled by result (hit, processed, failed, empty).",
			},
			[]string{"result"},
		)

		screenshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_screenshots_total",
				Help: "Screenshot capture attempts, labeled by result (captured, cached, failed).",
			},
			[]string{"result"},
		)

		projectsUpsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "showcase_projects_upserted_total",
				Help: "Total project rows written by the persistence gateway.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "showcase_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records the outcome of a reconciliation run.
func ObserveRun(status string) {
	if scrapeRunsTotal == nil {
		return
	}
	scrapeRunsTotal.WithLabelValues(status).Inc()
}

// ObserveBranch records how a branch was handled this run.
func ObserveBranch(result string) {
	if scrapeBranchesTotal == nil {
		return
	}
	scrapeBranchesTotal.WithLabelValues(result).Inc()
}

// ObserveScreenshot records one capture attempt.
func ObserveScreenshot(result string) {
	if screenshotsTotal == nil {
		return
	}
	screenshotsTotal.WithLabelValues(result).Inc()
}

// ObserveUpserts records a batch of persisted project rows.
func ObserveUpserts(count int) {
	if projectsUpsertedTotal == nil || count <= 0 {
		return
	}
	projectsUpsertedTotal.Add(float64(count))
}

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
