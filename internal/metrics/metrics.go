// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	linksDiscoveredTotal       *prometheus.CounterVec
	articlesTotal              *prometheus.CounterVec
	clustersTotal              *prometheus.CounterVec
	recordsArchivedTotal       *prometheus.CounterVec
	storeRecords               *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rojgar_cycles_total",
				Help: "Total number of pipeline cycles, labeled by status.",
			},
			[]string{"status"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rojgar_cycle_duration_seconds",
				Help:    "Histogram of pipeline cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		)

		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rojgar_links_discovered_total",
				Help: "Total number of new announcement links discovered, labeled by site.",
			},
			[]string{"site"},
		)

		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rojgar_articles_total",
				Help: "Total number of article fetches, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		clustersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rojgar_clusters_total",
				Help: "Total number of clusters processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		recordsArchivedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rojgar_records_archived_total",
				Help: "Total number of records moved to the archive, labeled by category.",
			},
			[]string{"category"},
		)

		storeRecords = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rojgar_store_records",
				Help: "Number of records currently held per store partition.",
			},
			[]string{"partition"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Article fetch results.
const (
	ArticleOK    = "ok"
	ArticleShort = "short"
	ArticleError = "error"
)

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a finished cycle.
func ObserveCycle(status string, duration time.Duration) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveDiscovered counts new links discovered on source.
func ObserveDiscovered(source string, n int) {
	if n > 0 {
		linksDiscoveredTotal.WithLabelValues(SanitizeSite(source)).Add(float64(n))
	}
}

// ObserveArticle counts one article fetch.
func ObserveArticle(articleURL, result string) {
	articlesTotal.WithLabelValues(SanitizeSite(articleURL), result).Inc()
}

// ObserveCluster counts one processed cluster.
func ObserveCluster(outcome string) {
	clustersTotal.WithLabelValues(outcome).Inc()
}

// ObserveArchived counts records archived per category.
func ObserveArchived(perCategory map[string]int) {
	for category, n := range perCategory {
		if n > 0 {
			recordsArchivedTotal.WithLabelValues(category).Add(float64(n))
		}
	}
}

// SetStoreRecords publishes the current partition sizes.
func SetStoreRecords(counts map[string]int) {
	for partition, n := range counts {
		storeRecords.WithLabelValues(partition).Set(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request counts and latencies by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
