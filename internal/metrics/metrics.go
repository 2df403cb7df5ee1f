// Package metrics exposes Prometheus instruments for scrape passes, alerts
// and the feed API.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/homeswipe/internal/model"
)

var (
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homeswipe_scrape_passes_total",
		Help: "Scrape passes by final status",
	}, []string{"status"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homeswipe_scrape_pass_duration_seconds",
		Help:    "Scrape pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
	})

	snapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homeswipe_snapshots_total",
		Help: "Snapshots processed by outcome",
	}, []string{"outcome"})

	retiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homeswipe_listings_retired_total",
		Help: "Listings marked inactive after the retirement grace window",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homeswipe_alerts_created_total",
		Help: "Alerts created by type",
	}, []string{"type"})

	geocodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homeswipe_geocode_total",
		Help: "Geocode attempts by result",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homeswipe_http_requests_total",
		Help: "Feed API requests by route and status code",
	}, []string{"route", "code"})
)

// ObservePass records the outcome of a finished scrape pass.
func ObservePass(run *model.ScrapeRun) {
	if run == nil || !run.Status.Terminal() {
		return
	}
	passesTotal.WithLabelValues(string(run.Status)).Inc()
	passDuration.Observe(run.Duration().Seconds())

	c := run.Counts
	snapshotsTotal.WithLabelValues("new").Add(float64(c.New))
	snapshotsTotal.WithLabelValues("updated").Add(float64(c.Updated))
	snapshotsTotal.WithLabelValues("failed").Add(float64(c.Failed))
	snapshotsTotal.WithLabelValues("skipped").Add(float64(c.Skipped))
	snapshotsTotal.WithLabelValues("duplicate").Add(float64(c.Duplicates))
	retiredTotal.Add(float64(c.Retired))
}

// AlertsCreated counts newly inserted alerts.
func AlertsCreated(alerts []model.Alert) {
	for _, a := range alerts {
		alertsTotal.WithLabelValues(string(a.Type)).Inc()
	}
}

// GeocodeResult counts one geocode attempt ("matched", "unmatched", "skipped").
func GeocodeResult(result string) {
	geocodeTotal.WithLabelValues(result).Inc()
}

// HTTPRequest counts one API request.
func HTTPRequest(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
