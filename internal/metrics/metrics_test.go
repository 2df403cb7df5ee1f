package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homeswipe/internal/model"
)

func TestObservePass(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &model.ScrapeRun{ID: "r1", Status: model.RunStatusRunning, StartedAt: start}

	before := testutil.ToFloat64(passesTotal.WithLabelValues("completed"))
	beforeRetired := testutil.ToFloat64(retiredTotal)

	ObservePass(run)
	assert.Equal(t, before, testutil.ToFloat64(passesTotal.WithLabelValues("completed")))

	require.NoError(t, run.Complete(model.RunCounts{Found: 3, New: 2, Updated: 1, Retired: 4}, start.Add(time.Minute)))
	ObservePass(run)

	assert.Equal(t, before+1, testutil.ToFloat64(passesTotal.WithLabelValues("completed")))
	assert.Equal(t, beforeRetired+4, testutil.ToFloat64(retiredTotal))
}

func TestAlertsCreated(t *testing.T) {
	before := testutil.ToFloat64(alertsTotal.WithLabelValues("price_drop"))
	AlertsCreated([]model.Alert{{Type: model.AlertPriceDrop}, {Type: model.AlertPriceDrop}, {Type: model.AlertNewListing}})
	assert.Equal(t, before+2, testutil.ToFloat64(alertsTotal.WithLabelValues("price_drop")))
}

func TestHandler(t *testing.T) {
	GeocodeResult("matched")
	HTTPRequest("/feed", http.StatusOK)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homeswipe_geocode_total")
	assert.Contains(t, rec.Body.String(), "homeswipe_http_requests_total")
}
