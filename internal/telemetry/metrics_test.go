package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRunCounts(t *testing.T) {
	Init()

	before := testutil.ToFloat64(scrapeRunsTotal.WithLabelValues("completed"))
	ObserveRun("completed")
	after := testutil.ToFloat64(scrapeRunsTotal.WithLabelValues("completed"))
	require.Equal(t, before+1, after)
}

func TestObserveScreenshotAndUpserts(t *testing.T) {
	Init()

	before := testutil.ToFloat64(screenshotsTotal.WithLabelValues("failed"))
	ObserveScreenshot("failed")
	require.Equal(t, before+1, testutil.ToFloat64(screenshotsTotal.WithLabelValues("failed")))

	beforeUpserts := testutil.ToFloat64(projectsUpsertedTotal)
	ObserveUpserts(3)
	ObserveUpserts(0)
	require.Equal(t, beforeUpserts+3, testutil.ToFloat64(projectsUpsertedTotal))
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "204"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "204")))
}

func TestObserveHTTPRequestBeforeInitIsSafe(t *testing.T) {
	// Collectors may be nil until Init runs; observers must not panic.
	ObserveHTTPRequest(http.MethodGet, "/x", 200, time.Millisecond)
	ObserveRun("failed")
	ObserveBranch("hit")
}
