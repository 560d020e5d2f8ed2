package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/barberia/backoffice/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Begin("inventory:low_stock_scan").Finish(nil))
	require.Error(t, jobs.Begin("dashboard:warmup").Finish(errors.New("redis down")))

	body := scrape(t, metrics)
	assert.Contains(t, body, `barberia_jobs_total{job="inventory:low_stock_scan",status="success"} 1`)
	assert.Contains(t, body, `barberia_jobs_total{job="dashboard:warmup",status="failure"} 1`)
	assert.Contains(t, body, `barberia_job_last_success_timestamp_seconds{job="inventory:low_stock_scan"}`)
	assert.NotContains(t, body, `barberia_job_last_success_timestamp_seconds{job="dashboard:warmup"}`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `barberia_http_requests_total{code="418",method="GET",route="/test"} 1`)
	assert.Contains(t, body, `barberia_http_request_duration_seconds_bucket{route="/test"`)
	assert.Contains(t, body, `barberia_http_in_flight_requests 0`)
	assert.Contains(t, body, "go_goroutines")
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveMovement("sale_out", "applied")
	metrics.ObserveMovement("sale_out", "insufficient_stock")
	metrics.ObserveMovement("sale_out", "insufficient_stock")
	metrics.ObserveSaleCreated("appointment")

	body := scrape(t, metrics)
	assert.Contains(t, body, `barberia_inventory_movements_total{result="insufficient_stock",type="sale_out"} 2`)
	assert.Contains(t, body, `barberia_sales_created_total{source="appointment"} 1`)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.movements.WithLabelValues("sale_out", "applied")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.movements))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.ObserveMovement("in", "applied")
		metrics.ObserveSaleCreated("counter")
	})
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
