package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/delaycast/delaycast/internal/api/middleware"
)

// setupTestMeter installs an in-memory reader as the global meter
// provider so tests can inspect recorded data points.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	return reader
}

// findMetric looks up a collected metric by instrument name.
func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	reader := setupTestMeter(t)

	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/flights/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/flights/77", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	total, ok := findMetric(rm, "http.server.request.total")
	require.True(t, ok, "request counter should be collected")

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)

	route, ok := dp.Attributes.Value("http.route")
	require.True(t, ok, "http.route attribute should be present")
	assert.Equal(t, "/v1/flights/{id}", route.AsString())

	status, ok := dp.Attributes.Value("http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())

	_, ok = dp.Attributes.Value("error")
	assert.False(t, ok, "successful requests carry no error attribute")
}

func TestMetrics_FlagsErrorResponses(t *testing.T) {
	reader := setupTestMeter(t)

	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", http.NoBody)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	total, ok := findMetric(rm, "http.server.request.total")
	require.True(t, ok)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	errAttr, ok := dp.Attributes.Value("error")
	require.True(t, ok, "error attribute should be present on 5xx")
	assert.True(t, errAttr.AsBool())

	// Without a chi router there is no route pattern to record.
	_, ok = dp.Attributes.Value("http.route")
	assert.False(t, ok)
}

func TestMetrics_RecordsDurationAndSize(t *testing.T) {
	reader := setupTestMeter(t)

	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	body := []byte(`{"predict":[0,1]}`)
	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/predict", http.NoBody)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	duration, ok := findMetric(rm, "http.server.request.duration")
	require.True(t, ok)
	durHist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, durHist.DataPoints, 1)
	assert.Equal(t, uint64(1), durHist.DataPoints[0].Count)

	size, ok := findMetric(rm, "http.server.response.size")
	require.True(t, ok)
	sizeHist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, sizeHist.DataPoints, 1)
	assert.Equal(t, int64(len(body)), sizeHist.DataPoints[0].Sum)
}

func TestProviderMetrics_RecordRequest(t *testing.T) {
	reader := setupTestMeter(t)

	pm, err := middleware.NewProviderMetrics()
	require.NoError(t, err)

	pm.RecordRequest("opsfeed", "list-flights", 120*time.Millisecond, nil)
	pm.RecordRequest("opsfeed", "list-flights", 5*time.Second, assert.AnError)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	total, ok := findMetric(rm, "provider.request.total")
	require.True(t, ok)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	// One data point per error value, one call each.
	require.Len(t, sum.DataPoints, 2)
	var calls int64
	for _, dp := range sum.DataPoints {
		calls += dp.Value

		name, ok := dp.Attributes.Value("provider.name")
		require.True(t, ok)
		assert.Equal(t, "opsfeed", name.AsString())
	}
	assert.Equal(t, int64(2), calls)
}
