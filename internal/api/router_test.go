package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaycast/delaycast/internal/api"
	"github.com/delaycast/delaycast/internal/api/models"
	"github.com/delaycast/delaycast/internal/auth"
	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/prediction"
)

// testJWTService mints the tokens the admin route tests authenticate with.
func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.delaycast.io",
		Audience:   "delaycast-api",
	})
}

// julySensitiveArtifact builds a model artifact whose only positive signal is
// July departures: MES_7 flights score above the decision threshold, all
// others below it.
func julySensitiveArtifact() *modelstore.Artifact {
	schema := features.TopFeatures()
	coefficients := make([]float64, len(schema))
	for i, name := range schema {
		if name == "MES_7" {
			coefficients[i] = 4.0
		}
	}
	return &modelstore.Artifact{
		Version: modelstore.ArtifactVersion,
		Model: classifier.ModelParams{
			Features:     schema,
			Coefficients: coefficients,
			Intercept:    -2.0,
		},
		Seed:         classifier.DefaultSeed,
		TrainedAt:    time.Date(2017, 11, 1, 12, 0, 0, 0, time.UTC),
		TrainingRows: 68206,
	}
}

// newTestRouter builds a full router backed by a file store in a temp
// directory. When artifact is non-nil it is saved before the router is built
// so the first prediction lazily loads it.
func newTestRouter(t *testing.T, artifact *modelstore.Artifact) http.Handler {
	t.Helper()

	logger := zerolog.New(io.Discard)
	store := modelstore.NewFileStore(modelstore.FileStoreConfig{
		Path:   filepath.Join(t.TempDir(), "model.json"),
		Logger: logger,
	})
	if artifact != nil {
		require.NoError(t, store.Save(context.Background(), artifact))
	}

	predictionService, err := prediction.NewService(prediction.Config{
		Store:  store,
		Logger: logger,
	})
	require.NoError(t, err)

	return api.NewRouter(api.RouterConfig{
		Version:           "test",
		BuildTime:         "2024-01-01T00:00:00Z",
		Logger:            logger,
		JWTService:        testJWTService(),
		PredictionService: predictionService,
	})
}

// addAuthHeader attaches a freshly minted Bearer token.
func addAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	token, _, err := testJWTService().GenerateToken("delayctl", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, false, health.Details["modelLoaded"])
}

func TestRouter_SystemStatus_RequiresAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_SystemStatus_NoModel(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.NotNil(t, status.Model)
	assert.False(t, status.Model.Loaded)
}

func TestRouter_SystemStatus_ModelLoaded(t *testing.T) {
	router := newTestRouter(t, julySensitiveArtifact())

	// Trigger the lazy model load with a prediction first.
	body := `{"flights": [{"OPERA": "Grupo LATAM", "TIPOVUELO": "N", "MES": 3}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.NotNil(t, status.Model)
	assert.True(t, status.Model.Loaded)
	assert.Equal(t, 68206, status.Model.TrainingRows)
}

func TestRouter_Predict(t *testing.T) {
	router := newTestRouter(t, julySensitiveArtifact())

	input := models.PredictRequest{Flights: []models.Flight{
		{Opera: "Aerolineas Argentinas", TipoVuelo: "I", Mes: 7},
		{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 3},
	}}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.PredictResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0}, resp.Predict)
}

func TestRouter_Predict_NoModelServesFallback(t *testing.T) {
	router := newTestRouter(t, nil)

	body := `{"flights": [{"OPERA": "Grupo LATAM", "TIPOVUELO": "I", "MES": 7}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.PredictResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, resp.Predict)
}

func TestRouter_Predict_ValidationErrors(t *testing.T) {
	router := newTestRouter(t, julySensitiveArtifact())

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "unknown operator",
			body:      `{"flights": [{"OPERA": "Aerocondor", "TIPOVUELO": "N", "MES": 3}]}`,
			wantField: "flights[0].OPERA",
		},
		{
			name:      "bad flight type",
			body:      `{"flights": [{"OPERA": "Grupo LATAM", "TIPOVUELO": "X", "MES": 3}]}`,
			wantField: "flights[0].TIPOVUELO",
		},
		{
			name:      "month out of range",
			body:      `{"flights": [{"OPERA": "Grupo LATAM", "TIPOVUELO": "N", "MES": 13}]}`,
			wantField: "flights[0].MES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

			var problem models.Problem
			err := json.Unmarshal(w.Body.Bytes(), &problem)
			require.NoError(t, err)

			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.NotEmpty(t, problem.TraceID)
			require.Len(t, problem.Errors, 1)
			assert.Equal(t, tt.wantField, problem.Errors[0].Field)
		})
	}
}

func TestRouter_Predict_EmptyFlights(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(`{"flights": []}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "flights", problem.Errors[0].Field)
}

func TestRouter_Predict_MalformedBody(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(`{"flights": [`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, "invalid request body", problem.Detail)
}

func TestRouter_Predict_UnsupportedMediaType(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte("OPERA=Iberia&MES=7")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, models.ProblemTypeUnsupportedMedia, problem.Type)
}

func TestRouter_GetEnums(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/metadata/enums", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var enums models.Enums
	err := json.Unmarshal(w.Body.Bytes(), &enums)
	require.NoError(t, err)

	assert.Len(t, enums.Operators, 13)
	assert.Contains(t, enums.Operators, "Grupo LATAM")
	assert.Contains(t, enums.FlightTypes, models.FlightTypeNational)
	assert.Contains(t, enums.FlightTypes, models.FlightTypeInternational)
	assert.Len(t, enums.Months, 12)
	assert.Equal(t, []string{"mañana", "tarde", "noche"}, enums.Periods)
}

func TestRouter_GetModel_RequiresAuth(t *testing.T) {
	router := newTestRouter(t, julySensitiveArtifact())

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/model", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_GetModel_NoModel(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/model", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_ReloadModel(t *testing.T) {
	router := newTestRouter(t, julySensitiveArtifact())

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/model/reload", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var info models.ModelInfo
	err := json.Unmarshal(w.Body.Bytes(), &info)
	require.NoError(t, err)

	assert.True(t, info.Loaded)
	assert.Equal(t, 68206, info.TrainingRows)
	assert.Equal(t, features.TopFeatures(), info.Features)

	// The model endpoint now describes the loaded artifact.
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/model", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ReloadModel_EmptyStore(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/model/reload", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
