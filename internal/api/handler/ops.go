// Package handler provides HTTP handlers for the DelayCast API.
package handler

import (
	"net/http"
	"time"

	"github.com/delaycast/delaycast/internal/api/models"
	"github.com/delaycast/delaycast/internal/api/response"
	"github.com/delaycast/delaycast/internal/prediction"
)

// OpsHandler serves the health probes and the status endpoint.
type OpsHandler struct {
	version    string
	buildTime  string
	prediction *prediction.Service
}

// NewOpsHandler builds the handler. The prediction service feeds the
// model section of the status endpoint and may be nil.
func NewOpsHandler(version, buildTime string, predictionService *prediction.Service) *OpsHandler {
	return &OpsHandler{
		version:    version,
		buildTime:  buildTime,
		prediction: predictionService,
	}
}

// HealthCheck handles GET /v1/ops/health. The liveness body is pinned
// to {"status":"OK"} for deploy probes.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{Status: models.HealthStatusOK})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready as
// soon as it accepts traffic: without a model artifact it serves
// on-time fallback predictions, so a missing model is reported in the
// details rather than failing the probe.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   &now,
	}
	if h.prediction != nil {
		health.Details = map[string]interface{}{
			"modelLoaded": h.prediction.Status().ModelLoaded,
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - model and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
		Subsystems: []models.SubsystemStatus{
			{Name: "api", Status: models.HealthStatusOK},
		},
	}

	if h.prediction != nil {
		modelStatus := h.prediction.Status()
		info := modelInfoFrom(modelStatus)
		status.Model = &info

		storeStatus := models.SubsystemStatus{Name: "model-store", Status: models.HealthStatusOK}
		if !modelStatus.ModelLoaded {
			detail := "no model artifact loaded, serving on-time fallback"
			storeStatus.Status = models.HealthStatusDegraded
			storeStatus.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
		status.Subsystems = append(status.Subsystems, storeStatus)
	}

	response.JSON(w, r, http.StatusOK, status)
}

// modelInfoFrom maps a prediction service status to the API model.
func modelInfoFrom(s prediction.Status) models.ModelInfo {
	info := models.ModelInfo{
		Loaded:       s.ModelLoaded,
		TrainingRows: s.TrainingRows,
		Features:     s.Features,
	}
	if !s.TrainedAt.IsZero() {
		ts := models.Timestamp(s.TrainedAt)
		info.TrainedAt = &ts
	}
	if s.Metrics != nil {
		accuracy := s.Metrics.Accuracy
		recall := s.Metrics.Recall
		f1 := s.Metrics.F1
		info.Accuracy = &accuracy
		info.Recall = &recall
		info.F1 = &f1
	}
	return info
}
