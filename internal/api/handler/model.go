package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/api/response"
	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/prediction"
)

// ModelHandler handles model administration endpoints.
type ModelHandler struct {
	prediction *prediction.Service
	logger     zerolog.Logger
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(predictionService *prediction.Service, logger zerolog.Logger) *ModelHandler {
	return &ModelHandler{
		prediction: predictionService,
		logger:     logger,
	}
}

// GetModel handles GET /v1/admin/model - describe the model currently serving.
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	status := h.prediction.Status()
	if !status.ModelLoaded {
		response.NotFound(w, r, "no model artifact loaded")
		return
	}

	info := modelInfoFrom(status)
	response.JSON(w, r, http.StatusOK, info)
}

// ReloadModel handles POST /v1/admin/model/reload - reload the artifact from
// the store, bypassing the failed-load throttle.
func (h *ModelHandler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.prediction.Reload(r.Context()); err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			response.NotFound(w, r, "no model artifact in store")
			return
		}

		h.logger.Error().Err(err).Msg("model reload failed")
		response.ServiceUnavailable(w, r, "model reload failed")
		return
	}

	info := modelInfoFrom(h.prediction.Status())
	response.JSON(w, r, http.StatusOK, info)
}
