package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/api/models"
	"github.com/delaycast/delaycast/internal/api/response"
	"github.com/delaycast/delaycast/internal/features"
	"github.com/delaycast/delaycast/internal/prediction"
)

// PredictHandler handles the scoring endpoint.
type PredictHandler struct {
	prediction *prediction.Service
	logger     zerolog.Logger
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(predictionService *prediction.Service, logger zerolog.Logger) *PredictHandler {
	return &PredictHandler{
		prediction: predictionService,
		logger:     logger,
	}
}

// Predict handles POST /v1/predict. It scores each submitted flight and
// returns one 0/1 delay label per flight, in request order.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	if len(req.Flights) == 0 {
		response.BadRequest(w, r, "flights must not be empty", []models.FieldError{
			{Field: "flights", Message: "required", Code: "REQUIRED"},
		})
		return
	}

	if fieldErrors := req.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "one or more flights failed validation", fieldErrors)
		return
	}

	predictions, err := h.prediction.Predict(r.Context(), req.Records())
	if err != nil {
		var validationErr *features.ValidationError
		if errors.As(err, &validationErr) {
			field := fmt.Sprintf("flights[%d].%s", validationErr.Index, validationErr.Field)
			response.BadRequest(w, r, "one or more flights failed validation", []models.FieldError{
				{Field: field, Message: "required", Code: "REQUIRED"},
			})
			return
		}

		h.logger.Error().Err(err).Msg("prediction failed")
		response.InternalError(w, r, "prediction failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PredictResponse{Predict: predictions})
}
