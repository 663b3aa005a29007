package handler

import (
	"net/http"

	"github.com/delaycast/delaycast/internal/api/models"
	"github.com/delaycast/delaycast/internal/api/response"
	"github.com/delaycast/delaycast/internal/features"
)

// MetadataHandler serves the enum listing clients use to build
// requests without hardcoding the accepted values.
type MetadataHandler struct{}

// NewMetadataHandler returns the metadata handler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// GetEnums handles GET /v1/metadata/enums - enum values accepted by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}

	enums := models.Enums{
		Operators: models.AllowedOperators,
		FlightTypes: []models.FlightType{
			models.FlightTypeNational,
			models.FlightTypeInternational,
		},
		Months: months,
		Periods: []string{
			string(features.PeriodMorning),
			string(features.PeriodAfternoon),
			string(features.PeriodNight),
		},
	}
	response.JSON(w, r, http.StatusOK, enums)
}
