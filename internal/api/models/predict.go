package models

import (
	"fmt"
	"time"

	"github.com/delaycast/delaycast/internal/flights"
)

// AllowedOperators lists the carriers the model was trained on. Requests
// naming any other operator are rejected rather than silently scored on an
// all-zero feature row.
var AllowedOperators = []string{
	"Aerolineas Argentinas",
	"Grupo LATAM",
	"Sky Airline",
	"Copa Air",
	"Latin American Wings",
	"Avianca",
	"JetSMART SPA",
	"American Airlines",
	"Air France",
	"Qantas Airways",
	"Gol Trans",
	"United Airlines",
	"Iberia",
}

var allowedOperatorSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(AllowedOperators))
	for _, op := range AllowedOperators {
		set[op] = struct{}{}
	}
	return set
}()

// Flight is a single flight to score. OPERA, TIPOVUELO and MES are required;
// Fecha-I is optional and, when present, must use the operations feed
// timestamp layout.
type Flight struct {
	Opera       string `json:"OPERA"`
	TipoVuelo   string `json:"TIPOVUELO"`
	Mes         int    `json:"MES"`
	ScheduledAt string `json:"Fecha-I,omitempty"`
}

// PredictRequest is the request body for POST /v1/predict.
type PredictRequest struct {
	Flights []Flight `json:"flights"`
}

// PredictResponse is the response body for POST /v1/predict. Predict holds
// one 0/1 delay label per submitted flight, in request order.
type PredictResponse struct {
	Predict []int `json:"predict"`
}

// Validate checks every flight in the request and returns one FieldError per
// violation. An empty slice means the request is valid.
func (r *PredictRequest) Validate() []FieldError {
	var errs []FieldError
	for i, f := range r.Flights {
		field := func(name string) string {
			return fmt.Sprintf("flights[%d].%s", i, name)
		}
		if f.Opera == "" {
			errs = append(errs, FieldError{Field: field("OPERA"), Message: "required", Code: "REQUIRED"})
		} else if _, ok := allowedOperatorSet[f.Opera]; !ok {
			errs = append(errs, FieldError{Field: field("OPERA"), Message: "unknown operator", Code: "UNKNOWN_OPERATOR"})
		}
		switch FlightType(f.TipoVuelo) {
		case FlightTypeNational, FlightTypeInternational:
		default:
			errs = append(errs, FieldError{Field: field("TIPOVUELO"), Message: "must be N or I", Code: "INVALID_VALUE"})
		}
		if f.Mes < 1 || f.Mes > 12 {
			errs = append(errs, FieldError{Field: field("MES"), Message: "must be between 1 and 12", Code: "OUT_OF_RANGE"})
		}
		if f.ScheduledAt != "" {
			if _, err := time.Parse(flights.TimeLayout, f.ScheduledAt); err != nil {
				errs = append(errs, FieldError{Field: field("Fecha-I"), Message: "must use layout " + flights.TimeLayout, Code: "INVALID_TIMESTAMP"})
			}
		}
	}
	return errs
}

// Records converts the request into flight records for feature building.
func (r *PredictRequest) Records() []flights.Record {
	records := make([]flights.Record, len(r.Flights))
	for i, f := range r.Flights {
		records[i] = flights.Record{
			Opera:       f.Opera,
			TipoVuelo:   f.TipoVuelo,
			Mes:         f.Mes,
			ScheduledAt: f.ScheduledAt,
		}
	}
	return records
}
