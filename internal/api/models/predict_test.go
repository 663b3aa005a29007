package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaycast/delaycast/internal/api/models"
)

func TestPredictRequest_Decode(t *testing.T) {
	body := `{"flights": [{"OPERA": "Grupo LATAM", "TIPOVUELO": "I", "MES": 7}]}`

	var req models.PredictRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.Len(t, req.Flights, 1)
	assert.Equal(t, "Grupo LATAM", req.Flights[0].Opera)
	assert.Equal(t, "I", req.Flights[0].TipoVuelo)
	assert.Equal(t, 7, req.Flights[0].Mes)
	assert.Empty(t, req.Flights[0].ScheduledAt)
}

func TestPredictRequest_ValidateOK(t *testing.T) {
	req := models.PredictRequest{Flights: []models.Flight{
		{Opera: "Aerolineas Argentinas", TipoVuelo: "N", Mes: 3},
		{Opera: "Copa Air", TipoVuelo: "I", Mes: 12, ScheduledAt: "2017-12-18 08:15:00"},
	}}

	assert.Empty(t, req.Validate())
}

func TestPredictRequest_ValidateViolations(t *testing.T) {
	tests := []struct {
		name      string
		flight    models.Flight
		wantField string
		wantCode  string
	}{
		{
			name:      "missing operator",
			flight:    models.Flight{TipoVuelo: "N", Mes: 3},
			wantField: "flights[0].OPERA",
			wantCode:  "REQUIRED",
		},
		{
			name:      "unknown operator",
			flight:    models.Flight{Opera: "Aerocondor", TipoVuelo: "N", Mes: 3},
			wantField: "flights[0].OPERA",
			wantCode:  "UNKNOWN_OPERATOR",
		},
		{
			name:      "bad flight type",
			flight:    models.Flight{Opera: "Grupo LATAM", TipoVuelo: "X", Mes: 3},
			wantField: "flights[0].TIPOVUELO",
			wantCode:  "INVALID_VALUE",
		},
		{
			name:      "missing flight type",
			flight:    models.Flight{Opera: "Grupo LATAM", Mes: 3},
			wantField: "flights[0].TIPOVUELO",
			wantCode:  "INVALID_VALUE",
		},
		{
			name:      "month too low",
			flight:    models.Flight{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 0},
			wantField: "flights[0].MES",
			wantCode:  "OUT_OF_RANGE",
		},
		{
			name:      "month too high",
			flight:    models.Flight{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 13},
			wantField: "flights[0].MES",
			wantCode:  "OUT_OF_RANGE",
		},
		{
			name:      "bad timestamp",
			flight:    models.Flight{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 3, ScheduledAt: "18-12-2017 08:15"},
			wantField: "flights[0].Fecha-I",
			wantCode:  "INVALID_TIMESTAMP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.PredictRequest{Flights: []models.Flight{tt.flight}}
			errs := req.Validate()

			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
			assert.Equal(t, tt.wantCode, errs[0].Code)
		})
	}
}

func TestPredictRequest_ValidateIndexesEveryFlight(t *testing.T) {
	req := models.PredictRequest{Flights: []models.Flight{
		{Opera: "Grupo LATAM", TipoVuelo: "I", Mes: 7},
		{Opera: "Grupo LATAM", TipoVuelo: "I", Mes: 99},
		{Opera: "Nighthawk Cargo", TipoVuelo: "Z", Mes: 1},
	}}

	errs := req.Validate()

	require.Len(t, errs, 3)
	assert.Equal(t, "flights[1].MES", errs[0].Field)
	assert.Equal(t, "flights[2].OPERA", errs[1].Field)
	assert.Equal(t, "flights[2].TIPOVUELO", errs[2].Field)
}

func TestPredictRequest_Records(t *testing.T) {
	req := models.PredictRequest{Flights: []models.Flight{
		{Opera: "Sky Airline", TipoVuelo: "N", Mes: 10, ScheduledAt: "2017-10-05 21:30:00"},
	}}

	records := req.Records()

	require.Len(t, records, 1)
	assert.Equal(t, "Sky Airline", records[0].Opera)
	assert.Equal(t, "N", records[0].TipoVuelo)
	assert.Equal(t, 10, records[0].Mes)
	assert.Equal(t, "2017-10-05 21:30:00", records[0].ScheduledAt)
	assert.Empty(t, records[0].DepartedAt)
}

func TestAllowedOperators_Complete(t *testing.T) {
	assert.Len(t, models.AllowedOperators, 13)
	assert.Contains(t, models.AllowedOperators, "Grupo LATAM")
	assert.Contains(t, models.AllowedOperators, "Iberia")
}
