// Package models holds the request and response bodies of the DelayCast API.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// HealthStatus classifies a service or subsystem check.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// FlightType represents the flight type code used by the operations feed.
type FlightType string

const (
	FlightTypeNational      FlightType = "N"
	FlightTypeInternational FlightType = "I"
)

// Health represents the health status of the service. Time is a pointer so
// the liveness endpoint can respond with a bare {"status":"OK"} body.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    *Timestamp             `json:"time,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SubsystemStatus reports one dependency check inside SystemStatus.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// SystemStatus is the authenticated status endpoint's body.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Model      *ModelInfo        `json:"model,omitempty"`
}

// ModelInfo describes the classification model currently loaded for serving.
type ModelInfo struct {
	Loaded       bool       `json:"loaded"`
	TrainedAt    *Timestamp `json:"trainedAt,omitempty"`
	TrainingRows int        `json:"trainingRows,omitempty"`
	Features     []string   `json:"features,omitempty"`
	Accuracy     *float64   `json:"accuracy,omitempty"`
	Recall       *float64   `json:"recall,omitempty"`
	F1           *float64   `json:"f1,omitempty"`
}

// Enums lists the enum values accepted by the API, plus the period-of-day
// buckets the feature builder derives from Fecha-I.
type Enums struct {
	Operators   []string     `json:"operators"`
	FlightTypes []FlightType `json:"flightTypes"`
	Months      []int        `json:"months"`
	Periods     []string     `json:"periods"`
}

// Timestamp marshals as an RFC 3339 string in JSON payloads.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, time.Time(t).Format(time.RFC3339)), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	unquoted, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a JSON string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, unquoted)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time converts back to the standard library representation.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
