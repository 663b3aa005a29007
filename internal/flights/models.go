// Package flights provides flight operation records and their persistence.
package flights

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoRecords is returned when a query matches nothing.
var ErrNoRecords = errors.New("no flight records found")

// TimeLayout is the timestamp layout used by the airline operations feed.
// Timestamps are local to the departure airport and carry no zone offset.
const TimeLayout = "2006-01-02 15:04:05"

// Record represents one scheduled flight operation as delivered by the
// airline operations feed. Timestamps are kept as raw feed strings because
// upstream data is occasionally missing or malformed; consumers treat
// unparseable timestamps as absent.
type Record struct {
	// Opera is the operating carrier name, e.g. "Grupo LATAM".
	Opera string

	// TipoVuelo is the flight type: "N" for national, "I" for international.
	TipoVuelo string

	// Mes is the scheduled month of operation, 1 through 12.
	Mes int

	// FlightNumber is the scheduled flight number. Optional; used for
	// de-duplication during ingestion.
	FlightNumber string

	// ScheduledAt is the scheduled departure timestamp in TimeLayout.
	ScheduledAt string

	// DepartedAt is the actual departure timestamp in TimeLayout.
	// Empty for flights that have not yet operated.
	DepartedAt string
}

// Validate reports whether the record carries the fields every downstream
// consumer requires. Timestamp contents are deliberately not validated here.
func (r Record) Validate() error {
	if r.Opera == "" {
		return fmt.Errorf("record is missing carrier: %w", ErrInvalidRecord)
	}
	if r.TipoVuelo == "" {
		return fmt.Errorf("record is missing flight type: %w", ErrInvalidRecord)
	}
	if r.Mes < 1 || r.Mes > 12 {
		return fmt.Errorf("record has month %d outside 1..12: %w", r.Mes, ErrInvalidRecord)
	}
	return nil
}

// ErrInvalidRecord is returned by Validate for records that cannot be used.
var ErrInvalidRecord = errors.New("invalid flight record")

// Scheduled parses the scheduled departure timestamp.
func (r Record) Scheduled() (time.Time, bool) {
	t, err := time.Parse(TimeLayout, r.ScheduledAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Departed parses the actual departure timestamp.
func (r Record) Departed() (time.Time, bool) {
	t, err := time.Parse(TimeLayout, r.DepartedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
