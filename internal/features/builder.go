package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/delaycast/delaycast/internal/flights"
)

// Period is the time-of-day bucket of a scheduled departure. Values keep the
// operations feed locale.
type Period string

// Period buckets.
const (
	PeriodMorning   Period = "mañana"
	PeriodAfternoon Period = "tarde"
	PeriodNight     Period = "noche"
)

// DefaultPeriod is the bucket used when the scheduled timestamp is missing
// or malformed.
const DefaultPeriod = PeriodNight

// DelayThresholdMinutes is the cutoff separating on-time departures from
// delayed ones. A flight strictly later than this is labeled delayed.
const DelayThresholdMinutes = 15.0

// ValidationError reports a record that is missing a structurally required
// field and therefore cannot be encoded.
type ValidationError struct {
	Index int    // position of the record in the input slice
	Field string // operations feed column name
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flight record %d: missing %s", e.Index, e.Field)
}

// PeriodOf buckets a scheduled departure time by hour of day:
// 05:00 to 11:59 is morning, 12:00 to 18:59 is afternoon, the rest is night.
func PeriodOf(t time.Time) Period {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 19:
		return PeriodAfternoon
	default:
		return PeriodNight
	}
}

// highSeasonRanges holds the inclusive month/day windows of the holiday
// travel season, encoded as month*100+day.
var highSeasonRanges = [][2]int{
	{1215, 1231}, // mid December through New Year
	{101, 303},   // summer holidays
	{715, 731},   // winter break
	{911, 930},   // national holidays
}

// IsHighSeason reports whether a scheduled departure falls inside a holiday
// travel window. The check is year-agnostic.
func IsHighSeason(t time.Time) bool {
	md := int(t.Month())*100 + t.Day()
	for _, r := range highSeasonRanges {
		if md >= r[0] && md <= r[1] {
			return true
		}
	}
	return false
}

// MinutesLate returns the signed difference between actual and scheduled
// departure, in minutes.
func MinutesLate(scheduled, actual time.Time) float64 {
	return actual.Sub(scheduled).Minutes()
}

// Builder derives the model feature matrix from raw flight records. It is
// stateless and safe for concurrent use.
type Builder struct{}

// NewBuilder creates a feature builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Transform encodes flight records into the model feature matrix. Row i of
// the matrix corresponds to records[i].
//
// Categorical fields (carrier, flight type, month, period of day) are
// one-hot encoded and the result is reindexed to the fixed model schema:
// the returned matrix always carries exactly the TopFeatures columns, in
// that order, whatever categories the batch exhibits. Encoded categories
// outside the schema are dropped and schema columns absent from the batch
// read zero.
//
// When withTarget is true the returned labels mark flights that departed
// more than DelayThresholdMinutes after schedule. Records whose timestamps
// cannot be parsed are labeled on time. When withTarget is false the labels
// slice is nil.
//
// A record missing its carrier, flight type or month makes Transform fail
// with a ValidationError. Missing or malformed timestamps never fail:
// the period of day falls back to DefaultPeriod and the high season
// indicator to zero.
func (b *Builder) Transform(records []flights.Record, withTarget bool) (*Matrix, []int, error) {
	for i, rec := range records {
		switch {
		case rec.Opera == "":
			return nil, nil, &ValidationError{Index: i, Field: "OPERA"}
		case rec.TipoVuelo == "":
			return nil, nil, &ValidationError{Index: i, Field: "TIPOVUELO"}
		case rec.Mes == 0:
			return nil, nil, &ValidationError{Index: i, Field: "MES"}
		}
	}

	type encoded struct {
		carrier    string
		flightType string
		month      string
		period     string
		highSeason bool
	}

	rows := make([]encoded, len(records))
	carriers := map[string]struct{}{}
	flightTypes := map[string]struct{}{}
	months := map[string]struct{}{}
	periods := map[string]struct{}{}

	for i, rec := range records {
		e := encoded{
			carrier:    CarrierColumn(rec.Opera),
			flightType: FlightTypeColumn(rec.TipoVuelo),
			month:      MonthColumn(rec.Mes),
			period:     PeriodColumn(DefaultPeriod),
		}
		if scheduled, ok := rec.Scheduled(); ok {
			e.period = PeriodColumn(PeriodOf(scheduled))
			e.highSeason = IsHighSeason(scheduled)
		}
		rows[i] = e

		carriers[e.carrier] = struct{}{}
		flightTypes[e.flightType] = struct{}{}
		months[e.month] = struct{}{}
		periods[e.period] = struct{}{}
	}

	columns := make([]string, 0, len(carriers)+len(flightTypes)+len(months)+len(periods)+1)
	columns = append(columns, sortedKeys(carriers)...)
	columns = append(columns, sortedKeys(flightTypes)...)
	columns = append(columns, sortedMonthKeys(months)...)
	columns = append(columns, sortedKeys(periods)...)
	columns = append(columns, HighSeasonColumn)

	m := NewMatrix(columns, len(records))
	for i, e := range rows {
		m.Set(i, e.carrier, 1)
		m.Set(i, e.flightType, 1)
		m.Set(i, e.month, 1)
		m.Set(i, e.period, 1)
		if e.highSeason {
			m.Set(i, HighSeasonColumn, 1)
		}
	}

	// Training and serving must see identical columns in identical order.
	m = m.Reindex(TopFeatures())

	if !withTarget {
		return m, nil, nil
	}

	labels := make([]int, len(records))
	for i, rec := range records {
		scheduled, okS := rec.Scheduled()
		actual, okA := rec.Departed()
		if okS && okA && MinutesLate(scheduled, actual) > DelayThresholdMinutes {
			labels[i] = 1
		}
	}

	return m, labels, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedMonthKeys orders month columns numerically so MES_2 precedes MES_10.
func sortedMonthKeys(set map[string]struct{}) []string {
	keys := sortedKeys(set)
	sort.Slice(keys, func(i, j int) bool {
		return monthValue(keys[i]) < monthValue(keys[j])
	})
	return keys
}

func monthValue(column string) int {
	var v int
	_, _ = fmt.Sscanf(column, monthPrefix+"%d", &v)
	return v
}
