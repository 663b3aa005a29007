package flights

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Column headers of the operations feed CSV export.
const (
	colScheduledAt  = "Fecha-I"
	colDepartedAt   = "Fecha-O"
	colFlightNumber = "Vlo-I"
	colMes          = "MES"
	colTipoVuelo    = "TIPOVUELO"
	colOpera        = "OPERA"
)

// ErrMissingColumn is returned when a CSV file lacks a required header.
var ErrMissingColumn = errors.New("missing required column")

// CSVSource reads flight records from an operations feed CSV export.
// Rows with a malformed month are skipped rather than failing the read,
// since historical exports are known to contain stray rows.
type CSVSource struct {
	path   string
	logger zerolog.Logger
}

// NewCSVSource creates a Source backed by the CSV file at path.
func NewCSVSource(path string, logger zerolog.Logger) *CSVSource {
	return &CSVSource{path: path, logger: logger}
}

// List reads flight records from the CSV file.
func (s *CSVSource) List(_ context.Context, opts ListOptions) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{colScheduledAt, colMes, colTipoVuelo, colOpera} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	line := 1
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			s.logger.Warn().Err(err).Int("line", line).Msg("skipping unreadable CSV row")
			skipped++
			continue
		}

		mes, err := strconv.Atoi(field(row, colMes))
		if err != nil {
			s.logger.Warn().Int("line", line).Str("mes", field(row, colMes)).Msg("skipping row with malformed month")
			skipped++
			continue
		}

		rec := Record{
			Opera:        field(row, colOpera),
			TipoVuelo:    field(row, colTipoVuelo),
			Mes:          mes,
			FlightNumber: field(row, colFlightNumber),
			ScheduledAt:  field(row, colScheduledAt),
			DepartedAt:   field(row, colDepartedAt),
		}
		if opts.Opera != "" && rec.Opera != opts.Opera {
			continue
		}
		if opts.Mes != 0 && rec.Mes != opts.Mes {
			continue
		}
		records = append(records, rec)
		if opts.Limit > 0 && len(records) == opts.Limit {
			break
		}
	}

	if skipped > 0 {
		s.logger.Info().Int("skipped", skipped).Int("loaded", len(records)).Str("path", s.path).Msg("loaded flight records from CSV")
	}

	return records, nil
}
