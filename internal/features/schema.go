// Package features turns raw flight records into the numeric feature matrix
// consumed by the delay classifier.
package features

import "strconv"

// Column name prefixes for one-hot encoded categorical fields. They follow
// the operations feed column names so that feature names match the ones the
// model was originally selected on.
const (
	carrierPrefix    = "OPERA_"
	flightTypePrefix = "TIPOVUELO_"
	monthPrefix      = "MES_"
	periodPrefix     = "period_day_"
)

// HighSeasonColumn is the binary column marking scheduled departures inside
// a holiday travel window.
const HighSeasonColumn = "high_season"

// CarrierColumn returns the one-hot column name for an operating carrier.
func CarrierColumn(opera string) string {
	return carrierPrefix + opera
}

// FlightTypeColumn returns the one-hot column name for a flight type.
func FlightTypeColumn(tipoVuelo string) string {
	return flightTypePrefix + tipoVuelo
}

// MonthColumn returns the one-hot column name for a scheduled month.
func MonthColumn(mes int) string {
	return monthPrefix + strconv.Itoa(mes)
}

// PeriodColumn returns the one-hot column name for a period of day.
func PeriodColumn(p Period) string {
	return periodPrefix + string(p)
}

// TopFeatures returns the fixed model input schema, in order. The ten
// columns were selected by feature importance on historical Santiago
// departures and every trained model uses exactly this layout.
func TopFeatures() []string {
	return []string{
		"OPERA_Latin American Wings",
		"MES_7",
		"MES_10",
		"OPERA_Grupo LATAM",
		"MES_12",
		"TIPOVUELO_I",
		"MES_4",
		"MES_11",
		"OPERA_Sky Airline",
		"OPERA_Copa Air",
	}
}

// Matrix is a dense numeric matrix with named columns. Rows correspond to
// flight records in input order.
type Matrix struct {
	columns []string
	index   map[string]int
	rows    [][]float64
}

// NewMatrix creates a zero-filled matrix with the given columns and row count.
func NewMatrix(columns []string, numRows int) *Matrix {
	index := make(map[string]int, len(columns))
	cols := make([]string, len(columns))
	copy(cols, columns)
	for i, name := range cols {
		index[name] = i
	}

	rows := make([][]float64, numRows)
	for i := range rows {
		rows[i] = make([]float64, len(cols))
	}

	return &Matrix{columns: cols, index: index, rows: rows}
}

// Columns returns the column names in order.
func (m *Matrix) Columns() []string {
	cols := make([]string, len(m.columns))
	copy(cols, m.columns)
	return cols
}

// NumRows returns the number of rows.
func (m *Matrix) NumRows() int {
	return len(m.rows)
}

// NumColumns returns the number of columns.
func (m *Matrix) NumColumns() int {
	return len(m.columns)
}

// ColumnIndex returns the position of the named column.
func (m *Matrix) ColumnIndex(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Set assigns a value by row and column name. Unknown columns are ignored,
// mirroring the fill-with-zero semantics of Reindex.
func (m *Matrix) Set(row int, column string, value float64) {
	if i, ok := m.index[column]; ok {
		m.rows[row][i] = value
	}
}

// At returns the value at the given row for the named column. Unknown
// columns read as zero.
func (m *Matrix) At(row int, column string) float64 {
	i, ok := m.index[column]
	if !ok {
		return 0
	}
	return m.rows[row][i]
}

// Row returns the values of one row in column order. The slice is backed by
// the matrix and must not be modified.
func (m *Matrix) Row(i int) []float64 {
	return m.rows[i]
}

// Select returns a new matrix containing the given rows, in the given
// order, with the same columns.
func (m *Matrix) Select(rows []int) *Matrix {
	out := NewMatrix(m.columns, len(rows))
	for i, src := range rows {
		copy(out.rows[i], m.rows[src])
	}
	return out
}

// Reindex returns a new matrix with exactly the requested columns in the
// requested order. Columns absent from the receiver are filled with zeros;
// columns not requested are dropped.
func (m *Matrix) Reindex(columns []string) *Matrix {
	out := NewMatrix(columns, len(m.rows))
	for outCol, name := range out.columns {
		srcCol, ok := m.index[name]
		if !ok {
			continue
		}
		for row := range m.rows {
			out.rows[row][outCol] = m.rows[row][srcCol]
		}
	}
	return out
}
