package flights

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores flight records in the flight_records table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps the given connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List retrieves flight records matching the given options, ordered by
// scheduled departure.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `
		SELECT opera, tipo_vuelo, mes, flight_number, scheduled_at, departed_at
		FROM flight_records
	`

	var conds []string
	var args []interface{}
	if opts.Opera != "" {
		args = append(args, opts.Opera)
		conds = append(conds, fmt.Sprintf("opera = $%d", len(args)))
	}
	if opts.Mes != 0 {
		args = append(args, opts.Mes)
		conds = append(conds, fmt.Sprintf("mes = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY scheduled_at"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flight records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.Opera,
			&rec.TipoVuelo,
			&rec.Mes,
			&rec.FlightNumber,
			&rec.ScheduledAt,
			&rec.DepartedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flight record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flight records: %w", err)
	}

	return records, nil
}

// Insert stores the given records, skipping rows already present for the
// same carrier, flight number and scheduled departure.
func (r *PostgresRepository) Insert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO flight_records (opera, tipo_vuelo, mes, flight_number, scheduled_at, departed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (opera, flight_number, scheduled_at) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.Opera, rec.TipoVuelo, rec.Mes, rec.FlightNumber, rec.ScheduledAt, rec.DepartedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored := 0
	for range records {
		ct, err := results.Exec()
		if err != nil {
			return stored, fmt.Errorf("failed to insert flight record: %w", err)
		}
		stored += int(ct.RowsAffected())
	}

	return stored, nil
}
