package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepoPG reads bookings from the bookings table. Bookings without a start
// timestamp have no position in the range, so they are included in every
// range query for their org (the aggregations bucket them under "today").
type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const bookingColumns = `id, status, start_at, end_at, created_at,
	resource_id, resource_name, provider, patient_id, patient, patient_name`

func (r *RepoPG) ListBookings(ctx context.Context, orgID string, from, to time.Time) ([]Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
		WHERE org_id = $1 AND (start_at IS NULL OR (start_at >= $2 AND start_at < $3))
		ORDER BY start_at NULLS FIRST`, bookingColumns)

	rows, err := r.pool.Query(ctx, query, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *RepoPG) ListBookingsPage(ctx context.Context, orgID string, from, to time.Time, limit, offset int) ([]Booking, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM bookings
		WHERE org_id = $1 AND (start_at IS NULL OR (start_at >= $2 AND start_at < $3))`
	if err := r.pool.QueryRow(ctx, countQuery, orgID, from, to).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings
		WHERE org_id = $1 AND (start_at IS NULL OR (start_at >= $2 AND start_at < $3))
		ORDER BY start_at NULLS FIRST
		LIMIT $4 OFFSET $5`, bookingColumns)

	rows, err := r.pool.Query(ctx, query, orgID, from, to, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query bookings page: %w", err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		var (
			b                                  Booking
			status                             *string
			startAt, endAt, createdAt          *time.Time
			resourceID, resourceName, provider *string
			patientID, patient, patientName    *string
		)
		if err := rows.Scan(&b.ID, &status, &startAt, &endAt, &createdAt,
			&resourceID, &resourceName, &provider, &patientID, &patient, &patientName); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Status = derefStr(status)
		b.StartAt = formatInstant(startAt)
		b.EndAt = formatInstant(endAt)
		b.CreatedAt = formatInstant(createdAt)
		b.ResourceID = derefStr(resourceID)
		b.ResourceName = derefStr(resourceName)
		b.Provider = derefStr(provider)
		b.PatientID = derefStr(patientID)
		b.Patient = derefStr(patient)
		b.PatientName = derefStr(patientName)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return bookings, nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
