package agenda

import (
	"context"
	"time"
)

// BookingRepository is the persistence-side booking source. It extends
// BookingSource with a paginated variant for the raw listing endpoint.
type BookingRepository interface {
	BookingSource
	ListBookingsPage(ctx context.Context, orgID string, from, to time.Time, limit, offset int) ([]Booking, int, error)
}
