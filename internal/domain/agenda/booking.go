package agenda

import (
	"time"
)

// Booking is a single appointment record as delivered by the booking store
// or an external calendar provider. Timestamps stay as the provider's ISO
// strings; every aggregation parses them leniently and degrades on garbage
// instead of failing. Bookings are never mutated.
type Booking struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	StartAt      string `json:"start_at,omitempty"`
	EndAt        string `json:"end_at,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceName string `json:"resource_name,omitempty"`
	Provider     string `json:"provider,omitempty"`
	PatientID    string `json:"patient_id,omitempty"`
	Patient      string `json:"patient,omitempty"`
	PatientName  string `json:"patient_name,omitempty"`
}

// DefaultResourceLabel and DefaultPatientLabel are the placeholder labels
// used when a booking carries no identifier at all. They are display
// strings, not sentinels.
const (
	DefaultResourceLabel = "Sin recurso"
	DefaultPatientLabel  = "Sin paciente"
)

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601 timestamp string. The second return value
// is false for empty or unparseable input.
func ParseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayKey formats an instant as YYYY-MM-DD in the clinic's timezone. Day
// boundaries follow the clinic's local day, not UTC, so late-evening
// bookings do not leak into the next day.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// startOfDay returns midnight of t's civil date in loc, expressed in UTC so
// day differences are exact 24h multiples.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// resourceKey groups bookings by the serving resource.
func resourceKey(b Booking) string {
	switch {
	case b.ResourceID != "":
		return b.ResourceID
	case b.ResourceName != "":
		return b.ResourceName
	default:
		return DefaultResourceLabel
	}
}

func resourceName(b Booking) string {
	switch {
	case b.ResourceName != "":
		return b.ResourceName
	case b.Provider != "":
		return b.Provider
	default:
		return resourceKey(b)
	}
}

// resourceLabel picks the display label for summary grouping: name, then
// provider, then raw id, then the caller-supplied fallback.
func resourceLabel(b Booking, fallback string) string {
	switch {
	case b.ResourceName != "":
		return b.ResourceName
	case b.Provider != "":
		return b.Provider
	case b.ResourceID != "":
		return b.ResourceID
	default:
		return fallback
	}
}

// patientKey groups bookings by patient.
func patientKey(b Booking) string {
	switch {
	case b.PatientID != "":
		return b.PatientID
	case b.Patient != "":
		return b.Patient
	default:
		return DefaultPatientLabel
	}
}

func patientName(b Booking) string {
	if b.PatientName != "" {
		return b.PatientName
	}
	return patientKey(b)
}

// Clock abstracts wall-clock time so aggregations that depend on "today"
// (day-bucket fallback, recency decay) stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
