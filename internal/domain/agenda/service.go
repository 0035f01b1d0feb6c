package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidQuery marks request-side validation failures. Handlers map
// errors wrapping it to 400; anything else from a report is a source
// failure and maps to 500.
var ErrInvalidQuery = errors.New("invalid query")

// BookingSource supplies raw booking rows for an org and date range. The
// Postgres repository and the external calendar client both implement it.
type BookingSource interface {
	ListBookings(ctx context.Context, orgID string, from, to time.Time) ([]Booking, error)
}

// Query carries the caller-facing parameters shared by every report.
type Query struct {
	OrgID string
	From  string // YYYY-MM-DD, inclusive
	To    string // YYYY-MM-DD, exclusive upper day
	TZ    string // IANA name; empty uses the service default
}

// Service validates report queries, fetches bookings, and runs the pure
// aggregations. It holds no per-request state.
type Service struct {
	source    BookingSource
	clock     Clock
	defaultTZ string
}

// NewService creates a Service. clock may be nil, in which case the system
// clock is used. defaultTZ applies when a query omits tz.
func NewService(source BookingSource, clock Clock, defaultTZ string) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if defaultTZ == "" {
		defaultTZ = "America/Mexico_City"
	}
	return &Service{source: source, clock: clock, defaultTZ: defaultTZ}
}

// resolve validates a query and loads its bookings. The core aggregations
// never error; everything that can fail fails here.
func (s *Service) resolve(ctx context.Context, q Query) ([]Booking, *time.Location, error) {
	if q.OrgID == "" {
		return nil, nil, fmt.Errorf("%w: org_id is required", ErrInvalidQuery)
	}

	loc, err := s.Location(q.TZ)
	if err != nil {
		return nil, nil, err
	}

	from, err := time.ParseInLocation("2006-01-02", q.From, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid from date %q", ErrInvalidQuery, q.From)
	}
	to, err := time.ParseInLocation("2006-01-02", q.To, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid to date %q", ErrInvalidQuery, q.To)
	}
	if to.Before(from) {
		return nil, nil, fmt.Errorf("%w: to date %s precedes from date %s", ErrInvalidQuery, q.To, q.From)
	}

	// Upper bound is exclusive of the day after "to" so the whole last
	// local day is included.
	bookings, err := s.source.ListBookings(ctx, q.OrgID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, loc, nil
}

// Location resolves an IANA timezone name, falling back to the service
// default when empty. Every endpoint resolves timezones through here so a
// given date range always covers the same row window.
func (s *Service) Location(tz string) (*time.Location, error) {
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q", ErrInvalidQuery, tz)
	}
	return loc, nil
}

// Summary produces the per-day and per-resource KPI report.
func (s *Service) Summary(ctx context.Context, q Query, resourceFallback string) (*AgendaSummary, error) {
	bookings, loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return ComputeAgendaSummary(q.OrgID, q.From, q.To, loc, bookings, resourceFallback, s.clock.Now()), nil
}

// RatesByResource produces the ranked resource no-show report.
func (s *Service) RatesByResource(ctx context.Context, q Query, minN int) (*RateReport, error) {
	bookings, loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return ComputeRatesByResource(q.OrgID, q.From, q.To, loc.String(), bookings, minN), nil
}

// RatesByPatient produces the ranked patient no-show report.
func (s *Service) RatesByPatient(ctx context.Context, q Query, minN int) (*RateReport, error) {
	bookings, loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return ComputeRatesByPatient(q.OrgID, q.From, q.To, loc.String(), bookings, minN), nil
}

// PatientRisk produces the ranked patient risk report.
func (s *Service) PatientRisk(ctx context.Context, q Query, minN, top int) ([]PatientRiskRow, error) {
	bookings, loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if top <= 0 {
		top = DefaultRiskTop
	}
	return ComputePatientRisk(q.OrgID, q.From, q.To, loc, bookings, minN, top, s.clock.Now()), nil
}

// PatientTrend returns one patient's weekly no-show series with its recent
// delta. A patient with no bookings in the window gets an empty series and
// a zero delta, not an error.
func (s *Service) PatientTrend(ctx context.Context, q Query, patient string, recentWeeks int) (*PatientTrend, error) {
	if patient == "" {
		return nil, fmt.Errorf("%w: patient key is required", ErrInvalidQuery)
	}
	bookings, _, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if recentWeeks <= 0 {
		recentWeeks = DefaultRecentWeeks
	}
	series := WeeklyRatesByPatient(bookings)[patient]
	if series == nil {
		series = []WeekRate{}
	}
	return &PatientTrend{
		PatientKey:  patient,
		Weeks:       series,
		RecentWeeks: recentWeeks,
		Delta:       round3(DeltaRecent(series, recentWeeks)),
	}, nil
}

// PatientTrend is one patient's weekly no-show series and its trend delta.
type PatientTrend struct {
	PatientKey  string     `json:"patient_key"`
	Weeks       []WeekRate `json:"weeks"`
	RecentWeeks int        `json:"recent_weeks"`
	Delta       float64    `json:"delta"`
}

// PredictedRiskRow is a risk row adjusted by the patient's recent trend.
type PredictedRiskRow struct {
	PatientRiskRow
	TrendDelta    float64 `json:"trend_delta"`
	AdjustedScore float64 `json:"adjusted_score"`
	AdjustedBand  string  `json:"adjusted_band"`
}

// PredictedRisk combines the risk scorer with the weekly trend signal:
// adjusted = clamp(risk + 0.5*delta, 0, 1). The half-weight keeps the
// trend a nudge rather than a driver; like the base score this is a
// decision-support heuristic, not a calibrated prediction.
func (s *Service) PredictedRisk(ctx context.Context, q Query, minN, top, recentWeeks int) ([]PredictedRiskRow, error) {
	bookings, loc, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if top <= 0 {
		top = DefaultRiskTop
	}
	if recentWeeks <= 0 {
		recentWeeks = DefaultRecentWeeks
	}

	risks := ComputePatientRisk(q.OrgID, q.From, q.To, loc, bookings, minN, top, s.clock.Now())
	weekly := WeeklyRatesByPatient(bookings)

	rows := make([]PredictedRiskRow, 0, len(risks))
	for _, r := range risks {
		delta := DeltaRecent(weekly[r.PatientKey], recentWeeks)
		adjusted := round3(clamp01(r.RiskScore + 0.5*delta))
		rows = append(rows, PredictedRiskRow{
			PatientRiskRow: r,
			TrendDelta:     round3(delta),
			AdjustedScore:  adjusted,
			AdjustedBand:   riskBand(adjusted),
		})
	}
	return rows, nil
}
