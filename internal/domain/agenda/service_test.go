package agenda

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubSource struct {
	bookings []Booking
	err      error

	gotOrg  string
	gotFrom time.Time
	gotTo   time.Time
}

func (s *stubSource) ListBookings(_ context.Context, orgID string, from, to time.Time) ([]Booking, error) {
	s.gotOrg = orgID
	s.gotFrom = from
	s.gotTo = to
	return s.bookings, s.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestService_Summary(t *testing.T) {
	src := &stubSource{bookings: fixtureBookings()}
	svc := NewService(src, fixedClock{fixtureNow}, "America/Mexico_City")

	s, err := svc.Summary(context.Background(), Query{OrgID: "org-1", From: "2024-05-01", To: "2024-05-03"}, DefaultResourceLabel)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Totals.Total != 4 || s.Totals.AvgDurationMin != 55 {
		t.Errorf("totals = %+v", s.Totals)
	}
	if src.gotOrg != "org-1" {
		t.Errorf("source queried for org %q", src.gotOrg)
	}
	// The fetch window covers the whole last local day.
	if !src.gotTo.Equal(src.gotFrom.AddDate(0, 0, 3)) {
		t.Errorf("fetch window = [%s, %s)", src.gotFrom, src.gotTo)
	}
}

func TestService_QueryValidation(t *testing.T) {
	svc := NewService(&stubSource{}, fixedClock{fixtureNow}, "")

	cases := []struct {
		name    string
		q       Query
		wantSub string
	}{
		{"missing org", Query{From: "2024-05-01", To: "2024-05-03"}, "org_id"},
		{"bad timezone", Query{OrgID: "o", From: "2024-05-01", To: "2024-05-03", TZ: "Mars/Olympus"}, "timezone"},
		{"bad from", Query{OrgID: "o", From: "01/05/2024", To: "2024-05-03"}, "from date"},
		{"bad to", Query{OrgID: "o", From: "2024-05-01", To: "mayo"}, "to date"},
		{"inverted range", Query{OrgID: "o", From: "2024-05-03", To: "2024-05-01"}, "precedes"},
	}
	for _, tc := range cases {
		_, err := svc.Summary(context.Background(), tc.q, DefaultResourceLabel)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantSub) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.wantSub)
		}
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%s: error %q is not marked as a query error", tc.name, err)
		}
	}
}

func TestService_DefaultTimezone(t *testing.T) {
	src := &stubSource{}
	svc := NewService(src, fixedClock{fixtureNow}, "")

	r, err := svc.RatesByResource(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-03"}, 0)
	if err != nil {
		t.Fatalf("RatesByResource: %v", err)
	}
	if r.TZ != "America/Mexico_City" {
		t.Errorf("tz = %q, want default America/Mexico_City", r.TZ)
	}
	// from parsed in the default zone: local midnight is 06:00 UTC.
	if src.gotFrom.UTC().Hour() != 6 {
		t.Errorf("from = %s, want local midnight in Mexico City", src.gotFrom.UTC())
	}
}

func TestService_SourceError(t *testing.T) {
	svc := NewService(&stubSource{err: errors.New("pool closed")}, fixedClock{fixtureNow}, "")
	_, err := svc.PatientRisk(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-03"}, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "pool closed") {
		t.Errorf("err = %v, want wrapped source error", err)
	}
	if errors.Is(err, ErrInvalidQuery) {
		t.Errorf("source failure classified as a query error: %v", err)
	}
}

func TestService_PatientTrend(t *testing.T) {
	src := &stubSource{bookings: []Booking{
		{PatientID: "p1", Status: "completed", StartAt: "2024-05-01T10:00:00Z"},
		{PatientID: "p1", Status: "no_show", StartAt: "2024-05-08T10:00:00Z"},
	}}
	svc := NewService(src, fixedClock{fixtureNow}, "")

	tr, err := svc.PatientTrend(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-31"}, "p1", 1)
	if err != nil {
		t.Fatalf("PatientTrend: %v", err)
	}
	if len(tr.Weeks) != 2 {
		t.Fatalf("weeks = %d, want 2", len(tr.Weeks))
	}
	// Recent week rate 1, preceding week rate 0.
	if tr.Delta != 1 {
		t.Errorf("delta = %v, want 1", tr.Delta)
	}

	// Unknown patient: empty series, zero delta, no error.
	tr, err = svc.PatientTrend(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-31"}, "ghost", 0)
	if err != nil {
		t.Fatalf("PatientTrend(ghost): %v", err)
	}
	if len(tr.Weeks) != 0 || tr.Delta != 0 {
		t.Errorf("ghost trend = %+v, want empty series", tr)
	}
	if tr.RecentWeeks != DefaultRecentWeeks {
		t.Errorf("recent_weeks = %d, want default", tr.RecentWeeks)
	}

	if _, err := svc.PatientTrend(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-31"}, "", 0); err == nil {
		t.Error("empty patient key: expected error")
	}
}

func TestService_PredictedRisk(t *testing.T) {
	// Three weeks of history, worsening: week rates 0, 1, 1.
	src := &stubSource{bookings: []Booking{
		{PatientID: "p1", Status: "completed", StartAt: "2024-05-01T10:00:00Z"},
		{PatientID: "p1", Status: "no_show", StartAt: "2024-05-08T10:00:00Z"},
		{PatientID: "p1", Status: "no_show", StartAt: "2024-05-15T10:00:00Z"},
	}}
	svc := NewService(src, fixedClock{time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}, "")

	rows, err := svc.PredictedRisk(context.Background(), Query{OrgID: "o", From: "2024-05-01", To: "2024-05-31"}, 3, 0, 1)
	if err != nil {
		t.Fatalf("PredictedRisk: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	// Recent window is the last week (rate 1), preceding week also rate 1.
	if r.TrendDelta != 0 {
		t.Errorf("trend_delta = %v, want 0", r.TrendDelta)
	}
	if r.AdjustedScore != r.RiskScore {
		t.Errorf("adjusted = %v, base = %v, want equal with zero delta", r.AdjustedScore, r.RiskScore)
	}
	if r.AdjustedBand != riskBand(r.AdjustedScore) {
		t.Errorf("adjusted_band = %q", r.AdjustedBand)
	}
	if r.AdjustedScore < 0 || r.AdjustedScore > 1 {
		t.Errorf("adjusted_score out of bounds: %v", r.AdjustedScore)
	}
}
