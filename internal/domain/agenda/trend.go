package agenda

import (
	"fmt"
	"sort"
	"time"
)

// DefaultRecentWeeks is the window length for week-over-week trend deltas.
const DefaultRecentWeeks = 4

// WeekRate is one week's no-show rate in a patient's series.
type WeekRate struct {
	Week   string  `json:"week"`
	Total  int     `json:"total"`
	NoShow int     `json:"no_show"`
	Rate   float64 `json:"rate"`
}

// WeekKey returns an ISO-like year-week label ("2024-W18") for an instant.
// The computation pivots on the Thursday of the instant's UTC week and is
// deliberately UTC-based and DST-naive: trend buckets are an approximation
// and must stay one, since downstream deltas were tuned against it.
func WeekKey(t time.Time) string {
	u := t.UTC()
	// Monday-based weekday index, then shift to that week's Thursday.
	wd := (int(u.Weekday()) + 6) % 7
	th := u.AddDate(0, 0, 3-wd)
	week := (th.YearDay()-1)/7 + 1
	return fmt.Sprintf("%d-W%02d", th.Year(), week)
}

// WeeklyRatesByPatient buckets each patient's bookings into weeks and
// computes the per-week no-show rate. Bookings without a parseable start
// cannot be placed in a week and are skipped. Each patient's series is
// returned in chronological week order.
func WeeklyRatesByPatient(bookings []Booking) map[string][]WeekRate {
	type weekAccum struct {
		total  int
		noShow int
	}
	perPatient := map[string]map[string]*weekAccum{}

	for _, b := range bookings {
		start, ok := ParseInstant(b.StartAt)
		if !ok {
			continue
		}
		key := patientKey(b)
		weeks, ok := perPatient[key]
		if !ok {
			weeks = map[string]*weekAccum{}
			perPatient[key] = weeks
		}
		wk := WeekKey(start)
		wa, ok := weeks[wk]
		if !ok {
			wa = &weekAccum{}
			weeks[wk] = wa
		}
		wa.total++
		if Classify(b.Status) == BucketNoShow {
			wa.noShow++
		}
	}

	out := make(map[string][]WeekRate, len(perPatient))
	for key, weeks := range perPatient {
		series := make([]WeekRate, 0, len(weeks))
		for wk, wa := range weeks {
			series = append(series, WeekRate{
				Week:   wk,
				Total:  wa.total,
				NoShow: wa.noShow,
				Rate:   float64(wa.noShow) / float64(wa.total),
			})
		}
		// "YYYY-Wnn" sorts chronologically as a string.
		sort.Slice(series, func(i, j int) bool { return series[i].Week < series[j].Week })
		out[key] = series
	}
	return out
}

// DeltaRecent returns the change in average weekly no-show rate between
// the recentWeeks most recent weeks of the series and the recentWeeks
// immediately preceding them. A positive delta means the patient is
// trending worse. Empty series and missing windows contribute 0.
func DeltaRecent(series []WeekRate, recentWeeks int) float64 {
	if len(series) == 0 {
		return 0
	}
	if recentWeeks <= 0 {
		recentWeeks = DefaultRecentWeeks
	}

	cut := len(series) - recentWeeks
	if cut < 0 {
		cut = 0
	}
	recent := series[cut:]

	prevCut := cut - recentWeeks
	if prevCut < 0 {
		prevCut = 0
	}
	previous := series[prevCut:cut]

	return avgRate(recent) - avgRate(previous)
}

func avgRate(series []WeekRate) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range series {
		sum += w.Rate
	}
	return sum / float64(len(series))
}
