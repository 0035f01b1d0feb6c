package agenda

import (
	"sort"
)

// Quorum defaults: a resource rate below 10 observations or a patient rate
// below 3 is statistical noise and is dropped from the report. Callers may
// override per request.
const (
	DefaultResourceMinN = 10
	DefaultPatientMinN  = 3
)

// RateRow is one ranked group in a no-show rate report.
type RateRow struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	CountTotal     int     `json:"count_total"`
	CountNoShow    int     `json:"count_ns"`
	CountCompleted int     `json:"count_completed"`
	CountCancelled int     `json:"count_cancelled"`
	Rate           float64 `json:"rate"`
}

// RateReport is a ranked no-show rate listing with percentile context. The
// percentiles describe only the rows that survived the quorum filter.
type RateReport struct {
	OrgID       string     `json:"org_id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	TZ          string     `json:"tz"`
	MinN        int        `json:"min_n"`
	Rows        []RateRow  `json:"rows"`
	Percentiles PctSummary `json:"percentiles"`
}

type rateAccum struct {
	key       string
	name      string
	total     int
	noShow    int
	completed int
	cancelled int
}

// computeRates is the shared group → count → quorum-filter → rank pipeline.
// By-resource and by-patient reports differ only in key extraction.
func computeRates(bookings []Booking, keyOf, nameOf func(Booking) string, minN int) ([]RateRow, PctSummary) {
	groups := map[string]*rateAccum{}
	for _, b := range bookings {
		key := keyOf(b)
		g, ok := groups[key]
		if !ok {
			g = &rateAccum{key: key, name: nameOf(b)}
			groups[key] = g
		}
		g.total++
		switch Classify(b.Status) {
		case BucketNoShow:
			g.noShow++
		case BucketCompleted:
			g.completed++
		case BucketCancelled:
			g.cancelled++
		}
	}

	rows := make([]RateRow, 0, len(groups))
	for _, g := range groups {
		if g.total < minN {
			continue
		}
		rate := 0.0
		if g.total > 0 {
			rate = float64(g.noShow) / float64(g.total)
		}
		rows = append(rows, RateRow{
			Key:            g.key,
			Name:           g.name,
			CountTotal:     g.total,
			CountNoShow:    g.noShow,
			CountCompleted: g.completed,
			CountCancelled: g.cancelled,
			Rate:           rate,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rate != rows[j].Rate {
			return rows[i].Rate > rows[j].Rate
		}
		return rows[i].CountTotal > rows[j].CountTotal
	})

	rates := make([]float64, len(rows))
	for i, r := range rows {
		rates[i] = r.Rate
	}
	return rows, SummarizePct(rates)
}

// ComputeRatesByResource ranks resources (rooms, practitioners) by no-show
// rate. minN <= 0 falls back to DefaultResourceMinN.
func ComputeRatesByResource(orgID, from, to, tz string, bookings []Booking, minN int) *RateReport {
	if minN <= 0 {
		minN = DefaultResourceMinN
	}
	rows, pct := computeRates(bookings, resourceKey, resourceName, minN)
	return &RateReport{
		OrgID: orgID, From: from, To: to, TZ: tz,
		MinN: minN, Rows: rows, Percentiles: pct,
	}
}

// ComputeRatesByPatient ranks patients by no-show rate. minN <= 0 falls
// back to DefaultPatientMinN.
func ComputeRatesByPatient(orgID, from, to, tz string, bookings []Booking, minN int) *RateReport {
	if minN <= 0 {
		minN = DefaultPatientMinN
	}
	rows, pct := computeRates(bookings, patientKey, patientName, minN)
	return &RateReport{
		OrgID: orgID, From: from, To: to, TZ: tz,
		MinN: minN, Rows: rows, Percentiles: pct,
	}
}
