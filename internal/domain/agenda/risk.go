package agenda

import (
	"sort"
	"time"
)

// Risk scorer defaults.
const (
	DefaultRiskMinN = 3
	DefaultRiskTop  = 50
)

// Risk band thresholds, inclusive on the lower edge of each band.
const (
	RiskBandHigh = "high"
	RiskBandMed  = "med"
	RiskBandLow  = "low"
)

// PatientRiskRow is one patient's no-show risk profile within the window.
type PatientRiskRow struct {
	PatientKey        string  `json:"patient_key"`
	PatientName       string  `json:"patient_name"`
	Total             int     `json:"total"`
	NoShow            int     `json:"no_show"`
	Completed         int     `json:"completed"`
	Cancelled         int     `json:"cancelled"`
	NSRate            float64 `json:"ns_rate"`
	NSStreak          int     `json:"ns_streak"`
	DaysSinceAttended *int    `json:"days_since_attended"`
	RiskScore         float64 `json:"risk_score"`
	RiskBand          string  `json:"risk_band"`
}

// riskBand thresholds: high at >=0.5, med at >=0.25.
func riskBand(score float64) string {
	switch {
	case score >= 0.5:
		return RiskBandHigh
	case score >= 0.25:
		return RiskBandMed
	default:
		return RiskBandLow
	}
}

// ComputePatientRisk scores each patient with at least minN bookings in the
// window and returns the top highest-risk rows, ranked by score then by
// booking count.
//
// The score is a heuristic, not a validated clinical or statistical model,
// and is meant for decision support only: the historical no-show rate
// carries most of the weight (0.7), a trailing streak of two or more
// no-shows adds a fixed 0.2, and time since the last attended visit adds
// up to 0.1 (the full 0.1 when the patient never attended in the window).
func ComputePatientRisk(orgID, from, to string, loc *time.Location, bookings []Booking, minN, top int, now time.Time) []PatientRiskRow {
	if minN <= 0 {
		minN = DefaultRiskMinN
	}
	if top < 1 {
		top = 1
	}

	groups := map[string][]Booking{}
	for _, b := range bookings {
		key := patientKey(b)
		groups[key] = append(groups[key], b)
	}

	rows := make([]PatientRiskRow, 0, len(groups))
	for key, list := range groups {
		// Chronological order; a missing start sorts to the front as epoch.
		sorted := make([]Booking, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			ti, _ := ParseInstant(sorted[i].StartAt)
			tj, _ := ParseInstant(sorted[j].StartAt)
			return ti.Before(tj)
		})

		var total, noShow, completed, cancelled int
		var lastAttended time.Time
		attended := false
		name := key
		for _, b := range sorted {
			if n := patientName(b); n != key && name == key {
				name = n
			}
			total++
			switch Classify(b.Status) {
			case BucketNoShow:
				noShow++
			case BucketCancelled:
				cancelled++
			case BucketCompleted:
				completed++
				if start, ok := ParseInstant(b.StartAt); ok {
					if !attended || start.After(lastAttended) {
						lastAttended = start
						attended = true
					}
				}
			}
		}
		if total < minN {
			continue
		}

		nsRate := float64(noShow) / float64(total)

		// Trailing no-show streak: walk back from the most recent booking.
		streak := 0
		for i := len(sorted) - 1; i >= 0; i-- {
			if Classify(sorted[i].Status) != BucketNoShow {
				break
			}
			streak++
		}

		var daysSince *int
		if attended {
			diff := int(startOfDay(now, loc).Sub(startOfDay(lastAttended, loc)).Hours() / 24)
			if diff < 0 {
				diff = 0
			}
			daysSince = &diff
		}

		streakBoost := 0.0
		if streak >= 2 {
			streakBoost = 0.2
		}
		recencyBoost := 0.1
		if daysSince != nil {
			recencyBoost = (float64(*daysSince) / 90.0) * 0.1
			if recencyBoost > 0.1 {
				recencyBoost = 0.1
			}
		}
		score := round3(clamp01(0.7*nsRate + streakBoost + recencyBoost))

		rows = append(rows, PatientRiskRow{
			PatientKey:        key,
			PatientName:       name,
			Total:             total,
			NoShow:            noShow,
			Completed:         completed,
			Cancelled:         cancelled,
			NSRate:            nsRate,
			NSStreak:          streak,
			DaysSinceAttended: daysSince,
			RiskScore:         score,
			RiskBand:          riskBand(score),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RiskScore != rows[j].RiskScore {
			return rows[i].RiskScore > rows[j].RiskScore
		}
		return rows[i].Total > rows[j].Total
	})
	if len(rows) > top {
		rows = rows[:top]
	}
	return rows
}
