package agenda

import (
	"sort"
	"time"
)

// BucketCounts holds per-bucket booking counts plus the grand total.
type BucketCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	NoShow    int `json:"no_show"`
	Cancelled int `json:"cancelled"`
	Other     int `json:"other"`
}

func (c *BucketCounts) add(bucket Bucket) {
	c.Total++
	switch bucket {
	case BucketCompleted:
		c.Completed++
	case BucketNoShow:
		c.NoShow++
	case BucketCancelled:
		c.Cancelled++
	default:
		c.Other++
	}
}

// DayStats is one by-day entry of an agenda summary.
type DayStats struct {
	Day string `json:"day"`
	BucketCounts
	AvgDurationMin float64 `json:"avg_duration_min"`
	AvgLeadTimeH   float64 `json:"avg_lead_time_h"`
}

// ResourceStats is one by-resource entry. Averages are not reported at this
// granularity, only counts.
type ResourceStats struct {
	Resource string `json:"resource"`
	BucketCounts
}

// SummaryTotals is the top-level rollup of an agenda summary.
type SummaryTotals struct {
	BucketCounts
	AvgDurationMin float64 `json:"avg_duration_min"`
	AvgLeadTimeH   float64 `json:"avg_lead_time_h"`
}

// AgendaSummary is the KPI report for one org and date range.
type AgendaSummary struct {
	OrgID      string          `json:"org_id"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	TZ         string          `json:"tz"`
	Totals     SummaryTotals   `json:"totals"`
	ByDay      []DayStats      `json:"by_day"`
	ByResource []ResourceStats `json:"by_resource"`
}

// runningAvg accumulates a sum over valid samples only, so bookings with
// missing or inverted timestamps drop out of the average without dropping
// out of the counts.
type runningAvg struct {
	sum float64
	n   int
}

func (r *runningAvg) add(v float64) {
	r.sum += v
	r.n++
}

func (r *runningAvg) value() float64 {
	if r.n == 0 {
		return 0
	}
	return round1(r.sum / float64(r.n))
}

type dayAccum struct {
	counts   BucketCounts
	duration runningAvg
	lead     runningAvg
}

// ComputeAgendaSummary aggregates bookings into per-day and per-resource
// KPI rows plus overall totals. Malformed timestamps never fail the
// computation:
//
//   - a booking with no parseable start still counts everywhere, bucketed
//     under now's day key;
//   - zero or negative intervals are excluded from the duration average;
//   - bookings created after their own start are excluded from the
//     lead-time average.
//
// now supplies "today" for the day-key fallback; loc is the clinic
// timezone resolved by the caller.
func ComputeAgendaSummary(orgID, from, to string, loc *time.Location, bookings []Booking, resourceFallback string, now time.Time) *AgendaSummary {
	if resourceFallback == "" {
		resourceFallback = DefaultResourceLabel
	}

	var totals BucketCounts
	var totalDuration, totalLead runningAvg

	days := map[string]*dayAccum{}
	resources := map[string]*BucketCounts{}
	var resourceOrder []string

	for _, b := range bookings {
		bucket := Classify(b.Status)
		totals.add(bucket)

		start, hasStart := ParseInstant(b.StartAt)

		var durationMin float64
		hasDuration := false
		if end, ok := ParseInstant(b.EndAt); ok && hasStart && end.After(start) {
			durationMin = end.Sub(start).Minutes()
			hasDuration = true
			totalDuration.add(durationMin)
		}

		var leadH float64
		hasLead := false
		if created, ok := ParseInstant(b.CreatedAt); ok && hasStart && start.After(created) {
			leadH = start.Sub(created).Hours()
			hasLead = true
			totalLead.add(leadH)
		}

		dayInstant := now
		if hasStart {
			dayInstant = start
		}
		day := DayKey(dayInstant, loc)
		da, ok := days[day]
		if !ok {
			da = &dayAccum{}
			days[day] = da
		}
		da.counts.add(bucket)
		if hasDuration {
			da.duration.add(durationMin)
		}
		if hasLead {
			da.lead.add(leadH)
		}

		label := resourceLabel(b, resourceFallback)
		rc, ok := resources[label]
		if !ok {
			rc = &BucketCounts{}
			resources[label] = rc
			resourceOrder = append(resourceOrder, label)
		}
		rc.add(bucket)
	}

	byDay := make([]DayStats, 0, len(days))
	for day, da := range days {
		byDay = append(byDay, DayStats{
			Day:            day,
			BucketCounts:   da.counts,
			AvgDurationMin: da.duration.value(),
			AvgLeadTimeH:   da.lead.value(),
		})
	}
	// Lexicographic is chronological for YYYY-MM-DD keys.
	sort.Slice(byDay, func(i, j int) bool { return byDay[i].Day < byDay[j].Day })

	byResource := make([]ResourceStats, 0, len(resourceOrder))
	for _, label := range resourceOrder {
		byResource = append(byResource, ResourceStats{
			Resource:     label,
			BucketCounts: *resources[label],
		})
	}
	// Stable sort keeps first-seen order for equal totals.
	sort.SliceStable(byResource, func(i, j int) bool {
		return byResource[i].Total > byResource[j].Total
	})

	return &AgendaSummary{
		OrgID: orgID,
		From:  from,
		To:    to,
		TZ:    loc.String(),
		Totals: SummaryTotals{
			BucketCounts:   totals,
			AvgDurationMin: totalDuration.value(),
			AvgLeadTimeH:   totalLead.value(),
		},
		ByDay:      byDay,
		ByResource: byResource,
	}
}
