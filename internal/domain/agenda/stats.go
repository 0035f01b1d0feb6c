package agenda

import (
	"math"
	"sort"
)

// PctSummary is the percentile context attached to rate reports.
type PctSummary struct {
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	Count int     `json:"count"`
}

// Percentile computes the p-th percentile (p in 0..1) of an ascending
// sorted sample using linear interpolation between the two nearest ranks
// (R-7, the Excel method). Empty input yields 0.
func Percentile(sortedAsc []float64, p float64) float64 {
	n := len(sortedAsc)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sortedAsc[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return sortedAsc[lo]
	}
	return sortedAsc[lo] + (sortedAsc[hi]-sortedAsc[lo])*(h-float64(lo))
}

// SummarizePct computes the p50/p75/p90/p95 summary of a sample. The input
// is copied before sorting, so callers' slices are never mutated. Empty
// input yields an all-zero summary with Count 0.
func SummarizePct(values []float64) PctSummary {
	if len(values) == 0 {
		return PctSummary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return PctSummary{
		P50:   round3(Percentile(sorted, 0.50)),
		P75:   round3(Percentile(sorted, 0.75)),
		P90:   round3(Percentile(sorted, 0.90)),
		P95:   round3(Percentile(sorted, 0.95)),
		Count: len(sorted),
	}
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
