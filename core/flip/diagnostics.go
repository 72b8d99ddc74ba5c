package flip

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LatencySummary describes end to end latencies of recent sends in seconds.
type LatencySummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// LatencySummary summarises the latencies of the recently sent flips.
func (p *Processor) LatencySummary() LatencySummary {
	return summarize(p.latencies.Items())
}

func summarize(xs []float64) LatencySummary {
	if len(xs) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(xs)
	s := LatencySummary{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, xs, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, xs, nil),
		Max:   xs[len(xs)-1],
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}
