// Package summary derives the compact per-metric view of a pruned history.
package summary

import (
	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/trend"
)

// DefaultTailSize is the number of points kept in each summary's history tail.
const DefaultTailSize = 10

// Series is the sparse, chronological sequence of observations of one metric.
type Series struct {
	Name   string
	Points []history.Point
}

// Values returns the scalar value of every point.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Measurement.Value
	}
	return out
}

// Collect walks snapshots in order and groups the family's observations per
// metric. A metric absent from a snapshot is skipped for that snapshot, so
// series may be shorter than snapshots and of different lengths.
func Collect(family metrics.Family, snapshots []history.Snapshot) map[string]*Series {
	series := make(map[string]*Series)
	for _, s := range snapshots {
		for _, o := range family.Extract(s) {
			cur, ok := series[o.Name]
			if !ok {
				cur = &Series{Name: o.Name}
				series[o.Name] = cur
			}
			cur.Points = append(cur.Points, history.Point{Timestamp: s.Timestamp, Measurement: o.Value})
		}
	}
	return series
}

// Build computes the summary of every metric observed in snapshots, which
// must already be pruned and sorted. It performs no I/O.
func Build(family metrics.Family, snapshots []history.Snapshot, tailSize int) map[string]history.Summary {
	if tailSize <= 0 {
		tailSize = DefaultTailSize
	}

	out := make(map[string]history.Summary)
	for name, s := range Collect(family, snapshots) {
		values := s.Values()
		sum := history.Summary{
			Latest:  s.Points[len(s.Points)-1].Measurement,
			Trend:   trend.Analyze(family.Policy(name), values),
			History: tail(s.Points, tailSize),
		}
		if family.Aggregated(name) {
			best, worst, avg := aggregate(values)
			sum.Best, sum.Worst, sum.Average = &best, &worst, &avg
		}
		out[name] = sum
	}
	return out
}

// tail returns a copy of the last n points.
func tail(points []history.Point, n int) []history.Point {
	if len(points) > n {
		points = points[len(points)-n:]
	}
	out := make([]history.Point, len(points))
	copy(out, points)
	return out
}

// aggregate returns max, min and mean of a non-empty slice, rounded to two decimals.
func aggregate(values []float64) (best, worst, avg float64) {
	best, worst = values[0], values[0]
	var total float64
	for _, v := range values {
		if v > best {
			best = v
		}
		if v < worst {
			worst = v
		}
		total += v
	}
	return trend.Round(best), trend.Round(worst), trend.Round(total / float64(len(values)))
}
