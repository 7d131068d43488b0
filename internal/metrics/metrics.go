// Package metrics describes the metric families tracked by trendkeeper: how
// observations are extracted from a snapshot and which trend policy applies
// to each metric name.
package metrics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/trend"
)

// Family names.
const (
	BenchmarksFamily = "benchmarks"
	CoverageFamily   = "coverage"
)

// Coverage family metric names.
const (
	LineCoverage     = "line_coverage"
	FunctionCoverage = "function_coverage"
	RegionCoverage   = "region_coverage"
	TestCount        = "test_count"
)

// ErrUnknownFamily is returned by Lookup for an unregistered family name.
var ErrUnknownFamily = errors.New("unknown metric family")

// Observation is one named measurement taken from a snapshot.
type Observation struct {
	Name  string
	Value history.Measurement
}

// Family binds a snapshot layout to the metrics it carries.
type Family struct {
	Name string

	// Extract lists the observations present in a snapshot. Metrics missing
	// from the snapshot are simply absent from the result.
	Extract func(history.Snapshot) []Observation

	// Policy returns the trend policy for a metric of this family.
	Policy func(metric string) trend.Policy

	// Aggregated reports whether best/worst/average are meaningful for a metric.
	Aggregated func(metric string) bool
}

// Benchmarks is the family of benchmark timings. Every benchmark case is a
// lower-is-better metric named after the case; its series value is the mean.
var Benchmarks = Family{
	Name: BenchmarksFamily,
	Extract: func(s history.Snapshot) []Observation {
		out := make([]Observation, 0, len(s.Benchmarks))
		for _, b := range s.Benchmarks {
			out = append(out, Observation{
				Name: b.Name,
				Value: history.TimingOf(history.Timing{
					Mean:   b.Mean,
					Median: b.Median,
					StdDev: b.StdDev,
					Unit:   b.Unit,
				}),
			})
		}
		return out
	},
	Policy:     func(string) trend.Policy { return trend.LowerIsBetter },
	Aggregated: func(string) bool { return false },
}

// coveragePolicies is the fixed policy of every coverage family metric.
var coveragePolicies = map[string]trend.Policy{
	LineCoverage:     trend.HigherIsBetter,
	FunctionCoverage: trend.HigherIsBetter,
	RegionCoverage:   trend.HigherIsBetter,
	TestCount:        trend.Count,
}

// Coverage is the family of coverage percentages and the total test count.
var Coverage = Family{
	Name: CoverageFamily,
	Extract: func(s history.Snapshot) []Observation {
		var out []Observation
		if c := s.Coverage; c != nil {
			out = append(out,
				Observation{Name: LineCoverage, Value: history.Scalar(c.LineCoverage)},
				Observation{Name: FunctionCoverage, Value: history.Scalar(c.FunctionCoverage)},
				Observation{Name: RegionCoverage, Value: history.Scalar(c.RegionCoverage)},
			)
		}
		if s.Tests != nil {
			out = append(out, Observation{Name: TestCount, Value: history.Scalar(float64(s.Tests.Total))})
		}
		return out
	},
	Policy: func(metric string) trend.Policy {
		if p, ok := coveragePolicies[metric]; ok {
			return p
		}
		return trend.HigherIsBetter
	},
	Aggregated: func(metric string) bool {
		p, ok := coveragePolicies[metric]
		return ok && p == trend.HigherIsBetter
	},
}

var families = map[string]Family{
	BenchmarksFamily: Benchmarks,
	CoverageFamily:   Coverage,
}

// Lookup returns the family registered under name.
func Lookup(name string) (Family, error) {
	f, ok := families[name]
	if !ok {
		return Family{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownFamily, name, Names())
	}
	return f, nil
}

// Names lists the registered family names in sorted order.
func Names() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
