// Package trend classifies the short-term direction of a metric from its last
// two retained observations.
package trend

import (
	"fmt"
	"math"

	"github.com/caevv/trendkeeper/internal/history"
)

// Policy selects how a metric's change is measured and classified.
type Policy int

const (
	// LowerIsBetter is used for timings: relative change, faster is improving.
	LowerIsBetter Policy = iota
	// HigherIsBetter is used for percentages: absolute change in points.
	HigherIsBetter
	// Count is used for inventories such as the number of tests.
	Count
)

// Classification thresholds. The stable bands are strict: a change equal to
// the threshold is already a movement. Changes are compared after rounding
// to two decimals, so the direction always agrees with the stored change.
const (
	TimingStablePercent   = 0.5
	PercentageStablePoint = 0.1
	CountStableDelta      = 5
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case LowerIsBetter:
		return "lower_is_better"
	case HigherIsBetter:
		return "higher_is_better"
	case Count:
		return "count"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Analyze classifies series using its last two values. It returns nil when
// fewer than two observations exist.
//
// A relative change against a previous value of zero is undefined; such a
// timing metric is reported as NoData instead of dividing by zero.
func Analyze(p Policy, series []float64) *history.Trend {
	if len(series) < 2 {
		return nil
	}
	latest := series[len(series)-1]
	previous := series[len(series)-2]

	switch p {
	case LowerIsBetter:
		return timing(latest, previous)
	case HigherIsBetter:
		return percentage(latest, previous)
	default:
		return count(latest, previous)
	}
}

func timing(latest, previous float64) *history.Trend {
	if previous == 0 {
		return &history.Trend{Direction: history.NoData}
	}
	change := Round((latest - previous) / previous * 100)

	direction := history.Degrading
	switch {
	case math.Abs(change) < TimingStablePercent:
		direction = history.Stable
	case change < 0:
		direction = history.Improving
	}
	return &history.Trend{Direction: direction, Change: change}
}

func percentage(latest, previous float64) *history.Trend {
	change := Round(latest - previous)

	direction := history.Degrading
	switch {
	case math.Abs(change) < PercentageStablePoint:
		direction = history.Stable
	case change > 0:
		direction = history.Improving
	}
	return &history.Trend{Direction: direction, Change: change}
}

func count(latest, previous float64) *history.Trend {
	change := latest - previous

	direction := history.Stable
	switch {
	case change > CountStableDelta:
		direction = history.Growing
	case change < -CountStableDelta:
		direction = history.Shrinking
	}

	t := &history.Trend{Direction: direction, Change: Round(change)}
	if previous > 0 {
		rate := Round(change / previous * 100)
		t.GrowthRate = &rate
	}
	return t
}

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
