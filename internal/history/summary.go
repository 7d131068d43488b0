package history

// Direction classifies the short-term movement of a metric.
type Direction string

const (
	Improving Direction = "improving"
	Stable    Direction = "stable"
	Degrading Direction = "degrading"
	Growing   Direction = "growing"
	Shrinking Direction = "shrinking"
	NoData    Direction = "no_data"
)

// Trend is the classification derived from the last two observations of a metric.
type Trend struct {
	Direction Direction `json:"direction"`

	// Change is a relative percentage for timing metrics and an absolute
	// difference for percentage and count metrics.
	Change float64 `json:"change"`

	// GrowthRate is set for count metrics whose previous value is positive.
	GrowthRate *float64 `json:"growth_rate,omitempty"`
}

// Summary is the compact per-metric view stored next to the full history.
type Summary struct {
	Latest Measurement `json:"latest"`

	// Trend is nil when fewer than two observations exist.
	Trend *Trend `json:"trend"`

	// History holds the most recent points, oldest first.
	History []Point `json:"history"`

	// Best, Worst and Average are only set for percentage metrics.
	Best    *float64 `json:"best,omitempty"`
	Worst   *float64 `json:"worst,omitempty"`
	Average *float64 `json:"average,omitempty"`
}
