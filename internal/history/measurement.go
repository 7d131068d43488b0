package history

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Measurement is a single observed value: either a scalar (coverage
// percentage, test count) or a timing triple with a unit.
type Measurement struct {
	Value  float64
	Timing *Timing
}

// Timing is the mean/median/std_dev triple reported for a benchmark case.
type Timing struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Unit   string  `json:"unit,omitempty"`
}

// Scalar builds a scalar measurement.
func Scalar(v float64) Measurement {
	return Measurement{Value: v}
}

// TimingOf builds a timing measurement; its scalar value is the mean.
func TimingOf(t Timing) Measurement {
	return Measurement{Value: t.Mean, Timing: &t}
}

// IsTiming reports whether m carries a timing triple.
func (m Measurement) IsTiming() bool {
	return m.Timing != nil
}

// MarshalJSON writes a scalar as a bare number and a timing as an object.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if m.Timing != nil {
		return json.Marshal(m.Timing)
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts either form written by MarshalJSON.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var t Timing
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("decode timing: %w", err)
		}
		*m = TimingOf(t)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode scalar: %w", err)
	}
	*m = Scalar(v)
	return nil
}

// Point is one history-tail entry: a measurement stamped with the timestamp
// of the snapshot it came from.
type Point struct {
	Timestamp   string
	Measurement Measurement
}

// pointJSON is the flattened wire form of a Point.
type pointJSON struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	Median    *float64 `json:"median,omitempty"`
	StdDev    *float64 `json:"std_dev,omitempty"`
	Unit      string   `json:"unit,omitempty"`
}

// MarshalJSON flattens the measurement into the point object.
func (p Point) MarshalJSON() ([]byte, error) {
	out := pointJSON{Timestamp: p.Timestamp}
	if t := p.Measurement.Timing; t != nil {
		out.Mean, out.Median, out.StdDev = &t.Mean, &t.Median, &t.StdDev
		out.Unit = t.Unit
	} else {
		v := p.Measurement.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened point form.
func (p *Point) UnmarshalJSON(data []byte) error {
	var in pointJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Timestamp = in.Timestamp
	if in.Mean != nil {
		t := Timing{Mean: *in.Mean, Unit: in.Unit}
		if in.Median != nil {
			t.Median = *in.Median
		}
		if in.StdDev != nil {
			t.StdDev = *in.StdDev
		}
		p.Measurement = TimingOf(t)
		return nil
	}
	if in.Value == nil {
		return fmt.Errorf("history point at %q has neither value nor mean", in.Timestamp)
	}
	p.Measurement = Scalar(*in.Value)
	return nil
}
