package decoding

import "fmt"

// Sentinel marks a plan element which does not produce a sensor value but
// metadata for the other measurements of the batch.
type Sentinel int

// Sentinels.
const (
	SentinelNone Sentinel = iota
	SentinelTimestamp
	SentinelLocation
)

// String implements the fmt.Stringer interface.
func (s Sentinel) String() string {
	switch s {
	case SentinelNone:
		return "none"
	case SentinelTimestamp:
		return "timestamp"
	case SentinelLocation:
		return "location"
	default:
		return "unknown"
	}
}

// ValueFunc transforms the bytes consumed by a plan element into one or more
// values.
type ValueFunc func(b []byte) []float64

// PostHook transforms the measurements after all plan elements have been
// decoded. The position is the index of the plan element that registered the
// hook. A hook must not modify the given slice or its elements.
type PostHook func(position int, ms []Measurement) []Measurement

// PlanElement defines how a byte range of the payload is decoded.
type PlanElement struct {
	Bytes    int
	SensorID string
	Sentinel Sentinel
	Value    ValueFunc
	PostHook PostHook
}

// Plan is the ordered list of elements used to decode a payload. A strict
// plan requires that the payload length equals the sum of the element
// widths, otherwise a warning is returned and overrunning elements are
// skipped.
type Plan struct {
	Elements []PlanElement
	Strict   bool
}

// Bytes returns the amount of bytes the plan consumes.
func (p Plan) Bytes() int {
	var n int
	for _, el := range p.Elements {
		n += el.Bytes
	}
	return n
}

// DecodeBuffer decodes the buffer according to the plan and returns the
// measurements and warnings.
func DecodeBuffer(buffer []byte, plan Plan) ([]Measurement, []string, error) {
	var warnings []string

	expected := plan.Bytes()
	if expected != len(buffer) {
		msg := fmt.Sprintf("incorrect amount of bytes, should be %d", expected)
		if plan.Strict {
			return nil, nil, newError(ErrLengthMismatch, msg)
		}
		warnings = append(warnings, msg)
	}

	ms := make([]Measurement, 0, len(plan.Elements))
	var cursor int
	for i, el := range plan.Elements {
		if cursor+el.Bytes > len(buffer) {
			// lenient plan, the remaining elements can't be satisfied
			break
		}

		ms = append(ms, newMeasurement(i, el, buffer[cursor:cursor+el.Bytes]))
		cursor += el.Bytes
	}

	for i, el := range plan.Elements {
		if el.PostHook != nil {
			ms = el.PostHook(i, ms)
		}
	}

	// sentinels without hook must never reach the batch
	out := ms[:0:0]
	for _, m := range ms {
		if m.sentinel == SentinelNone {
			out = append(out, m)
		}
	}

	return out, warnings, nil
}

func newMeasurement(position int, el PlanElement, b []byte) Measurement {
	m := Measurement{
		SensorID: el.SensorID,
		position: position,
		sentinel: el.Sentinel,
	}

	var values []float64
	if el.Value != nil {
		values = el.Value(b)
	}
	if len(values) > 0 {
		m.Value = values[0]
	}
	if len(values) > 1 {
		m.Vector = values
	}

	return m
}
