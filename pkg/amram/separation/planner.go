package separation

import (
	"fmt"
	"math"
)

// DefaultMaxSegments is the absolute ceiling on loop iterations.
const DefaultMaxSegments = 1000

// Plan describes how a signal of Total samples is split into windows.
type Plan struct {
	Total       int
	Window      int
	Overlap     int
	Stride      int
	Expected    int
	MaxSegments int
	Mode        Mode
}

// Planner decides between direct and chunked processing.
type Planner struct {
	// MaxSegmentsCap bounds MaxSegments. Zero means DefaultMaxSegments.
	MaxSegmentsCap int
}

// Plan validates the lengths and computes stride, expected window count and
// the iteration cap.
func (p Planner) Plan(total, window, overlap int) (Plan, error) {
	switch {
	case total <= 0:
		return Plan{}, &ConfigurationError{Field: "total", Reason: fmt.Sprintf("must be positive, got %d", total)}
	case window <= 0:
		return Plan{}, &ConfigurationError{Field: "window", Reason: fmt.Sprintf("must be positive, got %d", window)}
	case overlap < 0:
		return Plan{}, &ConfigurationError{Field: "overlap", Reason: fmt.Sprintf("must not be negative, got %d", overlap)}
	case overlap >= window:
		return Plan{}, &ConfigurationError{
			Field:  "overlap",
			Reason: fmt.Sprintf("overlap %d must be smaller than window %d", overlap, window),
		}
	}

	plan := Plan{Total: total, Window: window, Overlap: overlap}
	if total <= window {
		plan.Mode = ModeDirect
		plan.Stride = total
		plan.Expected = 1
		plan.MaxSegments = 1
		return plan, nil
	}

	plan.Mode = ModeChunked
	plan.Stride = window - overlap
	plan.Expected = ceilDiv(total-overlap, plan.Stride)

	limit := p.MaxSegmentsCap
	if limit <= 0 {
		limit = DefaultMaxSegments
	}
	plan.MaxSegments = min(2*plan.Expected, limit)
	return plan, nil
}

// Segments lists the windows a well-behaved run visits. It is a preview only;
// the pipeline recomputes boundaries as it goes.
func (p Plan) Segments() []Segment {
	if p.Mode == ModeDirect {
		return []Segment{{Start: 0, End: p.Total, Index: 0}}
	}
	var segs []Segment
	for start, i := 0, 0; i < p.MaxSegments && p.Stride > 0; i++ {
		end := min(start+p.Window, p.Total)
		segs = append(segs, Segment{Start: start, End: end, Index: i})
		if end >= p.Total {
			break
		}
		start += p.Stride
	}
	return segs
}

// SecondsToSamples converts a duration in seconds to a sample count, rounding
// to the nearest sample.
func SecondsToSamples(seconds float64, sampleRate int) int {
	return int(math.Round(seconds * float64(sampleRate)))
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
