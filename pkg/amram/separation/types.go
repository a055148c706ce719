package separation

import (
	"fmt"
	"time"
)

// Logger is the subset of pkg/logger used by the pipeline.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// AudioBuffer holds channel-major float samples at a fixed sample rate.
type AudioBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// Len returns the per-channel sample count.
func (b *AudioBuffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

// Validate checks that the buffer has at least one channel and that all
// channels share the same, non-zero length.
func (b *AudioBuffer) Validate() error {
	if b == nil || len(b.Channels) == 0 {
		return &ConfigurationError{Field: "buffer", Reason: "no channels"}
	}
	n := len(b.Channels[0])
	if n == 0 {
		return &ConfigurationError{Field: "buffer", Reason: "empty channels"}
	}
	for i, ch := range b.Channels {
		if len(ch) != n {
			return &ConfigurationError{
				Field:  "buffer",
				Reason: fmt.Sprintf("channel %d has %d samples, want %d", i, len(ch), n),
			}
		}
	}
	if b.SampleRate <= 0 {
		return &ConfigurationError{Field: "buffer", Reason: "sample rate must be positive"}
	}
	return nil
}

// Segment is the half-open sample range [Start, End) of one window.
type Segment struct {
	Start int
	End   int
	Index int
}

func (s Segment) Len() int { return s.End - s.Start }

func (s Segment) String() string {
	return fmt.Sprintf("#%d[%d,%d)", s.Index, s.Start, s.End)
}

// Region is a half-open sample range in the output buffer.
type Region struct {
	Start int
	End   int
}

func (r Region) Len() int { return r.End - r.Start }

// ChunkResult is the outcome of processing one window. Sources is laid out
// [source][channel][sample] and is nil when Err is set.
type ChunkResult struct {
	Segment  Segment
	Sources  [][][]float32
	Err      error
	Attempts int
	Duration time.Duration
}

func (r *ChunkResult) OK() bool { return r.Err == nil }

// Release drops the window tensor so it can be collected before the next
// window is submitted.
func (r *ChunkResult) Release() {
	r.Sources = nil
}

// OutputBuffer is shaped (sources, channels, total samples).
type OutputBuffer struct {
	Sources    [][][]float32
	Names      []string
	SampleRate int
}

func newOutputBuffer(names []string, channels, total, rate int) *OutputBuffer {
	out := &OutputBuffer{
		Sources:    make([][][]float32, len(names)),
		Names:      append([]string(nil), names...),
		SampleRate: rate,
	}
	for s := range out.Sources {
		out.Sources[s] = make([][]float32, channels)
		for c := range out.Sources[s] {
			out.Sources[s][c] = make([]float32, total)
		}
	}
	return out
}

// Source returns the channels of the named source, or nil.
func (o *OutputBuffer) Source(name string) [][]float32 {
	for i, n := range o.Names {
		if n == name {
			return o.Sources[i]
		}
	}
	return nil
}

func (o *OutputBuffer) Len() int {
	if len(o.Sources) == 0 || len(o.Sources[0]) == 0 {
		return 0
	}
	return len(o.Sources[0][0])
}

type Mode int

const (
	ModeDirect Mode = iota
	ModeChunked
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "chunked"
}

// Status summarises how much of the input made it into the output.
type Status int

const (
	StatusComplete Status = iota
	StatusPartial
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type SkipReason string

const (
	SkipInferenceFailed SkipReason = "inference_failed"
	SkipStitchBounds    SkipReason = "stitch_bounds"
	SkipDegenerate      SkipReason = "degenerate"
	SkipStallJump       SkipReason = "stall_jump"
	SkipAborted         SkipReason = "aborted"
)

// SkippedRegion records a stretch of output that no window wrote.
type SkippedRegion struct {
	Region
	SegmentIndex int
	Reason       SkipReason
	Err          error
}

// Result is returned by Pipeline.Separate. Gaps lists every zero-filled
// range of the output; Skipped explains where they came from.
type Result struct {
	Output     *OutputBuffer
	Status     Status
	Mode       Mode
	Skipped    []SkippedRegion
	Gaps       []Region
	Segments   int
	Failed     int
	Iterations int
	Elapsed    time.Duration
}

func (r *Result) Complete() bool { return r.Status == StatusComplete }
