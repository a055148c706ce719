package separation

import (
	"math"
	"time"
)

// ProgressSink receives a completion percentage in [0, 100].
type ProgressSink interface {
	Report(percent float64)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(percent float64)

func (f ProgressFunc) Report(percent float64) { f(percent) }

// Band is the slice of [0, 100] a phase reports into.
type Band struct {
	Lo float64
	Hi float64
}

var (
	SeparationBand = Band{Lo: 0, Hi: 80}
	ExportBand     = Band{Lo: 80, Hi: 100}
)

// Scale maps a ratio in [0, 1] onto the band.
func (b Band) Scale(ratio float64) float64 {
	ratio = math.Max(0, math.Min(ratio, 1))
	return math.Min(100, b.Lo+ratio*(b.Hi-b.Lo))
}

const historySize = 5

// Snapshot is the estimator state after one observation.
type Snapshot struct {
	Percent   float64
	Ratio     float64
	Completed int
	Left      int
	AvgChunk  time.Duration
	ETA       time.Time
	Emitted   bool
}

// ProgressEstimator turns playhead position into a monotonic percentage and
// an ETA from the last few window durations.
type ProgressEstimator struct {
	Log Logger
	Now func() time.Time

	total    int
	expected int
	band     Band
	sink     ProgressSink

	started   time.Time
	history   []time.Duration
	completed int
	percent   float64
	emitted   float64
}

func NewProgressEstimator(total, expected int, band Band, sink ProgressSink) *ProgressEstimator {
	return &ProgressEstimator{
		Now:      time.Now,
		total:    total,
		expected: expected,
		band:     band,
		sink:     sink,
		started:  time.Now(),
		history:  make([]time.Duration, 0, historySize),
		percent:  band.Lo,
		emitted:  band.Lo,
	}
}

// Observe records one finished window that started at position and whose
// processing took d. The percentage follows position, so it trails the
// playhead by one window until Finish.
func (p *ProgressEstimator) Observe(position int, d time.Duration) Snapshot {
	p.completed++
	if len(p.history) == historySize {
		copy(p.history, p.history[1:])
		p.history = p.history[:historySize-1]
	}
	p.history = append(p.history, d)

	var sum time.Duration
	for _, h := range p.history {
		sum += h
	}
	avg := sum / time.Duration(len(p.history))
	left := max(0, p.expected-p.completed)

	ratio := 0.0
	if p.total > 0 {
		ratio = math.Min(float64(position)/float64(p.total), 1)
	}
	if pct := p.band.Scale(ratio); pct > p.percent {
		p.percent = pct
	}

	snap := Snapshot{
		Percent:   p.percent,
		Ratio:     ratio,
		Completed: p.completed,
		Left:      left,
		AvgChunk:  avg,
		ETA:       p.Now().Add(time.Duration(left) * avg),
	}
	if p.percent-p.emitted >= 1 {
		snap.Emitted = p.emit(p.percent)
	}
	return snap
}

// Finish reports the top of the band.
func (p *ProgressEstimator) Finish() {
	p.percent = math.Max(p.percent, p.band.Hi)
	if p.percent > p.emitted || p.completed == 0 {
		p.emit(p.percent)
	}
}

// Percent is the last computed percentage.
func (p *ProgressEstimator) Percent() float64 { return p.percent }

// Elapsed is the time since the estimator was created.
func (p *ProgressEstimator) Elapsed() time.Duration { return p.Now().Sub(p.started) }

func (p *ProgressEstimator) emit(pct float64) (ok bool) {
	p.emitted = pct
	if p.sink == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if p.Log != nil {
				p.Log.Warnf("progress sink panicked: %v", r)
			}
		}
	}()
	p.sink.Report(math.Min(pct, 100))
	return true
}
