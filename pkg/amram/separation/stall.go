package separation

import "fmt"

type StallState int

const (
	Advancing StallState = iota
	Stalled
	ForcedJump
	Aborted
	Done
)

func (s StallState) String() string {
	switch s {
	case Advancing:
		return "advancing"
	case Stalled:
		return "stalled"
	case ForcedJump:
		return "forced_jump"
	case Aborted:
		return "aborted"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("StallState(%d)", int(s))
	}
}

// StallOptions tune the recovery. Zero values pick the defaults.
type StallOptions struct {
	// Threshold is the number of consecutive non-advancing iterations that
	// triggers a forced jump. Default 3.
	Threshold int
	// JumpFactor is the forced jump size in windows. Default 2.
	JumpFactor int
}

const (
	DefaultStallThreshold = 3
	DefaultJumpFactor     = 2
)

func (o StallOptions) withDefaults() StallOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultStallThreshold
	}
	if o.JumpFactor <= 0 {
		o.JumpFactor = DefaultJumpFactor
	}
	return o
}

// StallGuard watches the playhead and forces progress when it stops moving.
type StallGuard struct {
	window int
	opts   StallOptions

	state  StallState
	stalls int
	jumps  int
}

func NewStallGuard(window int, opts StallOptions) *StallGuard {
	return &StallGuard{window: window, opts: opts.withDefaults()}
}

// Tick is called at the top of every iteration and returns Aborted once the
// iteration cap is reached.
func (g *StallGuard) Tick(iteration, maxIterations int) StallState {
	if iteration >= maxIterations {
		g.state = Aborted
	}
	return g.state
}

// Check inspects the next planned start and returns the start to use.
func (g *StallGuard) Check(prev, next, total int) (int, StallState) {
	if next > prev {
		g.stalls = 0
		g.state = Advancing
		if next >= total {
			g.state = Done
		}
		return next, g.state
	}

	g.stalls++
	g.state = Stalled
	if g.stalls < g.opts.Threshold {
		return next, g.state
	}

	g.stalls = 0
	g.jumps++
	jumped := prev + g.opts.JumpFactor*g.window
	if jumped >= total-g.window/4 {
		g.state = Done
		return jumped, g.state
	}
	g.state = ForcedJump
	return jumped, g.state
}

func (g *StallGuard) State() StallState { return g.state }

// Stalls is the current consecutive no-progress count.
func (g *StallGuard) Stalls() int { return g.stalls }

// Jumps is how many forced jumps have happened.
func (g *StallGuard) Jumps() int { return g.jumps }
