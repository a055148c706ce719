package separation

import (
	"context"
	"errors"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/amram/metrics"
	"github.com/himanishpuri/AmramAI/pkg/amram/model"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

// Options configures a Pipeline. Window and Overlap are in samples.
type Options struct {
	Window      int
	Overlap     int
	MaxSegments int
	Retries     int
	Stall       StallOptions
	// Band is the progress range used for the separation phase. The zero
	// value means SeparationBand.
	Band Band
}

// Pipeline splits long audio into overlapping windows, runs each through the
// model and stitches the sources back together. It is not safe for
// concurrent use; run one Separate at a time.
type Pipeline struct {
	model model.Separator
	opts  Options
	log   Logger

	// adjustPlan lets tests distort the computed plan.
	adjustPlan func(*Plan)
}

func NewPipeline(m model.Separator, opts Options, log Logger) *Pipeline {
	if log == nil {
		log = logger.Named("separation")
	}
	if opts.Band == (Band{}) {
		opts.Band = SeparationBand
	}
	return &Pipeline{model: m, opts: opts, log: log}
}

// Separate runs the model over buf. A partial result (some windows skipped,
// or the iteration cap reached) is returned without error and flagged in
// Result.Status. An error is returned for bad configuration, cancellation,
// a missing model, or when no window succeeded.
func (p *Pipeline) Separate(ctx context.Context, buf *AudioBuffer, sink ProgressSink) (*Result, error) {
	started := time.Now()
	if p.model == nil {
		return nil, &CatastrophicError{Op: "separate", Err: ErrModelUnavailable}
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	plan, err := Planner{MaxSegmentsCap: p.opts.MaxSegments}.Plan(buf.Len(), p.opts.Window, p.opts.Overlap)
	if err != nil {
		return nil, err
	}
	if p.adjustPlan != nil {
		p.adjustPlan(&plan)
	}

	total := plan.Total
	name := p.model.Name()
	p.log.Infof("separating %d samples with %s: mode=%s window=%d overlap=%d expected=%d",
		total, name, plan.Mode, plan.Window, plan.Overlap, plan.Expected)

	res := &Result{
		Output: newOutputBuffer(p.model.Sources(), len(buf.Channels), total, buf.SampleRate),
		Mode:   plan.Mode,
		Status: StatusComplete,
	}
	proc := NewChunkProcessor(p.model, p.opts.Retries, p.log)
	stitcher := NewStitcher(total, plan.Overlap, p.log)
	progress := NewProgressEstimator(total, plan.Expected, p.opts.Band, sink)
	progress.Log = p.log
	guard := NewStallGuard(plan.Window, p.opts.Stall)

	committed := 0
	start := 0
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if guard.Tick(iter, plan.MaxSegments) == Aborted {
			p.log.Warnf("iteration cap %d reached at sample %d of %d; returning partial output",
				plan.MaxSegments, stitcher.Cursor(), total)
			metrics.RecordStall("aborted")
			res.Skipped = append(res.Skipped, SkippedRegion{
				Region:       Region{Start: stitcher.Cursor(), End: total},
				SegmentIndex: iter,
				Reason:       SkipAborted,
			})
			res.Status = StatusAborted
			break
		}

		end := min(start+plan.Window, total)
		seg := Segment{Start: start, End: end, Index: iter}
		chunk := proc.Process(ctx, buf, seg)
		res.Iterations++
		if p.absorb(seg, &chunk, stitcher, res) {
			committed++
		}
		proc.release(&chunk)

		snap := progress.Observe(seg.Start, chunk.Duration)
		p.log.Debugf("window %s done in %s, %.1f%%, %d left, eta %s",
			seg, chunk.Duration.Round(time.Millisecond), snap.Percent, snap.Left, snap.ETA.Format(time.TimeOnly))

		if end >= total {
			break
		}

		jumps := guard.Jumps()
		next, state := guard.Check(start, start+plan.Stride, total)
		if guard.Jumps() > jumps {
			p.log.Warnf("playhead stuck at %d for %d iterations, jumping to %d", start, guard.opts.Threshold, next)
			metrics.RecordStall("forced_jump")
			res.Skipped = append(res.Skipped, SkippedRegion{
				Region:       Region{Start: min(end, total), End: min(next, total)},
				SegmentIndex: iter,
				Reason:       SkipStallJump,
			})
		}
		if state == Done {
			break
		}
		if next <= start {
			next = start + max(1, plan.Window/4)
			p.log.Warnf("stride does not advance the playhead, forcing %d -> %d", start, next)
			metrics.RecordStall("min_advance")
		}
		start = next
	}

	res.Gaps = stitcher.Finish()
	res.Elapsed = time.Since(started)

	if committed == 0 {
		metrics.RecordSeparation("failed", res.Elapsed)
		p.log.Errorf("no window of %d produced output", res.Segments)
		return nil, &CatastrophicError{Op: "separate", Err: ErrAllChunksFailed}
	}
	if res.Status == StatusComplete && len(res.Gaps) > 0 {
		res.Status = StatusPartial
	}
	progress.Finish()
	metrics.RecordSeparation(res.Status.String(), res.Elapsed)

	if res.Status == StatusComplete {
		p.log.Infof("separation complete: %d windows in %s", res.Segments, res.Elapsed.Round(time.Millisecond))
	} else {
		p.log.Warnf("separation %s: %d of %d windows failed, %d gap(s) zero-filled",
			res.Status, res.Failed, res.Segments, len(res.Gaps))
	}
	return res, nil
}

// absorb folds one window result into res and reports whether anything was
// written to the output.
func (p *Pipeline) absorb(seg Segment, chunk *ChunkResult, st *Stitcher, res *Result) bool {
	name := p.model.Name()
	res.Segments++

	if !chunk.OK() {
		res.Failed++
		p.log.Warnf("window %s skipped after %d attempt(s): %v", seg, chunk.Attempts, chunk.Err)
		res.Skipped = append(res.Skipped, SkippedRegion{
			Region:       st.Effective(seg),
			SegmentIndex: seg.Index,
			Reason:       SkipInferenceFailed,
			Err:          chunk.Err,
		})
		metrics.RecordChunk(name, string(SkipInferenceFailed), chunk.Duration)
		return false
	}

	region, err := st.Commit(seg, chunk, res.Output)
	switch {
	case errors.Is(err, ErrDegenerateRegion):
		res.Skipped = append(res.Skipped, SkippedRegion{
			Region:       region,
			SegmentIndex: seg.Index,
			Reason:       SkipDegenerate,
			Err:          err,
		})
		metrics.RecordChunk(name, string(SkipDegenerate), chunk.Duration)
		return false
	case err != nil:
		res.Failed++
		res.Skipped = append(res.Skipped, SkippedRegion{
			Region:       region,
			SegmentIndex: seg.Index,
			Reason:       SkipStitchBounds,
			Err:          err,
		})
		metrics.RecordChunk(name, string(SkipStitchBounds), chunk.Duration)
		return false
	}
	metrics.RecordChunk(name, "ok", chunk.Duration)
	return true
}
