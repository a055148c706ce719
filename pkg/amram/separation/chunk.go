package separation

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/amram/model"
)

// ChunkProcessor submits one window at a time to a separation model.
type ChunkProcessor struct {
	Model model.Separator
	// Retries is how many extra attempts a failing window gets.
	Retries int
	Log     Logger

	expected int
}

func NewChunkProcessor(m model.Separator, retries int, log Logger) *ChunkProcessor {
	return &ChunkProcessor{
		Model:    m,
		Retries:  max(0, retries),
		Log:      log,
		expected: len(m.Sources()),
	}
}

// Process runs the model over seg. Failures are reported through the
// returned ChunkResult, never as a panic or a separate error.
func (p *ChunkProcessor) Process(ctx context.Context, buf *AudioBuffer, seg Segment) ChunkResult {
	res := ChunkResult{Segment: seg}
	if seg.Start < 0 || seg.End > buf.Len() || seg.End <= seg.Start {
		res.Err = &ChunkInferenceError{
			SegmentIndex: seg.Index,
			Err:          fmt.Errorf("segment %s outside buffer of %d samples", seg, buf.Len()),
		}
		return res
	}

	// The model gets its own copy so in-place work on the batch cannot
	// reach the overlap the next window reads.
	batch := [][][]float32{make([][]float32, len(buf.Channels))}
	for c, ch := range buf.Channels {
		batch[0][c] = append([]float32(nil), ch[seg.Start:seg.End]...)
	}

	started := time.Now()
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				break
			}
			p.Log.Debugf("retrying window %s (attempt %d)", seg, attempt+1)
		}
		res.Attempts++
		sources, err := p.apply(ctx, batch)
		if err == nil {
			sources, err = p.normalise(seg, sources)
		}
		if err == nil {
			res.Sources = sources
			res.Err = nil
			break
		}
		res.Err = &ChunkInferenceError{SegmentIndex: seg.Index, Err: err}
	}
	res.Duration = time.Since(started)
	return res
}

// apply calls the model, turning a panic into an error.
func (p *ChunkProcessor) apply(ctx context.Context, batch [][][]float32) (out [][][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return p.Model.Apply(ctx, batch)
}

// normalise checks the source tensor and reconciles its source count with
// the model's declared sources.
func (p *ChunkProcessor) normalise(seg Segment, sources [][][]float32) ([][][]float32, error) {
	if len(sources) == 0 {
		return nil, ErrEmptyResult
	}
	for s, src := range sources {
		if len(src) == 0 {
			return nil, fmt.Errorf("source %d has no channels", s)
		}
	}
	switch {
	case p.expected > 0 && len(sources) < p.expected:
		p.Log.Warnf("window %s: model returned %d sources, expected %d; keeping the ones present",
			seg, len(sources), p.expected)
	case p.expected > 0 && len(sources) > p.expected:
		p.Log.Warnf("window %s: model returned %d sources, expected %d; extra sources dropped",
			seg, len(sources), p.expected)
		sources = sources[:p.expected]
	}
	return sources, nil
}

// release drops the window tensor and asks the model to free scratch memory.
func (p *ChunkProcessor) release(res *ChunkResult) {
	res.Release()
	if cc, ok := p.Model.(model.CacheClearer); ok {
		if err := cc.ClearCache(); err != nil {
			p.Log.Debugf("clear model cache: %v", err)
		}
	}
}
