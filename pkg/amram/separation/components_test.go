package separation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func chunkOf(seg Segment, sources, channels int, value float32) *ChunkResult {
	res := &ChunkResult{Segment: seg, Sources: make([][][]float32, sources)}
	for s := range res.Sources {
		res.Sources[s] = make([][]float32, channels)
		for c := range res.Sources[s] {
			ch := make([]float32, seg.Len())
			for i := range ch {
				ch[i] = value
			}
			res.Sources[s][c] = ch
		}
	}
	return res
}

func TestStitcherTrims(t *testing.T) {
	st := NewStitcher(1000, 11, nopLogger{})
	tests := []struct {
		seg         Segment
		lead, trail int
	}{
		{Segment{Start: 0, End: 100}, 0, 6},
		{Segment{Start: 89, End: 189}, 5, 6},
		{Segment{Start: 900, End: 1000}, 5, 0},
		{Segment{Start: 0, End: 1000}, 0, 0},
	}
	for _, tt := range tests {
		lead, trail := st.Trims(tt.seg)
		if lead != tt.lead || trail != tt.trail {
			t.Errorf("Trims(%s) = %d,%d want %d,%d", tt.seg, lead, trail, tt.lead, tt.trail)
		}
	}
}

func TestStitcherDegenerateRegion(t *testing.T) {
	out := newOutputBuffer([]string{"a"}, 1, 100, 1)
	st := NewStitcher(100, 10, nopLogger{})

	// A 4-sample window in the middle loses 5+5 samples to trimming.
	seg := Segment{Start: 40, End: 44, Index: 3}
	_, err := st.Commit(seg, chunkOf(seg, 1, 1, 1), out)
	if !errors.Is(err, ErrDegenerateRegion) {
		t.Fatalf("expected ErrDegenerateRegion, got %v", err)
	}
	for i, v := range out.Sources[0][0] {
		if v != 0 {
			t.Fatalf("degenerate commit wrote sample %d", i)
		}
	}
	if st.Cursor() != 0 {
		t.Errorf("cursor moved to %d", st.Cursor())
	}
}

func TestStitcherBoundsErrorLeavesOutputUntouched(t *testing.T) {
	seg := Segment{Start: 0, End: 50, Index: 0}
	tests := map[string]func() *ChunkResult{
		"short channel": func() *ChunkResult {
			res := chunkOf(seg, 2, 2, 1)
			res.Sources[1][1] = res.Sources[1][1][:10]
			return res
		},
		"channel mismatch": func() *ChunkResult {
			return chunkOf(seg, 2, 1, 1)
		},
		"no sources": func() *ChunkResult {
			return &ChunkResult{Segment: seg}
		},
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			out := newOutputBuffer([]string{"a", "b"}, 2, 100, 1)
			st := NewStitcher(100, 10, nopLogger{})
			_, err := st.Commit(seg, build(), out)
			var sbe *StitchBoundsError
			if !errors.As(err, &sbe) {
				t.Fatalf("expected StitchBoundsError, got %v", err)
			}
			for s := range out.Sources {
				for c := range out.Sources[s] {
					for i, v := range out.Sources[s][c] {
						if v != 0 {
							t.Fatalf("partial write at source %d channel %d sample %d", s, c, i)
						}
					}
				}
			}
		})
	}
}

func TestStitcherOutOfRangeSegment(t *testing.T) {
	out := newOutputBuffer([]string{"a"}, 1, 100, 1)
	st := NewStitcher(200, 10, nopLogger{})
	seg := Segment{Start: 90, End: 190, Index: 1}
	_, err := st.Commit(seg, chunkOf(seg, 1, 1, 1), out)
	var sbe *StitchBoundsError
	if !errors.As(err, &sbe) || sbe.SegmentIndex != 1 {
		t.Fatalf("expected StitchBoundsError for window 1, got %v", err)
	}
}

func TestStitcherNeverWritesTwice(t *testing.T) {
	out := newOutputBuffer([]string{"a"}, 1, 300, 1)
	st := NewStitcher(300, 10, nopLogger{})

	first := Segment{Start: 0, End: 100, Index: 0}
	if _, err := st.Commit(first, chunkOf(first, 1, 1, 1), out); err != nil {
		t.Fatal(err)
	}
	// A window that backs up well into the first one only adds new samples.
	second := Segment{Start: 25, End: 125, Index: 1}
	region, err := st.Commit(second, chunkOf(second, 1, 1, 2), out)
	if err != nil {
		t.Fatal(err)
	}
	if region != (Region{Start: 95, End: 120}) {
		t.Errorf("region = %v", region)
	}
	if out.Sources[0][0][94] != 1 || out.Sources[0][0][95] != 2 {
		t.Errorf("overwrote committed samples: %v %v", out.Sources[0][0][94], out.Sources[0][0][95])
	}

	gaps := st.Finish()
	if len(gaps) != 1 || gaps[0] != (Region{Start: 120, End: 300}) {
		t.Errorf("gaps = %v", gaps)
	}
}

func TestProgressEstimator(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewProgressEstimator(1000, 10, SeparationBand, sink)
	p.Now = func() time.Time { return now }

	durations := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second, 11 * time.Second}
	var snap Snapshot
	for i, d := range durations {
		snap = p.Observe((i+1)*100, d)
	}
	// Only the last five durations count: (2+3+4+5+11)/5 = 5s.
	if snap.AvgChunk != 5*time.Second {
		t.Errorf("AvgChunk = %s", snap.AvgChunk)
	}
	if snap.Left != 4 {
		t.Errorf("Left = %d", snap.Left)
	}
	if want := now.Add(20 * time.Second); !snap.ETA.Equal(want) {
		t.Errorf("ETA = %s want %s", snap.ETA, want)
	}
	if snap.Percent != 48 {
		t.Errorf("Percent = %v, want 48", snap.Percent)
	}

	// A position behind the playhead must not pull the percentage back.
	if back := p.Observe(100, time.Second); back.Percent != 48 || back.Emitted {
		t.Errorf("regressed to %+v", back)
	}

	// Past the end clamps to the band top.
	if over := p.Observe(5000, time.Second); over.Percent != 80 || over.Ratio != 1 {
		t.Errorf("overshoot = %+v", over)
	}
	p.Finish()
	if last := sink.values[len(sink.values)-1]; last != 80 {
		t.Errorf("last emission %v", last)
	}
	if n := len(sink.values); n != 7 {
		t.Errorf("emissions = %v", sink.values)
	}
}

func TestProgressEstimatorThrottles(t *testing.T) {
	sink := &recordingSink{}
	p := NewProgressEstimator(10_000, 100, SeparationBand, sink)
	for pos := 10; pos <= 100; pos += 10 {
		p.Observe(pos, time.Millisecond)
	}
	// 100/10000*80 = 0.8 points: not enough to emit.
	if len(sink.values) != 0 {
		t.Fatalf("emitted below one point: %v", sink.values)
	}
	p.Observe(130, time.Millisecond)
	if len(sink.values) != 1 {
		t.Fatalf("expected one emission at 1.04%%, got %v", sink.values)
	}
}

func TestProgressEstimatorExportBand(t *testing.T) {
	sink := &recordingSink{}
	p := NewProgressEstimator(4, 4, ExportBand, sink)
	for i := 1; i <= 4; i++ {
		p.Observe(i, 0)
	}
	want := []float64{85, 90, 95, 100}
	if len(sink.values) != len(want) {
		t.Fatalf("emissions = %v", sink.values)
	}
	for i := range want {
		if sink.values[i] != want[i] {
			t.Errorf("emission %d = %v want %v", i, sink.values[i], want[i])
		}
	}
	if (Band{Lo: 90, Hi: 130}).Scale(1) != 100 {
		t.Error("Scale must never exceed 100")
	}
}

func TestStallGuardTransitions(t *testing.T) {
	g := NewStallGuard(100, StallOptions{})

	if next, st := g.Check(0, 90, 10_000); next != 90 || st != Advancing {
		t.Fatalf("advance: %d %s", next, st)
	}
	for n := 1; n <= 2; n++ {
		next, st := g.Check(90, 90, 10_000)
		if next != 90 || st != Stalled || g.Stalls() != n {
			t.Fatalf("stall %d: next=%d state=%s stalls=%d", n, next, st, g.Stalls())
		}
	}
	next, st := g.Check(90, 90, 10_000)
	if st != ForcedJump || next != 290 {
		t.Fatalf("third stall: next=%d state=%s", next, st)
	}
	if g.Stalls() != 0 || g.Jumps() != 1 {
		t.Errorf("stalls=%d jumps=%d after jump", g.Stalls(), g.Jumps())
	}
	if _, st := g.Check(290, 380, 10_000); st != Advancing {
		t.Errorf("after jump state = %s", st)
	}
}

func TestStallGuardJumpNearEndIsDone(t *testing.T) {
	g := NewStallGuard(100, StallOptions{Threshold: 1, JumpFactor: 2})
	// 700 + 200 = 900 lands within a quarter window of 920.
	next, st := g.Check(700, 700, 920)
	if st != Done || next != 900 {
		t.Fatalf("next=%d state=%s", next, st)
	}
	g2 := NewStallGuard(100, StallOptions{Threshold: 1, JumpFactor: 2})
	if _, st := g2.Check(700, 700, 1000); st != ForcedJump {
		t.Fatalf("jump to 900 of 1000 should not finish, got %s", st)
	}
}

func TestStallGuardTick(t *testing.T) {
	g := NewStallGuard(100, StallOptions{})
	if g.Tick(9, 10) == Aborted {
		t.Fatal("aborted before cap")
	}
	if g.Tick(10, 10) != Aborted {
		t.Fatal("not aborted at cap")
	}
}

func TestChunkProcessorRejectsSegmentOutsideBuffer(t *testing.T) {
	m := newFakeModel()
	proc := NewChunkProcessor(m, 0, nopLogger{})
	res := proc.Process(context.Background(), rampBuffer(1, 100), Segment{Start: 50, End: 150, Index: 4})
	var cie *ChunkInferenceError
	if !errors.As(res.Err, &cie) || cie.SegmentIndex != 4 {
		t.Fatalf("expected ChunkInferenceError for window 4, got %v", res.Err)
	}
	if m.Calls() != 0 {
		t.Error("model should not be called for an invalid segment")
	}
}

// scribblingModel separates like fakeModel and then zeroes its input.
type scribblingModel struct{ *fakeModel }

func (m scribblingModel) Apply(ctx context.Context, batch [][][]float32) ([][][]float32, error) {
	out, err := m.fakeModel.Apply(ctx, batch)
	for _, ch := range batch[0] {
		clear(ch)
	}
	return out, err
}

func TestChunkProcessorModelCannotTouchInput(t *testing.T) {
	buf := rampBuffer(2, 100)
	want := rampBuffer(2, 100)
	proc := NewChunkProcessor(scribblingModel{newFakeModel()}, 0, nopLogger{})

	res := proc.Process(context.Background(), buf, Segment{Start: 20, End: 80})
	if res.Err != nil {
		t.Fatalf("Process: %v", res.Err)
	}
	for c := range buf.Channels {
		for i, v := range buf.Channels[c] {
			if v != want.Channels[c][i] {
				t.Fatalf("channel %d sample %d changed to %v", c, i, v)
			}
		}
	}
}

func TestChunkProcessorEmptyResult(t *testing.T) {
	m := newFakeModel()
	m.sources = nil
	proc := NewChunkProcessor(m, 2, nopLogger{})
	res := proc.Process(context.Background(), rampBuffer(1, 10), Segment{Start: 0, End: 10})
	if !errors.Is(res.Err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
}
