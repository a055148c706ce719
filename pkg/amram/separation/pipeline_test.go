package separation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
)

func newTestPipeline(m *fakeModel, window, overlap int) *Pipeline {
	return NewPipeline(m, Options{Window: window, Overlap: overlap}, nopLogger{})
}

func TestSeparateDirectTenSeconds(t *testing.T) {
	m := newFakeModel()
	buf := rampBuffer(2, 441000)

	res, err := newTestPipeline(m, 441000, 4410).Separate(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if m.Calls() != 1 {
		t.Fatalf("expected exactly one model call, got %d", m.Calls())
	}
	if res.Mode != ModeDirect || res.Status != StatusComplete {
		t.Errorf("mode=%s status=%s", res.Mode, res.Status)
	}
	out := res.Output
	if len(out.Sources) != 4 || len(out.Sources[0]) != 2 || out.Len() != 441000 {
		t.Fatalf("output shape (%d,%d,%d)", len(out.Sources), len(out.Sources[0]), out.Len())
	}
}

func TestSeparateShortInputEqualsSingleModelCall(t *testing.T) {
	buf := rampBuffer(2, 3000)

	direct, err := newFakeModel().Apply(context.Background(), [][][]float32{buf.Channels})
	if err != nil {
		t.Fatal(err)
	}
	res, err := newTestPipeline(newFakeModel(), 4000, 100).Separate(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	for s := range direct {
		for c := range direct[s] {
			for i, want := range direct[s][c] {
				if got := res.Output.Sources[s][c][i]; got != want {
					t.Fatalf("source %d channel %d sample %d: got %v want %v", s, c, i, got, want)
				}
			}
		}
	}
}

func TestSeparateFortySecondsFullyCovered(t *testing.T) {
	m := newFakeModel()
	buf := rampBuffer(1, 1764000)

	res, err := newTestPipeline(m, 441000, 4410).Separate(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if m.Calls() != 5 {
		t.Errorf("model calls = %d, want 5", m.Calls())
	}
	if res.Status != StatusComplete || len(res.Gaps) != 0 || len(res.Skipped) != 0 {
		t.Fatalf("status=%s gaps=%v skipped=%v", res.Status, res.Gaps, res.Skipped)
	}
	vocals := res.Output.Source("vocals")[0]
	for i, v := range buf.Channels[0] {
		if vocals[i] != v*0.8 {
			t.Fatalf("sample %d: got %v want %v", i, vocals[i], v*0.8)
		}
	}
}

func TestSeparateSkipsFailingWindow(t *testing.T) {
	m := newFakeModel()
	m.fail = func(call int, _ [][][]float32) error {
		if call == 2 {
			return errInference
		}
		return nil
	}
	buf := rampBuffer(1, 1764000)

	res, err := newTestPipeline(m, 441000, 4410).Separate(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("one failing window must not fail the run: %v", err)
	}
	if res.Status != StatusPartial || res.Failed != 1 || res.Segments != 5 {
		t.Fatalf("status=%s failed=%d segments=%d", res.Status, res.Failed, res.Segments)
	}

	gap := Region{Start: 873180 + 2205, End: 1309770 + 2205}
	if len(res.Gaps) != 1 || res.Gaps[0] != gap {
		t.Fatalf("gaps = %v, want [%v]", res.Gaps, gap)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipInferenceFailed ||
		res.Skipped[0].SegmentIndex != 2 || res.Skipped[0].Region != gap {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	var cie *ChunkInferenceError
	if !errors.As(res.Skipped[0].Err, &cie) || !errors.Is(cie, errInference) {
		t.Errorf("skipped error should wrap the inference failure: %v", res.Skipped[0].Err)
	}

	drums := res.Output.Source("drums")[0]
	for i, v := range drums {
		inGap := i >= gap.Start && i < gap.End
		if inGap && v != 0 {
			t.Fatalf("sample %d inside the gap is %v, want silence", i, v)
		}
		if !inGap && v == 0 {
			t.Fatalf("sample %d outside the gap was not written", i)
		}
	}
}

func TestSeparateRejectsOverlapBeforeModelCall(t *testing.T) {
	m := newFakeModel()
	_, err := newTestPipeline(m, 1000, 1000).Separate(context.Background(), rampBuffer(2, 5000), nil)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if m.Calls() != 0 {
		t.Errorf("model called %d times before configuration was rejected", m.Calls())
	}
}

func TestSeparateRejectsInvalidBuffer(t *testing.T) {
	bad := &AudioBuffer{SampleRate: 44100, Channels: [][]float32{{1, 2, 3}, {1, 2}}}
	_, err := newTestPipeline(newFakeModel(), 10, 1).Separate(context.Background(), bad, nil)
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError for ragged buffer, got %v", err)
	}
}

func TestSeparateAllWindowsFail(t *testing.T) {
	m := newFakeModel()
	m.fail = func(int, [][][]float32) error { return errInference }

	res, err := newTestPipeline(m, 100, 10).Separate(context.Background(), rampBuffer(1, 1000), nil)
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
	if !IsCatastrophic(err) || !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("expected ErrAllChunksFailed, got %v", err)
	}
}

func TestSeparateDirectFailureIsCatastrophic(t *testing.T) {
	m := newFakeModel()
	m.fail = func(int, [][][]float32) error { return errInference }
	_, err := newTestPipeline(m, 1000, 10).Separate(context.Background(), rampBuffer(1, 500), nil)
	if !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("expected ErrAllChunksFailed, got %v", err)
	}
}

func TestSeparateNilModel(t *testing.T) {
	p := NewPipeline(nil, Options{Window: 10}, nopLogger{})
	_, err := p.Separate(context.Background(), rampBuffer(1, 5), nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestSeparateRecoversModelPanic(t *testing.T) {
	m := newFakeModel()
	m.panicOn = 1
	res, err := newTestPipeline(m, 100, 10).Separate(context.Background(), rampBuffer(1, 400), nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if res.Failed != 1 || res.Status != StatusPartial {
		t.Fatalf("failed=%d status=%s", res.Failed, res.Status)
	}
	if res.Skipped[0].SegmentIndex != 1 {
		t.Errorf("panic should be attributed to window 1, got %d", res.Skipped[0].SegmentIndex)
	}
}

func TestSeparateRetriesWindow(t *testing.T) {
	m := newFakeModel()
	m.fail = func(call int, _ [][][]float32) error {
		if call == 0 {
			return errInference
		}
		return nil
	}
	p := NewPipeline(m, Options{Window: 100, Overlap: 10, Retries: 1}, nopLogger{})
	res, err := p.Separate(context.Background(), rampBuffer(1, 250), nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if res.Status != StatusComplete || res.Failed != 0 {
		t.Fatalf("status=%s failed=%d", res.Status, res.Failed)
	}
	if m.Calls() != res.Segments+1 {
		t.Errorf("calls=%d segments=%d, expected one retry", m.Calls(), res.Segments)
	}
}

func TestSeparateSourceCountMismatch(t *testing.T) {
	t.Run("fewer sources", func(t *testing.T) {
		m := newFakeModel()
		m.produce = 2
		res, err := newTestPipeline(m, 100, 10).Separate(context.Background(), rampBuffer(1, 300), nil)
		if err != nil {
			t.Fatalf("Separate: %v", err)
		}
		if res.Status != StatusComplete {
			t.Errorf("status = %s", res.Status)
		}
		if res.Output.Sources[0][0][50] == 0 {
			t.Error("returned sources should be written")
		}
		if res.Output.Sources[3][0][50] != 0 {
			t.Error("missing sources should stay silent")
		}
	})
	t.Run("more sources", func(t *testing.T) {
		m := newFakeModel()
		m.produce = 6
		res, err := newTestPipeline(m, 100, 10).Separate(context.Background(), rampBuffer(1, 300), nil)
		if err != nil {
			t.Fatalf("Separate: %v", err)
		}
		if len(res.Output.Sources) != 4 || res.Status != StatusComplete {
			t.Errorf("sources=%d status=%s", len(res.Output.Sources), res.Status)
		}
	})
}

func TestSeparateClearsCacheEveryWindow(t *testing.T) {
	m := newFakeModel()
	res, err := newTestPipeline(m, 100, 10).Separate(context.Background(), rampBuffer(1, 1000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.cleared != res.Iterations {
		t.Errorf("cache cleared %d times over %d windows", m.cleared, res.Iterations)
	}
}

func TestSeparateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newFakeModel()
	m.fail = func(call int, _ [][][]float32) error {
		if call == 1 {
			cancel()
		}
		return nil
	}
	_, err := newTestPipeline(m, 100, 10).Separate(ctx, rampBuffer(1, 1000), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if m.Calls() != 2 {
		t.Errorf("loop should stop after the cancelling window, calls=%d", m.Calls())
	}
}

func TestSeparateForcedJumpAfterThreeStalls(t *testing.T) {
	m := newFakeModel()
	p := newTestPipeline(m, 100, 10)
	p.adjustPlan = func(plan *Plan) { plan.Stride = 0 }

	res, err := p.Separate(context.Background(), indexBuffer(10_000), nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	// Two minimum advances of window/4, then a jump of 2 windows.
	want := []float32{0, 25, 50, 250, 275, 300, 500}
	for i, w := range want {
		if m.firsts[i] != w {
			t.Fatalf("window %d started at %v, want %v (starts %v)", i, m.firsts[i], w, m.firsts[:len(want)])
		}
	}

	var jumps int
	for _, s := range res.Skipped {
		if s.Reason == SkipStallJump {
			jumps++
		}
	}
	if jumps == 0 {
		t.Fatal("expected stall jumps to be reported")
	}
	if res.Status == StatusComplete {
		t.Errorf("a run with forced jumps cannot be complete")
	}
	if res.Gaps[0] != (Region{Start: 145, End: 255}) {
		t.Errorf("first gap = %v", res.Gaps[0])
	}
	if res.Iterations > 200 {
		t.Errorf("iterations %d exceed the cap", res.Iterations)
	}
}

func TestSeparateIterationCapAborts(t *testing.T) {
	m := newFakeModel()
	p := NewPipeline(m, Options{Window: 100, Overlap: 10, MaxSegments: 2}, nopLogger{})
	res, err := p.Separate(context.Background(), rampBuffer(1, 10_000), nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if res.Status != StatusAborted {
		t.Fatalf("status = %s, want aborted", res.Status)
	}
	if m.Calls() != 2 || res.Iterations != 2 {
		t.Errorf("calls=%d iterations=%d, want 2", m.Calls(), res.Iterations)
	}
	last := res.Skipped[len(res.Skipped)-1]
	if last.Reason != SkipAborted || last.End != 10_000 {
		t.Errorf("last skipped = %+v", last)
	}
	if tail := res.Gaps[len(res.Gaps)-1]; tail.End != 10_000 {
		t.Errorf("tail gap = %v", tail)
	}
}

func TestSeparateStalledRunAlwaysTerminates(t *testing.T) {
	for _, total := range []int{150, 1_000, 37_771} {
		t.Run(fmt.Sprint(total), func(t *testing.T) {
			m := newFakeModel()
			p := newTestPipeline(m, 100, 10)
			p.adjustPlan = func(plan *Plan) { plan.Stride = 0 }
			res, err := p.Separate(context.Background(), rampBuffer(1, total), nil)
			if err != nil {
				t.Fatalf("Separate: %v", err)
			}
			plan, _ := Planner{}.Plan(total, 100, 10)
			if res.Iterations > plan.MaxSegments {
				t.Errorf("iterations %d > cap %d", res.Iterations, plan.MaxSegments)
			}
		})
	}
}

func TestSeparateProgress(t *testing.T) {
	sink := &recordingSink{}
	_, err := newTestPipeline(newFakeModel(), 100, 10).Separate(context.Background(), rampBuffer(1, 10_000), sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.values) == 0 {
		t.Fatal("no progress reported")
	}
	prev := 0.0
	for i, v := range sink.values {
		if v < prev {
			t.Fatalf("progress went backwards at %d: %v", i, sink.values)
		}
		if i > 0 && i < len(sink.values)-1 && v-prev < 1 {
			t.Fatalf("progress step %v -> %v below one point", prev, v)
		}
		if v > 80 {
			t.Fatalf("separation phase reported %v", v)
		}
		prev = v
	}
	if last := sink.values[len(sink.values)-1]; last != 80 {
		t.Errorf("final progress = %v, want 80", last)
	}
}

func TestSeparateProgressFollowsWindowStart(t *testing.T) {
	sink := &recordingSink{}
	_, err := newTestPipeline(newFakeModel(), 441000, 4410).Separate(context.Background(), rampBuffer(1, 1764000), sink)
	if err != nil {
		t.Fatal(err)
	}
	// Windows start at 0, 436590, 873180, 1309770 and 1746360. The first
	// stays below one point, the rest scale start/total onto [0, 80].
	want := []float64{19.8, 39.6, 59.4, 79.2, 80}
	if len(sink.values) != len(want) {
		t.Fatalf("emissions = %v, want %v", sink.values, want)
	}
	for i, w := range want {
		if math.Abs(sink.values[i]-w) > 1e-9 {
			t.Errorf("emission %d = %v, want %v", i, sink.values[i], w)
		}
	}
}

func TestSeparateSurvivesPanickingSink(t *testing.T) {
	sink := ProgressFunc(func(float64) { panic("sink") })
	res, err := newTestPipeline(newFakeModel(), 100, 10).Separate(context.Background(), rampBuffer(1, 1000), sink)
	if err != nil || res.Status != StatusComplete {
		t.Fatalf("sink panic leaked into the run: %v", err)
	}
}
