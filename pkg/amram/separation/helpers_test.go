package separation

import (
	"context"
	"errors"
	"sync"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

// rampBuffer returns a buffer whose sample i is never zero and encodes i
// modulo 1000, so window starts can be recovered from the batch.
func rampBuffer(channels, n int) *AudioBuffer {
	buf := &AudioBuffer{SampleRate: 44100, Channels: make([][]float32, channels)}
	for c := range buf.Channels {
		ch := make([]float32, n)
		for i := range ch {
			ch[i] = float32(i%1000+1) / 1000
		}
		buf.Channels[c] = ch
	}
	return buf
}

// indexBuffer stores the sample index itself; exact for n < 2^24.
func indexBuffer(n int) *AudioBuffer {
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = float32(i)
	}
	return &AudioBuffer{SampleRate: 44100, Channels: [][]float32{ch}}
}

// fakeModel scales the input by per-source gains and records every call.
type fakeModel struct {
	sources []string
	gains   []float32
	// produce overrides the number of sources returned when > 0.
	produce int
	// fail decides whether a call should fail, given the call number and
	// the batch.
	fail func(call int, batch [][][]float32) error
	// panicOn makes the call with this number panic.
	panicOn int

	mu      sync.Mutex
	calls   int
	lengths []int
	firsts  []float32
	cleared int
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		sources: []string{"drums", "bass", "other", "vocals"},
		gains:   []float32{0.6, 0.7, 0.3, 0.8},
		panicOn: -1,
	}
}

func (m *fakeModel) Name() string      { return "fake" }
func (m *fakeModel) Sources() []string { return m.sources }
func (m *fakeModel) Close() error      { return nil }

func (m *fakeModel) ClearCache() error {
	m.mu.Lock()
	m.cleared++
	m.mu.Unlock()
	return nil
}

func (m *fakeModel) Apply(_ context.Context, batch [][][]float32) ([][][]float32, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.lengths = append(m.lengths, len(batch[0][0]))
	m.firsts = append(m.firsts, batch[0][0][0])
	m.mu.Unlock()

	if call == m.panicOn {
		panic("boom")
	}
	if m.fail != nil {
		if err := m.fail(call, batch); err != nil {
			return nil, err
		}
	}

	n := len(m.sources)
	if m.produce > 0 {
		n = m.produce
	}
	out := make([][][]float32, n)
	for s := range out {
		gain := float32(0.5)
		if s < len(m.gains) {
			gain = m.gains[s]
		}
		out[s] = make([][]float32, len(batch[0]))
		for c, ch := range batch[0] {
			dst := make([]float32, len(ch))
			for i, v := range ch {
				dst[i] = v * gain
			}
			out[s][c] = dst
		}
	}
	return out, nil
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errInference = errors.New("inference exploded")

type recordingSink struct {
	values []float64
}

func (s *recordingSink) Report(p float64) { s.values = append(s.values, p) }
