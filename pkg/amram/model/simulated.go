package model

import (
	"context"
	"sync"
)

// instrumentGain is the fraction of the input each simulated stem carries.
var instrumentGain = map[string]float32{
	"vocals": 0.8,
	"drums":  0.6,
	"bass":   0.7,
	"guitar": 0.5,
	"piano":  0.4,
	"other":  0.3,
}

// SimulatedModel produces every stem as a scaled copy of the input. It keeps
// the pipeline usable when no inference backend is compiled in.
type SimulatedModel struct {
	name    string
	sources []string

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewSimulated returns a SimulatedModel with the stems of the named model.
func NewSimulated(name string) (*SimulatedModel, error) {
	sources, err := SourcesFor(name)
	if err != nil {
		return nil, err
	}
	return &SimulatedModel{name: name, sources: sources}, nil
}

func (m *SimulatedModel) Name() string { return m.name }

func (m *SimulatedModel) Sources() []string { return append([]string(nil), m.sources...) }

func (m *SimulatedModel) Apply(ctx context.Context, batch [][][]float32) ([][][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrModelClosed
	}
	m.calls++
	m.mu.Unlock()

	channels, samples, err := checkBatch(batch)
	if err != nil {
		return nil, err
	}

	out := make([][][]float32, len(m.sources))
	for s, name := range m.sources {
		gain, ok := instrumentGain[name]
		if !ok {
			gain = 0.5
		}
		out[s] = make([][]float32, channels)
		for c := 0; c < channels; c++ {
			dst := make([]float32, samples)
			for i, v := range batch[0][c] {
				dst[i] = v * gain
			}
			out[s][c] = dst
		}
	}
	return out, nil
}

// Calls returns how many times Apply has been invoked.
func (m *SimulatedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *SimulatedModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
