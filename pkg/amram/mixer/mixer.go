package mixer

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

// TargetPeak is the absolute peak a mix is normalised to.
const TargetPeak = 0.9

var ErrNothingToMix = errors.New("no tracks could be loaded")

// Track is one stem in a mix.
type Track struct {
	Name  string
	Path  string
	Level float64 // gain in [0, 1]
	Mute  bool
	Solo  bool
}

// Mix is the rendered result.
type Mix struct {
	Channels   [][]float32
	SampleRate int
	Used       []string
	Skipped    []string
	Peak       float64
}

// Mixer loads stems and sums them with per-track gain.
type Mixer struct {
	log *logger.Logger
}

func New() *Mixer {
	return &Mixer{log: logger.Named("mixer")}
}

// ClampLevel limits a level to [0, 1].
func ClampLevel(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ParseLevel validates a user-entered level.
func ParseLevel(s string) (float64, error) {
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if v < 0 || v > 1 || math.IsNaN(v) {
		return 0, fmt.Errorf("level %g must be between 0.0 and 1.0", v)
	}
	return v, nil
}

// Audible reports whether track contributes to the mix. When any track is
// soloed only soloed tracks play, regardless of mute.
func Audible(track Track, anySolo bool) bool {
	if anySolo {
		return track.Solo
	}
	return !track.Mute
}

// Render mixes tracks. Missing or unreadable files are skipped with a
// warning. Every loaded track is trimmed to the shortest one, and the sum is
// scaled so its peak is TargetPeak.
func (m *Mixer) Render(tracks []Track) (*Mix, error) {
	anySolo := false
	for _, t := range tracks {
		if t.Solo {
			anySolo = true
			break
		}
	}

	type loaded struct {
		name     string
		gain     float32
		channels [][]float32
	}
	var (
		stems []loaded
		mix   = &Mix{}
	)
	for _, t := range tracks {
		if !Audible(t, anySolo) {
			continue
		}
		buf, err := audio.ReadWav(t.Path)
		if err != nil {
			m.log.Warnf("skipping %s: %v", t.Name, err)
			mix.Skipped = append(mix.Skipped, t.Name)
			continue
		}
		if mix.SampleRate == 0 {
			mix.SampleRate = buf.SampleRate
		} else if buf.SampleRate != mix.SampleRate {
			m.log.Warnf("skipping %s: sample rate %d differs from %d", t.Name, buf.SampleRate, mix.SampleRate)
			mix.Skipped = append(mix.Skipped, t.Name)
			continue
		}
		stems = append(stems, loaded{name: t.Name, gain: float32(ClampLevel(t.Level)), channels: buf.Channels})
		mix.Used = append(mix.Used, t.Name)
	}
	if len(stems) == 0 {
		return nil, ErrNothingToMix
	}

	length := math.MaxInt
	numCh := 0
	for _, s := range stems {
		length = min(length, len(s.channels[0]))
		numCh = max(numCh, len(s.channels))
	}

	mix.Channels = make([][]float32, numCh)
	for c := range mix.Channels {
		mix.Channels[c] = make([]float32, length)
	}
	for _, s := range stems {
		for c := range mix.Channels {
			src := s.channels[min(c, len(s.channels)-1)]
			dst := mix.Channels[c]
			for i := 0; i < length; i++ {
				dst[i] += src[i] * s.gain
			}
		}
	}

	mix.Peak = peak(mix.Channels)
	if mix.Peak > 0 {
		scale := float32(TargetPeak / mix.Peak)
		for _, ch := range mix.Channels {
			for i := range ch {
				ch[i] *= scale
			}
		}
	}
	return mix, nil
}

// RenderTo renders tracks and writes the mix as WAV.
func (m *Mixer) RenderTo(tracks []Track, outPath string) (*Mix, error) {
	mix, err := m.Render(tracks)
	if err != nil {
		return nil, err
	}
	if err := audio.WriteWav(outPath, mix.Channels, mix.SampleRate); err != nil {
		return nil, fmt.Errorf("write mix: %w", err)
	}
	m.log.Infof("Mix saved to %s (%d tracks)", outPath, len(mix.Used))
	return mix, nil
}

func peak(channels [][]float32) float64 {
	var p float64
	for _, ch := range channels {
		for _, v := range ch {
			if a := math.Abs(float64(v)); a > p {
				p = a
			}
		}
	}
	return p
}
