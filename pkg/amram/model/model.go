package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Separator applies a source-separation model to one batch of audio.
//
// The batch is shaped [1][channels][samples]; the result is shaped
// [sources][channels][samples] with the batch dimension already removed.
// The batch belongs to the caller for the duration of the call only.
type Separator interface {
	Name() string
	Sources() []string
	Apply(ctx context.Context, batch [][][]float32) ([][][]float32, error)
	Close() error
}

// CacheClearer is implemented by models that hold per-window scratch memory
// (accelerator buffers, tensor pools) which should be dropped between windows.
type CacheClearer interface {
	ClearCache() error
}

type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
	DeviceAuto Device = "auto"
)

// ParseDevice accepts cpu, cuda or auto (case-insensitive).
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case DeviceCPU, DeviceCUDA, DeviceAuto:
		return d, nil
	case "":
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("unknown device %q (want cpu, cuda or auto)", s)
	}
}

// Resolve maps auto onto a concrete device. CUDA is only chosen when a native
// backend is compiled in and reports GPU support.
func (d Device) Resolve() Device {
	if d != DeviceAuto {
		return d
	}
	if NativeAvailable() && CUDAAvailable() {
		return DeviceCUDA
	}
	return DeviceCPU
}

var (
	ErrUnknownModel   = errors.New("unknown model")
	ErrMalformedBatch = errors.New("malformed batch")
	ErrModelClosed    = errors.New("model is closed")
)

// Known model names and the sources they produce.
var knownSources = map[string][]string{
	"htdemucs":    {"drums", "bass", "other", "vocals"},
	"htdemucs_ft": {"drums", "bass", "other", "vocals"},
	"mdx_extra":   {"drums", "bass", "other", "vocals"},
	"htdemucs_6s": {"drums", "bass", "other", "vocals", "guitar", "piano"},
}

// SourcesFor returns the stem names produced by the named model.
func SourcesFor(name string) ([]string, error) {
	src, ok := knownSources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return append([]string(nil), src...), nil
}

// KnownModels lists the model names SourcesFor understands.
func KnownModels() []string {
	return []string{"htdemucs", "htdemucs_ft", "htdemucs_6s", "mdx_extra"}
}

// checkBatch validates a [1][channels][samples] batch and returns its
// channel and sample counts.
func checkBatch(batch [][][]float32) (channels, samples int, err error) {
	if len(batch) != 1 {
		return 0, 0, fmt.Errorf("%w: batch dimension is %d, want 1", ErrMalformedBatch, len(batch))
	}
	channels = len(batch[0])
	if channels == 0 {
		return 0, 0, fmt.Errorf("%w: no channels", ErrMalformedBatch)
	}
	samples = len(batch[0][0])
	if samples == 0 {
		return 0, 0, fmt.Errorf("%w: no samples", ErrMalformedBatch)
	}
	for c := 1; c < channels; c++ {
		if len(batch[0][c]) != samples {
			return 0, 0, fmt.Errorf("%w: channel %d has %d samples, want %d", ErrMalformedBatch, c, len(batch[0][c]), samples)
		}
	}
	return channels, samples, nil
}
