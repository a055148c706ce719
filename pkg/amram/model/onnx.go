//go:build onnx

package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNativeUnavailable is never returned when the backend is compiled in; it
// exists so callers can reference it regardless of build tags.
var ErrNativeUnavailable = errors.New("model: onnx backend not available")

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initORT() error {
	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// NativeAvailable reports that the ONNX backend is compiled in.
func NativeAvailable() bool { return true }

// CUDAAvailable reports whether a CUDA execution provider can be configured.
func CUDAAvailable() bool {
	if err := initORT(); err != nil {
		return false
	}
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return false
	}
	opts.Destroy()
	return true
}

// ONNXModel runs an exported separation network. The graph takes "mix"
// shaped [1, channels, samples] and returns "sources" shaped
// [1, sources, channels, samples].
type ONNXModel struct {
	name    string
	sources []string
	device  Device

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// NewNative loads <modelsDir>/<name>.onnx.
func NewNative(modelsDir, name string, device Device) (Separator, error) {
	sources, err := SourcesFor(name)
	if err != nil {
		return nil, err
	}
	path := modelPath(modelsDir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("onnx: model file %s: %w", path, err)
	}
	if err := initORT(); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer opts.Destroy()

	if device == DeviceCUDA {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("onnx: cuda provider: %w", err)
		}
		defer cuda.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
			return nil, fmt.Errorf("onnx: append cuda provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{"mix"}, []string{"sources"}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &ONNXModel{name: name, sources: sources, device: device, session: session}, nil
}

func (m *ONNXModel) Name() string { return m.name }

func (m *ONNXModel) Sources() []string { return append([]string(nil), m.sources...) }

func (m *ONNXModel) Apply(ctx context.Context, batch [][][]float32) ([][][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	channels, samples, err := checkBatch(batch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrModelClosed
	}

	flat := make([]float32, 0, channels*samples)
	for _, ch := range batch[0] {
		flat = append(flat, ch...)
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(channels), int64(samples)), flat)
	if err != nil {
		return nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	defer input.Destroy()

	nSources := len(m.sources)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(nSources), int64(channels), int64(samples)))
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}

	data := output.GetData()
	out := make([][][]float32, nSources)
	for s := range out {
		out[s] = make([][]float32, channels)
		for c := range out[s] {
			off := (s*channels + c) * samples
			out[s][c] = append([]float32(nil), data[off:off+samples]...)
		}
	}
	return out, nil
}

// ClearCache is a no-op hook: tensors are created and destroyed per call, so
// nothing outlives a window.
func (m *ONNXModel) ClearCache() error { return nil }

func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	return nil
}
