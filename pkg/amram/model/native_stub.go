//go:build !onnx

package model

import "errors"

// ErrNativeUnavailable indicates the ONNX backend is not compiled in.
var ErrNativeUnavailable = errors.New("model: onnx backend not available (build without -tags onnx)")

// NativeAvailable reports that no native backend is compiled in.
func NativeAvailable() bool { return false }

// CUDAAvailable reports whether the native backend can use a GPU.
func CUDAAvailable() bool { return false }

// NewNative returns an error when built without the onnx tag.
func NewNative(_, _ string, _ Device) (Separator, error) {
	return nil, ErrNativeUnavailable
}
