package separation

import (
	"errors"
	"fmt"
)

var (
	// ErrAllChunksFailed is reported when no window produced output.
	ErrAllChunksFailed = errors.New("every window failed")
	// ErrDegenerateRegion marks a window whose effective range is empty after trimming.
	ErrDegenerateRegion = errors.New("degenerate effective region")
	// ErrEmptyResult is returned by the model wrapper when a window yields no sources.
	ErrEmptyResult = errors.New("model returned no sources")
	// ErrModelUnavailable means no separation model could be obtained.
	ErrModelUnavailable = errors.New("separation model unavailable")
)

// ConfigurationError is raised before any processing starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ChunkInferenceError wraps a failed model call for one window.
type ChunkInferenceError struct {
	SegmentIndex int
	Err          error
}

func (e *ChunkInferenceError) Error() string {
	return fmt.Sprintf("window %d: inference failed: %v", e.SegmentIndex, e.Err)
}

func (e *ChunkInferenceError) Unwrap() error { return e.Err }

// StitchBoundsError reports a shape or index mismatch while copying a window.
type StitchBoundsError struct {
	SegmentIndex int
	Detail       string
}

func (e *StitchBoundsError) Error() string {
	return fmt.Sprintf("window %d: stitch out of bounds: %s", e.SegmentIndex, e.Detail)
}

// CatastrophicError means the whole run produced nothing usable.
type CatastrophicError struct {
	Op  string
	Err error
}

func (e *CatastrophicError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CatastrophicError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsCatastrophic reports whether err is (or wraps) a CatastrophicError.
func IsCatastrophic(err error) bool {
	var ce *CatastrophicError
	return errors.As(err, &ce)
}
