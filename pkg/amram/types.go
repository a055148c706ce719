package amram

import (
	"errors"

	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/amram/storage"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

var (
	// ErrBusy is returned when a separation is already running.
	ErrBusy = errors.New("a separation is already in progress")
	// ErrUnsupportedFormat is returned for files outside audio.SupportedExtensions.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = storage.ErrJobNotFound
)

// SeparationResult is what SeparateTracks hands back to callers.
type SeparationResult struct {
	Job       *models.Job
	OutputDir string
	Stems     []models.Stem
	Status    separation.Status
	Skipped   []separation.SkippedRegion
	Gaps      []separation.Region
}

// Partial reports whether some of the output is silence because windows
// were skipped or the run was cut short.
func (r *SeparationResult) Partial() bool {
	return r.Status != separation.StatusComplete
}
