package models

import "time"

// JobStatus mirrors the separation outcome plus the in-flight and failed states.
type JobStatus string

const (
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobPartial  JobStatus = "partial"
	JobAborted  JobStatus = "aborted"
	JobFailed   JobStatus = "failed"
)

// Finished reports whether the job has left the running state.
func (s JobStatus) Finished() bool { return s != JobRunning }

// Job is one separation run. Source is the local file that was separated;
// SourceURL is set when it was downloaded first. GapSamples counts the
// zero-filled samples of the output.
type Job struct {
	ID            string
	Source        string
	SourceURL     string
	Title         string
	Model         string
	Status        JobStatus
	DurationMs    int64
	Windows       int
	FailedWindows int
	GapSamples    int
	Error         string
	OutputDir     string
	CreatedAt     time.Time
	FinishedAt    *time.Time
	Stems         []Stem
}

// Stem is one separated source written to disk.
type Stem struct {
	Name string
	Path string
}

// MixTrack is one stem's settings in a custom mix.
type MixTrack struct {
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	Level float64 `json:"level"`
	Mute  bool    `json:"mute,omitempty"`
	Solo  bool    `json:"solo,omitempty"`
}
