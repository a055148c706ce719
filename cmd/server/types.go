package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

// SeparateRequest is the request body for POST /api/separate. Exactly one of
// Path and URL must be set.
type SeparateRequest struct {
	// Path is a file on the server's disk.
	Path string `json:"path,omitempty"`
	// URL is a YouTube video to download first.
	URL string `json:"url,omitempty"`
}

func (r *SeparateRequest) Validate() error {
	switch {
	case r.Path == "" && r.URL == "":
		return errors.New("one of path or url is required")
	case r.Path != "" && r.URL != "":
		return errors.New("path and url are mutually exclusive")
	}
	return nil
}

// SeparateResponse is the response for a finished separation.
type SeparateResponse struct {
	Job     JobDTO       `json:"job"`
	Partial bool         `json:"partial"`
	Skipped []SkippedDTO `json:"skipped,omitempty"`
	Gaps    []RegionDTO  `json:"gaps,omitempty"`
}

type SkippedDTO struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Segment int    `json:"segment"`
	Reason  string `json:"reason"`
	Error   string `json:"error,omitempty"`
}

type RegionDTO struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MixRequest is the request body for POST /api/mix. When Tracks is empty
// every stem of the job is mixed at full level.
type MixRequest struct {
	JobID  string       `json:"job_id" binding:"required"`
	Tracks []TrackLevel `json:"tracks,omitempty"`
}

type TrackLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
	Mute  bool    `json:"mute,omitempty"`
	Solo  bool    `json:"solo,omitempty"`
}

// tracksFor resolves the requested levels against the stems of job.
func (r *MixRequest) tracksFor(job *models.Job) ([]models.MixTrack, error) {
	if len(job.Stems) == 0 {
		return nil, fmt.Errorf("job %s has no stems", job.ID)
	}
	paths := make(map[string]string, len(job.Stems))
	for _, s := range job.Stems {
		paths[s.Name] = s.Path
	}
	if len(r.Tracks) == 0 {
		out := make([]models.MixTrack, len(job.Stems))
		for i, s := range job.Stems {
			out[i] = models.MixTrack{Name: s.Name, Path: s.Path, Level: 1}
		}
		return out, nil
	}
	out := make([]models.MixTrack, 0, len(r.Tracks))
	for _, t := range r.Tracks {
		path, ok := paths[t.Name]
		if !ok {
			return nil, fmt.Errorf("unknown stem %q", t.Name)
		}
		if t.Level < 0 || t.Level > 1 {
			return nil, fmt.Errorf("level for %s must be between 0 and 1, got %g", t.Name, t.Level)
		}
		out = append(out, models.MixTrack{Name: t.Name, Path: path, Level: t.Level, Mute: t.Mute, Solo: t.Solo})
	}
	return out, nil
}

type MixResponse struct {
	Path    string   `json:"path"`
	Used    []string `json:"used"`
	Skipped []string `json:"skipped,omitempty"`
	Peak    float64  `json:"peak"`
}

type StemDTO struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// JobDTO represents a job in API responses
type JobDTO struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Source        string     `json:"source"`
	SourceURL     string     `json:"source_url,omitempty"`
	Model         string     `json:"model"`
	Status        string     `json:"status"`
	DurationMs    int64      `json:"duration_ms"`
	Windows       int        `json:"windows"`
	FailedWindows int        `json:"failed_windows"`
	GapSamples    int        `json:"gap_samples"`
	Error         string     `json:"error,omitempty"`
	OutputDir     string     `json:"output_dir,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Stems         []StemDTO  `json:"stems"`
}

func toJobDTO(j *models.Job) JobDTO {
	dto := JobDTO{
		ID:            j.ID,
		Title:         j.Title,
		Source:        j.Source,
		SourceURL:     j.SourceURL,
		Model:         j.Model,
		Status:        string(j.Status),
		DurationMs:    j.DurationMs,
		Windows:       j.Windows,
		FailedWindows: j.FailedWindows,
		GapSamples:    j.GapSamples,
		Error:         j.Error,
		OutputDir:     j.OutputDir,
		CreatedAt:     j.CreatedAt,
		FinishedAt:    j.FinishedAt,
		Stems:         make([]StemDTO, len(j.Stems)),
	}
	for i, s := range j.Stems {
		dto.Stems[i] = StemDTO{Name: s.Name, Path: s.Path}
	}
	return dto
}

func toSeparateResponse(res *amram.SeparationResult) SeparateResponse {
	out := SeparateResponse{Job: toJobDTO(res.Job), Partial: res.Partial()}
	for _, s := range res.Skipped {
		dto := SkippedDTO{Start: s.Start, End: s.End, Segment: s.SegmentIndex, Reason: string(s.Reason)}
		if s.Err != nil {
			dto.Error = s.Err.Error()
		}
		out.Skipped = append(out.Skipped, dto)
	}
	for _, g := range res.Gaps {
		out.Gaps = append(out.Gaps, RegionDTO{Start: g.Start, End: g.End})
	}
	return out
}

// ListJobsResponse is the response for GET /api/jobs
type ListJobsResponse struct {
	Jobs  []JobDTO `json:"jobs"`
	Count int      `json:"count"`
}

// DeleteJobResponse is the response for DELETE /api/jobs/:id
type DeleteJobResponse struct {
	Message      string `json:"message"`
	ID           string `json:"id"`
	FilesRemoved bool   `json:"files_removed"`
}

// VideoInfoDTO is the response for GET /api/info
type VideoInfoDTO struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	ViewCount  int64   `json:"view_count"`
	UploadDate string  `json:"upload_date,omitempty"`
}

func toVideoInfoDTO(v *audio.VideoInfo) VideoInfoDTO {
	return VideoInfoDTO{
		ID:         v.ID,
		Title:      v.Title,
		Author:     v.Author(),
		Duration:   v.Duration,
		Thumbnail:  v.Thumbnail,
		ViewCount:  v.ViewCount,
		UploadDate: v.UploadDate,
	}
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
