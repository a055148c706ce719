package amram

import (
	"context"

	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

type Service interface {
	GetVideoInfo(ctx context.Context, url string) (*audio.VideoInfo, error)
	DownloadAudio(ctx context.Context, url string, progress func(percent float64)) (string, *audio.VideoInfo, error)
	SeparateTracks(ctx context.Context, audioPath string, sink separation.ProgressSink) (*SeparationResult, error)
	SeparateURL(ctx context.Context, url string, sink separation.ProgressSink) (*SeparationResult, error)
	MixTracks(ctx context.Context, tracks []models.MixTrack, outPath string) (*mixer.Mix, error)
	CustomMixPath(title string) string
	ListJobs(limit int) ([]models.Job, error)
	GetJob(id string) (*models.Job, error)
	DeleteJob(id string, removeFiles bool) error
	Close() error
}

type Storage interface {
	CreateJob(source, sourceURL, title, model string) (string, error)
	FinishJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	ListJobs(limit int) ([]models.Job, error)
	DeleteJob(id string) error
	Close() error
}

// Downloader fetches audio from a URL.
type Downloader interface {
	VideoInfo(ctx context.Context, url string) (*audio.VideoInfo, error)
	DownloadAudio(ctx context.Context, url string, progress func(percent float64)) (string, *audio.VideoInfo, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
