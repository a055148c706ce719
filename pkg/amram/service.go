package amram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/metrics"
	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/amram/model"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/logger"
	"github.com/himanishpuri/AmramAI/pkg/models"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

// amramService is the default implementation of the Service interface.
type amramService struct {
	storage    Storage
	log        Logger
	config     *Config
	models     *model.Cache
	ownsModels bool
	downloader Downloader
	mixer      *mixer.Mixer

	// busy admits one separation at a time.
	busy sync.Mutex
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Named("amram")
	}
	if _, err := model.SourcesFor(cfg.Model); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		return nil, &separation.ConfigurationError{Field: "sample_rate", Reason: "must be positive"}
	}

	for _, dir := range []string{cfg.DataDir, cfg.tempDir(), cfg.downloadsDir(), cfg.processedDir()} {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.dbPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	svc := &amramService{
		storage:    stor,
		log:        cfg.Logger,
		config:     cfg,
		models:     cfg.Models,
		downloader: cfg.Downloader,
		mixer:      mixer.New(),
	}
	if svc.models == nil {
		svc.models = model.NewCache(model.DefaultLoader(cfg.ModelsDir))
		svc.ownsModels = true
	}
	if svc.downloader == nil {
		svc.downloader = audio.NewDownloader(cfg.downloadsDir())
	}
	return svc, nil
}

func (s *amramService) GetVideoInfo(ctx context.Context, url string) (*audio.VideoInfo, error) {
	if !utils.IsYouTubeURL(url) {
		s.log.Warnf("%s does not look like a YouTube URL", url)
	}
	return s.downloader.VideoInfo(ctx, url)
}

func (s *amramService) DownloadAudio(ctx context.Context, url string, progress func(percent float64)) (string, *audio.VideoInfo, error) {
	s.log.Infof("Downloading audio from %s", url)
	path, info, err := s.downloader.DownloadAudio(ctx, url, progress)
	if err != nil {
		return "", nil, fmt.Errorf("download failed: %w", err)
	}
	s.log.Infof("Downloaded %s", path)
	return path, info, nil
}

// SeparateURL downloads url and separates the result. Download progress is
// not forwarded to sink; the sink only sees the separation and export phases.
func (s *amramService) SeparateURL(ctx context.Context, url string, sink separation.ProgressSink) (*SeparationResult, error) {
	path, _, err := s.DownloadAudio(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return s.separate(ctx, path, url, sink)
}

func (s *amramService) SeparateTracks(ctx context.Context, audioPath string, sink separation.ProgressSink) (*SeparationResult, error) {
	return s.separate(ctx, audioPath, "", sink)
}

func (s *amramService) separate(ctx context.Context, audioPath, sourceURL string, sink separation.ProgressSink) (*SeparationResult, error) {
	if !utils.FileExists(audioPath) {
		return nil, fmt.Errorf("%s: %w", audioPath, os.ErrNotExist)
	}
	if !audio.IsSupported(audioPath) {
		return nil, fmt.Errorf("%s: %w", audioPath, ErrUnsupportedFormat)
	}
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()
	metrics.SetBusy(true)
	defer metrics.SetBusy(false)

	title := utils.SanitizeFilename(utils.BaseName(audioPath))
	s.log.Infof("Separating %s with %s", title, s.config.Model)

	jobID, err := s.storage.CreateJob(audioPath, sourceURL, title, s.config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}
	job := &models.Job{
		ID:        jobID,
		Source:    audioPath,
		SourceURL: sourceURL,
		Title:     title,
		Model:     s.config.Model,
		Status:    models.JobRunning,
	}

	result, err := s.run(ctx, job, audioPath, sink)
	if err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			job.Status = models.JobAborted
		}
	}
	now := time.Now()
	job.FinishedAt = &now
	if ferr := s.storage.FinishJob(job); ferr != nil {
		s.log.Errorf("Failed to update job %s: %v", job.ID, ferr)
	}
	if err != nil {
		s.log.Errorf("Separation of %s failed: %v", title, err)
		return nil, err
	}
	result.Job = job
	return result, nil
}

func (s *amramService) run(ctx context.Context, job *models.Job, audioPath string, sink separation.ProgressSink) (*SeparationResult, error) {
	sep, err := s.models.Get(s.config.Model, s.config.Device)
	if err != nil {
		return nil, &separation.CatastrophicError{Op: "load model", Err: err}
	}

	if audio.FFmpegAvailable() {
		if meta, perr := audio.ReadMetadataFFmpeg(ctx, audioPath); perr == nil {
			s.log.Debugf("Input %s: %s/%s, %d Hz, %d ch, %.1fs", meta.Filename, meta.Format, meta.Codec, meta.SampleRate, meta.Channels, meta.DurationSec)
		} else {
			s.log.Debugf("ffprobe on %s failed: %v", audioPath, perr)
		}
	}

	buf, err := audio.LoadAudio(ctx, audioPath, s.config.SampleRate, s.config.tempDir())
	if err != nil {
		return nil, err
	}
	job.DurationMs = buf.Duration().Milliseconds()

	pipeline := separation.NewPipeline(sep, s.config.pipelineOptions(), s.log)
	res, err := pipeline.Separate(ctx, buf, sink)
	if err != nil {
		return nil, err
	}

	job.Windows = res.Segments
	job.FailedWindows = res.Failed
	for _, g := range res.Gaps {
		job.GapSamples += g.Len()
	}
	switch res.Status {
	case separation.StatusPartial:
		job.Status = models.JobPartial
	case separation.StatusAborted:
		job.Status = models.JobAborted
	default:
		job.Status = models.JobComplete
	}

	outDir := filepath.Join(s.config.processedDir(), job.Title)
	stems, err := s.export(res.Output, outDir, sink)
	if err != nil {
		return nil, err
	}
	job.OutputDir = outDir
	job.Stems = stems

	if res.Status != separation.StatusComplete {
		s.log.Warnf("%s finished %s: %d window(s) failed, %d gap(s)", job.Title, res.Status, res.Failed, len(res.Gaps))
	} else {
		s.log.Infof("%s separated into %d stems in %s", job.Title, len(stems), res.Elapsed.Round(time.Millisecond))
	}

	return &SeparationResult{
		OutputDir: outDir,
		Stems:     stems,
		Status:    res.Status,
		Skipped:   res.Skipped,
		Gaps:      res.Gaps,
	}, nil
}

// export writes one WAV per source and reports on the export band.
func (s *amramService) export(out *separation.OutputBuffer, dir string, sink separation.ProgressSink) ([]models.Stem, error) {
	if err := utils.MakeDir(dir); err != nil {
		return nil, &separation.CatastrophicError{Op: "export", Err: err}
	}
	progress := separation.NewProgressEstimator(len(out.Names), len(out.Names), separation.ExportBand, sink)
	stems := make([]models.Stem, 0, len(out.Names))
	for i, name := range out.Names {
		started := time.Now()
		path := filepath.Join(dir, name+".wav")
		if err := audio.WriteWav(path, out.Sources[i], out.SampleRate); err != nil {
			return nil, &separation.CatastrophicError{Op: "export " + name, Err: err}
		}
		stems = append(stems, models.Stem{Name: name, Path: path})
		progress.Observe(i+1, time.Since(started))
	}
	progress.Finish()
	return stems, nil
}

func (s *amramService) MixTracks(ctx context.Context, tracks []models.MixTrack, outPath string) (*mixer.Mix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt := make([]mixer.Track, 0, len(tracks))
	for _, t := range tracks {
		mt = append(mt, mixer.Track{
			Name:  t.Name,
			Path:  t.Path,
			Level: mixer.ClampLevel(t.Level),
			Mute:  t.Mute,
			Solo:  t.Solo,
		})
	}
	mix, err := s.mixer.RenderTo(mt, outPath)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Custom mix saved to %s", outPath)
	return mix, nil
}

// CustomMixPath is where a user mix for title is written.
func (s *amramService) CustomMixPath(title string) string {
	return filepath.Join(s.config.processedDir(), utils.SanitizeFilename(title)+"_custom_mix.wav")
}

func (s *amramService) ListJobs(limit int) ([]models.Job, error) {
	return s.storage.ListJobs(limit)
}

func (s *amramService) GetJob(id string) (*models.Job, error) {
	return s.storage.GetJob(id)
}

// DeleteJob removes a job from history, and its stems directory when
// removeFiles is set.
func (s *amramService) DeleteJob(id string, removeFiles bool) error {
	job, err := s.storage.GetJob(id)
	if err != nil {
		return err
	}
	if removeFiles && job.OutputDir != "" {
		if err := utils.DeleteDir(job.OutputDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", job.OutputDir, err)
		}
	}
	return s.storage.DeleteJob(id)
}

func (s *amramService) Close() error {
	var errs []error
	if s.ownsModels {
		errs = append(errs, s.models.Close())
	}
	errs = append(errs, s.storage.Close())
	return errors.Join(errs...)
}
