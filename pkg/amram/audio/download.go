package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/AmramAI/pkg/logger"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

// VideoInfo is the subset of yt-dlp metadata shown before a download.
type VideoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Artist     string  `json:"artist"`
	ViewCount  int64   `json:"view_count"`
	UploadDate string  `json:"upload_date"` // YYYYMMDD
	WebpageURL string  `json:"webpage_url"`
}

// Author picks the best available credit for the video.
func (v *VideoInfo) Author() string {
	for _, s := range []string{v.Artist, v.Channel, v.Uploader} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "Unknown Artist"
}

func (v *VideoInfo) Length() time.Duration {
	return time.Duration(v.Duration * float64(time.Second))
}

// Uploaded parses UploadDate; the zero time is returned when it is missing.
func (v *VideoInfo) Uploaded() time.Time {
	t, err := time.Parse("20060102", v.UploadDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseVideoInfo(data string) (*VideoInfo, error) {
	var info VideoInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(info.ID) == "" {
		return nil, errors.New("missing video ID in yt-dlp output")
	}
	if strings.TrimSpace(info.Title) == "" {
		return nil, errors.New("missing title in yt-dlp output")
	}
	return &info, nil
}

// Downloader fetches audio with yt-dlp.
type Downloader struct {
	OutputDir string
	// Timeout applies when the caller's context has no deadline.
	Timeout time.Duration

	log *logger.Logger
}

func NewDownloader(outputDir string) *Downloader {
	return &Downloader{
		OutputDir: outputDir,
		Timeout:   10 * time.Minute,
		log:       logger.Named("download"),
	}
}

func (d *Downloader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.Timeout)
}

// VideoInfo reads metadata without downloading.
func (d *Downloader) VideoInfo(ctx context.Context, url string) (*VideoInfo, error) {
	if !utils.IsYouTubeURL(url) {
		d.log.Warnf("%s does not look like a YouTube URL, trying anyway", url)
	}
	url = utils.CanonicalYouTubeURL(url)
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	res, err := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings().
		Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp metadata extraction failed: %w", err)
	}
	return parseVideoInfo(res.Stdout)
}

// DownloadAudio extracts the best audio stream of url as WAV into OutputDir,
// reporting download percentage through progress when it is non-nil.
func (d *Downloader) DownloadAudio(ctx context.Context, url string, progress func(percent float64)) (string, *VideoInfo, error) {
	url = utils.CanonicalYouTubeURL(url)
	info, err := d.VideoInfo(ctx, url)
	if err != nil {
		return "", nil, err
	}
	if err := utils.MakeDir(d.OutputDir); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	name := utils.SanitizeFilename(info.Title)
	template := filepath.Join(d.OutputDir, name+".%(ext)s")
	cmd := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("wav").
		NoPlaylist().
		NoWarnings().
		Output(template)
	if progress != nil {
		cmd = cmd.ProgressFunc(250*time.Millisecond, func(u ytdlp.ProgressUpdate) {
			progress(u.Percent())
		})
	}

	d.log.Infof("Downloading %q (%s)", info.Title, info.Length())
	if _, err := cmd.Run(ctx, url); err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	path := filepath.Join(d.OutputDir, name+".wav")
	if _, err := os.Stat(path); err != nil {
		return "", nil, fmt.Errorf("downloaded audio not found at %s: %w", path, err)
	}
	if progress != nil {
		progress(100)
	}
	d.log.Infof("Saved %s", path)
	return path, info, nil
}
