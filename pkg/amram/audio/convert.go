package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/utils"
)

// SupportedExtensions are the input formats the local file browser offers.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a"}

// IsSupported reports whether path has one of SupportedExtensions.
func IsSupported(path string) bool {
	return utils.HasExtension(path, SupportedExtensions)
}

type ConvertWAVConfig struct {
	SampleRate int // e.g. 44100
	Channels   int // 2 for the separation models
	// Timeout applies when ctx has no deadline. Long tracks need minutes.
	Timeout time.Duration
}

func (c ConvertWAVConfig) withDefaults() ConvertWAVConfig {
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}

// ConvertToWAV converts any ffmpeg-readable file to 16-bit PCM WAV at the
// configured rate and channel count, writing <outputDir>/<name>.wav.
func ConvertToWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {
	cfg = cfg.withDefaults()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, utils.BaseName(inputPath)+".wav")
	if filepath.Clean(outputPath) == filepath.Clean(inputPath) {
		outputPath = filepath.Join(outputDir, utils.BaseName(inputPath)+"_converted.wav")
	}
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-vn",
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// FFmpegAvailable reports whether ffmpeg and ffprobe are on PATH.
func FFmpegAvailable() bool {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}
