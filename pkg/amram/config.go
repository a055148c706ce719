package amram

import (
	"path/filepath"

	"github.com/himanishpuri/AmramAI/pkg/amram/model"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/amram/storage"
)

type Config struct {
	DataDir        string
	ModelsDir      string
	DBPath         string
	SampleRate     int
	Model          string
	Device         model.Device
	WindowSeconds  float64
	OverlapSeconds float64
	MaxSegments    int
	Retries        int
	Stall          separation.StallOptions
	Logger         Logger
	Storage        Storage
	Models         *model.Cache
	Downloader     Downloader
}

type Option func(*Config)

func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

func WithModelsDir(dir string) Option {
	return func(c *Config) {
		c.ModelsDir = dir
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithModel(name string) Option {
	return func(c *Config) {
		c.Model = name
	}
}

func WithDevice(d model.Device) Option {
	return func(c *Config) {
		c.Device = d
	}
}

// WithWindow sets window and overlap length in seconds.
func WithWindow(windowSeconds, overlapSeconds float64) Option {
	return func(c *Config) {
		c.WindowSeconds = windowSeconds
		c.OverlapSeconds = overlapSeconds
	}
}

func WithMaxSegments(n int) Option {
	return func(c *Config) {
		c.MaxSegments = n
	}
}

func WithRetries(n int) Option {
	return func(c *Config) {
		c.Retries = n
	}
}

func WithStall(threshold, jumpFactor int) Option {
	return func(c *Config) {
		c.Stall = separation.StallOptions{Threshold: threshold, JumpFactor: jumpFactor}
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithModelCache shares a model cache between services.
func WithModelCache(cache *model.Cache) Option {
	return func(c *Config) {
		c.Models = cache
	}
}

func WithDownloader(d Downloader) Option {
	return func(c *Config) {
		c.Downloader = d
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:        "data",
		ModelsDir:      "models",
		SampleRate:     44100,
		Model:          "htdemucs",
		Device:         model.DeviceCPU,
		WindowSeconds:  10,
		OverlapSeconds: 0.1,
		MaxSegments:    separation.DefaultMaxSegments,
	}
}

func (c *Config) tempDir() string      { return filepath.Join(c.DataDir, "temp") }
func (c *Config) downloadsDir() string { return filepath.Join(c.DataDir, "downloads") }
func (c *Config) processedDir() string { return filepath.Join(c.DataDir, "processed") }

func (c *Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, storage.DefaultDBFile)
}

func (c *Config) pipelineOptions() separation.Options {
	return separation.Options{
		Window:      separation.SecondsToSamples(c.WindowSeconds, c.SampleRate),
		Overlap:     separation.SecondsToSamples(c.OverlapSeconds, c.SampleRate),
		MaxSegments: c.MaxSegments,
		Retries:     c.Retries,
		Stall:       c.Stall,
	}
}
