package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AmramAI/pkg/amram/model"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

type SegmentConfig struct {
	WindowSeconds  float64 `yaml:"window_seconds"`
	OverlapSeconds float64 `yaml:"overlap_seconds"`
	MaxSegments    int     `yaml:"max_segments"`
	Retries        int     `yaml:"retries"`
}

type StallConfig struct {
	Threshold  int `yaml:"threshold"`
	JumpFactor int `yaml:"jump_factor"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	DataDir    string        `yaml:"data_dir"`
	ModelsDir  string        `yaml:"models_dir"`
	DBPath     string        `yaml:"db_path"`
	SampleRate int           `yaml:"sample_rate"`
	Model      string        `yaml:"model"`
	Device     string        `yaml:"device"`
	Segment    SegmentConfig `yaml:"segment"`
	Stall      StallConfig   `yaml:"stall"`
	Log        LogConfig     `yaml:"log"`
	Server     ServerConfig  `yaml:"server"`
}

func Default() *Config {
	return &Config{
		DataDir:    "data",
		ModelsDir:  "models",
		SampleRate: 44100,
		Model:      "htdemucs",
		Device:     "cpu",
		Segment: SegmentConfig{
			WindowSeconds:  10,
			OverlapSeconds: 0.1,
			MaxSegments:    1000,
			Retries:        0,
		},
		Stall: StallConfig{
			Threshold:  3,
			JumpFactor: 2,
		},
		Log: LogConfig{
			Level: "INFO",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func (c *Config) TempDir() string      { return filepath.Join(c.DataDir, "temp") }
func (c *Config) DownloadsDir() string { return filepath.Join(c.DataDir, "downloads") }
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// Database returns DBPath, defaulting to <data>/amram.sqlite3.
func (c *Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "amram.sqlite3")
}

// EnsureDirs creates the data directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.TempDir(), c.DownloadsDir(), c.ProcessedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks every field and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be greater than 0, got %d", c.SampleRate))
	}
	if _, err := model.SourcesFor(c.Model); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if _, err := model.ParseDevice(c.Device); err != nil {
		errs = append(errs, fmt.Errorf("device: %w", err))
	}
	if c.Segment.WindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("segment.window_seconds must be greater than 0, got %g", c.Segment.WindowSeconds))
	}
	if c.Segment.OverlapSeconds < 0 {
		errs = append(errs, fmt.Errorf("segment.overlap_seconds cannot be negative, got %g", c.Segment.OverlapSeconds))
	}
	if c.Segment.OverlapSeconds >= c.Segment.WindowSeconds {
		errs = append(errs, fmt.Errorf("segment.overlap_seconds (%g) must be smaller than window_seconds (%g)",
			c.Segment.OverlapSeconds, c.Segment.WindowSeconds))
	}
	if c.Segment.MaxSegments < 0 {
		errs = append(errs, errors.New("segment.max_segments cannot be negative"))
	}
	if c.Segment.Retries < 0 {
		errs = append(errs, errors.New("segment.retries cannot be negative"))
	}
	if c.Stall.Threshold < 1 {
		errs = append(errs, errors.New("stall.threshold must be at least 1"))
	}
	if c.Stall.JumpFactor < 1 {
		errs = append(errs, errors.New("stall.jump_factor must be at least 1"))
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", c.Log.Level))
	}
	return errors.Join(errs...)
}

// DefaultPath is ~/.config/amram/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "amram", "config.yaml")
}

// Loader layers defaults, an optional YAML file and AMRAM_* environment
// variables, in that order.
type Loader struct {
	// Path is the YAML file. When empty DefaultPath is tried and silently
	// skipped if missing; an explicit Path must exist.
	Path string
	// Lookup reads environment variables. Defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

func Load(path string) (*Config, error) {
	return Loader{Path: path}.Load()
}

func (l Loader) Load() (*Config, error) {
	cfg := Default()

	path, explicit := l.Path, l.Path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"AMRAM_DATA_DIR":    &cfg.DataDir,
		"AMRAM_MODELS_DIR":  &cfg.ModelsDir,
		"AMRAM_DB_PATH":     &cfg.DBPath,
		"AMRAM_MODEL":       &cfg.Model,
		"AMRAM_DEVICE":      &cfg.Device,
		"AMRAM_LOG_LEVEL":   &cfg.Log.Level,
		"AMRAM_LOG_FILE":    &cfg.Log.File,
		"AMRAM_SERVER_ADDR": &cfg.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AMRAM_SAMPLE_RATE":     &cfg.SampleRate,
		"AMRAM_MAX_SEGMENTS":    &cfg.Segment.MaxSegments,
		"AMRAM_RETRIES":         &cfg.Segment.Retries,
		"AMRAM_STALL_THRESHOLD": &cfg.Stall.Threshold,
		"AMRAM_JUMP_FACTOR":     &cfg.Stall.JumpFactor,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %q is not an integer", key, v)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"AMRAM_SEGMENT_SECONDS": &cfg.Segment.WindowSeconds,
		"AMRAM_OVERLAP_SECONDS": &cfg.Segment.OverlapSeconds,
	}
	for key, dst := range floats {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %q is not a number", key, v)
			}
			*dst = f
		}
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
