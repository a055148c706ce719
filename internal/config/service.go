package config

import (
	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/model"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

// ServiceOptions translates c into amram options. Call Validate first;
// an unparsable device falls back to cpu.
func (c *Config) ServiceOptions() []amram.Option {
	device, err := model.ParseDevice(c.Device)
	if err != nil {
		device = model.DeviceCPU
	}
	return []amram.Option{
		amram.WithDataDir(c.DataDir),
		amram.WithModelsDir(c.ModelsDir),
		amram.WithDBPath(c.Database()),
		amram.WithSampleRate(c.SampleRate),
		amram.WithModel(c.Model),
		amram.WithDevice(device),
		amram.WithWindow(c.Segment.WindowSeconds, c.Segment.OverlapSeconds),
		amram.WithMaxSegments(c.Segment.MaxSegments),
		amram.WithRetries(c.Segment.Retries),
		amram.WithStall(c.Stall.Threshold, c.Stall.JumpFactor),
	}
}

// ApplyLogging sets the process logger's level and file from c.Log.
func (c *Config) ApplyLogging() error {
	if lvl, ok := logger.ParseLevel(c.Log.Level); ok {
		logger.SetLevel(lvl)
	}
	return logger.GetLogger().SetFile(c.Log.File)
}
