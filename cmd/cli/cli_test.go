package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/AmramAI/pkg/models"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		percent float64
		filled  int
		label   string
	}{
		{0, 0, "  0.0%"},
		{50, 15, " 50.0%"},
		{100, 30, "100.0%"},
		{140, 30, "100.0%"},
		{-3, 0, "  0.0%"},
	}
	for _, tt := range tests {
		got := renderBar(tt.percent)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("renderBar(%v) has %d filled cells, want %d", tt.percent, n, tt.filled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != barWidth {
			t.Errorf("renderBar(%v) width = %d", tt.percent, n)
		}
		if !strings.HasSuffix(got, tt.label) {
			t.Errorf("renderBar(%v) = %q, want suffix %q", tt.percent, got, tt.label)
		}
	}
}

func TestBarSink(t *testing.T) {
	var buf bytes.Buffer
	bar := newBarSink(&buf, "x")
	bar.Done()
	if buf.Len() != 0 {
		t.Fatalf("Done without reports wrote %q", buf.String())
	}
	bar.Report(10)
	bar.Report(20)
	bar.Done()
	out := buf.String()
	if strings.Count(out, "\r") != 2 || !strings.HasSuffix(out, "\n") {
		t.Errorf("unexpected bar output %q", out)
	}
}

func TestBuildMixTracks(t *testing.T) {
	stems := []models.Stem{
		{Name: "drums", Path: "d.wav"},
		{Name: "bass", Path: "b.wav"},
		{Name: "vocals", Path: "v.wav"},
	}
	tracks, err := buildMixTracks(stems, []string{"vocals=0.2", "bass=0"}, []string{"drums"}, []string{"vocals"})
	if err != nil {
		t.Fatalf("buildMixTracks: %v", err)
	}
	want := []models.MixTrack{
		{Name: "drums", Path: "d.wav", Level: 1, Mute: true},
		{Name: "bass", Path: "b.wav", Level: 0},
		{Name: "vocals", Path: "v.wav", Level: 0.2, Solo: true},
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("track %d = %+v, want %+v", i, tracks[i], want[i])
		}
	}

	bad := []struct {
		name   string
		levels []string
		mutes  []string
	}{
		{"no equals", []string{"vocals"}, nil},
		{"out of range", []string{"vocals=1.5"}, nil},
		{"not a number", []string{"vocals=loud"}, nil},
		{"unknown stem", []string{"piano=0.5"}, nil},
		{"unknown mute", nil, []string{"guitar"}},
	}
	for _, tt := range bad {
		if _, err := buildMixTracks(stems, tt.levels, tt.mutes, nil); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := buildMixTracks(nil, nil, nil, nil); err == nil {
		t.Error("expected error for a job without stems")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                          "0:00",
		59 * time.Second:           "0:59",
		125 * time.Second:          "2:05",
		time.Hour + 61*time.Second: "1:01:01",
		1500 * time.Millisecond:    "0:02",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AMRAM_MODEL", "mdx_extra")
	t.Setenv("AMRAM_DATA_DIR", "/env/data")

	cmd := newRootCmd()
	sep, _, err := cmd.Find([]string{"separate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := sep.ParseFlags([]string{"--data", "/flag/data", "--window", "5"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(sep)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DataDir != "/flag/data" {
		t.Errorf("DataDir = %q, flag should win", cfg.DataDir)
	}
	if cfg.Model != "mdx_extra" {
		t.Errorf("Model = %q, env should apply", cfg.Model)
	}
	if cfg.Segment.WindowSeconds != 5 {
		t.Errorf("WindowSeconds = %v", cfg.Segment.WindowSeconds)
	}

	if err := sep.ParseFlags([]string{"--overlap", "9"}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(sep); err == nil {
		t.Error("overlap longer than the window should fail validation")
	}
}
