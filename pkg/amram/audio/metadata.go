package audio

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Metadata describes an audio file as reported by ffprobe.
type Metadata struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	DurationSec float64
	SampleRate  int
	Channels    int
	BitDepth    int
	BitRate     int
	Codec       string
	Format      string
}

func (m *Metadata) Duration() time.Duration {
	return time.Duration(m.DurationSec * float64(time.Second))
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		BitRate  string            `json:"bit_rate"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitsPerSample int    `json:"bits_per_sample"`
}

// ReadMetadataFFmpeg probes path with ffprobe.
func ReadMetadataFFmpeg(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	meta, err := parseProbe(out)
	if err != nil {
		return nil, err
	}
	meta.Filename = filepath.Base(path)
	return meta, nil
}

func parseProbe(data []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var stream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "audio" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return nil, errors.New("no audio stream found")
	}

	meta := &Metadata{
		Channels: stream.Channels,
		BitDepth: stream.BitsPerSample,
		Codec:    stream.CodecName,
		Format:   probe.Format.Format,
	}
	meta.DurationSec, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	meta.SampleRate, _ = strconv.Atoi(stream.SampleRate)
	meta.BitRate, _ = strconv.Atoi(probe.Format.BitRate)

	tags := probe.Format.Tags
	meta.Title = firstTag(tags, "title", "TITLE")
	meta.Artist = firstTag(tags, "artist", "ARTIST")
	meta.Album = firstTag(tags, "album", "ALBUM")
	return meta, nil
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}
