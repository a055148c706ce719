package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

var ErrInvalidWav = errors.New("not a valid WAV file")

// ReadWav decodes a PCM WAV file into float samples in [-1, 1]. Mono files
// are duplicated into two identical channels.
func ReadWav(path string) (*separation.AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidWav)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	numCh := pcm.Format.NumChannels
	if numCh <= 0 {
		return nil, fmt.Errorf("%s: %w: no channels", path, ErrInvalidWav)
	}
	bitDepth := pcm.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := 1 / float32(int64(1)<<(uint(bitDepth)-1))
	// 8-bit PCM is unsigned with silence at 128.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(pcm.Data) / numCh
	if frames == 0 {
		return nil, fmt.Errorf("%s: no samples", path)
	}
	channels := make([][]float32, numCh)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			channels[c][i] = float32(pcm.Data[i*numCh+c]-offset) * scale
		}
	}

	if numCh == 1 {
		channels = append(channels, append([]float32(nil), channels[0]...))
	}
	return &separation.AudioBuffer{Channels: channels, SampleRate: pcm.Format.SampleRate}, nil
}

// WriteWav encodes channels as 16-bit PCM. Samples outside [-1, 1] are
// clipped. The file is written to a temporary name and renamed into place.
func WriteWav(path string, channels [][]float32, sampleRate int) error {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return errors.New("nothing to write")
	}
	frames := len(channels[0])
	for c, ch := range channels {
		if len(ch) != frames {
			return fmt.Errorf("channel %d has %d samples, want %d", c, len(ch), frames)
		}
	}
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}

	numCh := len(channels)
	data := make([]int, frames*numCh)
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			data[i*numCh+c] = toPCM16(channels[c][i])
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	enc := wav.NewEncoder(f, sampleRate, 16, numCh, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numCh, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalise %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return utils.MoveFile(tmpPath, path)
}

func toPCM16(v float32) int {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int(v * 32767)
}

// LoadAudio returns path as an AudioBuffer at sampleRate. WAV files already
// at that rate are decoded directly; anything else goes through ffmpeg into
// tempDir first. Every failure is a *separation.CatastrophicError.
func LoadAudio(ctx context.Context, path string, sampleRate int, tempDir string) (*separation.AudioBuffer, error) {
	fail := func(err error) (*separation.AudioBuffer, error) {
		return nil, &separation.CatastrophicError{Op: "load audio " + filepath.Base(path), Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return fail(err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := ReadWav(path)
		if err == nil && buf.SampleRate == sampleRate {
			return buf, nil
		}
	}

	wavPath, err := ConvertToWAV(ctx, path, tempDir, ConvertWAVConfig{SampleRate: sampleRate, Channels: 2})
	if err != nil {
		return fail(err)
	}
	defer os.Remove(wavPath)

	buf, err := ReadWav(wavPath)
	if err != nil {
		return fail(err)
	}
	return buf, nil
}
