package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV stream into a mono timeline. Multi-channel input is
// averaged down to one channel.
func ReadWAV(r io.ReadSeeker) (Timeline, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Timeline{}, errors.New("wav: not a valid PCM wav stream")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Timeline{}, fmt.Errorf("wav: read pcm buffer: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return Timeline{}, errors.New("wav: missing format chunk")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Timeline{}, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return Timeline{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// LoadWAV opens and decodes the WAV file at path.
func LoadWAV(path string) (Timeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return Timeline{}, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()
	return ReadWAV(file)
}

// WriteWAV encodes the timeline as 16-bit mono PCM.
func WriteWAV(w io.WriteSeeker, t Timeline) error {
	encoder := wav.NewEncoder(w, t.SampleRate, 16, 1, 1)
	data := make([]int, len(t.Samples))
	for i, sample := range t.Samples {
		sample = max(-1, min(1, sample))
		data[i] = int(sample * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: t.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("wav: finalize: %w", err)
	}
	return nil
}

// SaveWAV writes the timeline to path as 16-bit mono PCM.
func SaveWAV(path string, t Timeline) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := WriteWAV(file, t); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
