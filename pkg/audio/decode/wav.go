// ABOUTME: WAV audio source
// ABOUTME: Reads 16-bit PCM WAV files, widening mono to stereo
package decode

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/dabdump/dabdump/pkg/audio"
	"github.com/dabdump/dabdump/pkg/audio/wav"
)

// WAVSource reads from a 16-bit PCM WAV file
type WAVSource struct {
	reader *wav.Reader
	info   wav.Info
	mono   []int16
}

// NewWAV opens a WAV file
func NewWAV(path string) (*WAVSource, error) {
	r, err := wav.Open(path)
	if err != nil {
		return nil, err
	}

	info := r.Info()
	if info.Channels != 1 && info.Channels != 2 {
		r.Close()
		return nil, fmt.Errorf("unsupported WAV channel count: %d", info.Channels)
	}

	log.Printf("Loaded WAV: %s (sample rate: %d Hz, channels: %d)",
		filepath.Base(path), info.SampleRate, info.Channels)

	return &WAVSource{reader: r, info: info}, nil
}

func (s *WAVSource) Read(samples []int16) (int, error) {
	if s.info.Channels == 2 {
		return s.reader.Read(samples)
	}

	frames := len(samples) / 2
	if cap(s.mono) < frames {
		s.mono = make([]int16, frames)
	}
	n, err := s.reader.Read(s.mono[:frames])
	return copy(samples, audio.MonoToStereo(s.mono[:n])), err
}

func (s *WAVSource) SampleRate() int { return s.info.SampleRate }

func (s *WAVSource) Close() error {
	return s.reader.Close()
}
