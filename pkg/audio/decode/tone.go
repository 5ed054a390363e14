// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave of fixed length for replay manifests without audio files
package decode

import (
	"io"
	"math"
	"time"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// ToneSource generates a sine tone at half scale on both channels
type ToneSource struct {
	frequency   float64
	sampleRate  int
	sampleIndex uint64
	totalFrames uint64
}

// NewTone creates a tone of the given length. A zero length never ends.
func NewTone(frequency float64, sampleRate int, length time.Duration) *ToneSource {
	if frequency <= 0 {
		frequency = DefaultToneFrequency
	}
	return &ToneSource{
		frequency:   frequency,
		sampleRate:  sampleRate,
		totalFrames: uint64(length.Seconds() * float64(sampleRate)),
	}
}

func (s *ToneSource) Read(samples []int16) (int, error) {
	numFrames := uint64(len(samples) / 2)
	if s.totalFrames > 0 {
		left := s.totalFrames - s.sampleIndex
		if left == 0 {
			return 0, io.EOF
		}
		if numFrames > left {
			numFrames = left
		}
	}

	for i := uint64(0); i < numFrames; i++ {
		t := float64(s.sampleIndex+i) / float64(s.sampleRate)
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * 0.5)
		samples[i*2] = v
		samples[i*2+1] = v
	}
	s.sampleIndex += numFrames

	return int(numFrames * 2), nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }

func (s *ToneSource) Close() error { return nil }
