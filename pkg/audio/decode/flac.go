// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to interleaved int16 stereo samples
package decode

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dabdump/dabdump/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int

	// decoded samples of the last frame not yet handed out
	pending []int16
}

// NewFLAC opens a FLAC file
func NewFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	sampleRate := int(info.SampleRate)
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	if channels < 1 {
		f.Close()
		return nil, fmt.Errorf("FLAC stream has no channels")
	}

	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		filepath.Base(path), sampleRate, channels, bitDepth)

	return &FLACSource{
		file:       f,
		stream:     stream,
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}, nil
}

func (s *FLACSource) Read(samples []int16) (int, error) {
	written := 0

	for written < len(samples) {
		if len(s.pending) == 0 {
			if err := s.decodeFrame(); err != nil {
				if err == io.EOF && written > 0 {
					return written, nil
				}
				return written, err
			}
		}

		n := copy(samples[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}

	return written, nil
}

// decodeFrame parses the next frame into pending as stereo int16
func (s *FLACSource) decodeFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}

	blockSize := int(frame.BlockSize)
	out := make([]int16, 0, blockSize*2)

	for i := 0; i < blockSize; i++ {
		left := s.toInt16(frame.Subframes[0].Samples[i])
		right := left
		if s.channels > 1 {
			right = s.toInt16(frame.Subframes[1].Samples[i])
		}
		out = append(out, left, right)
	}

	s.pending = out
	return nil
}

// toInt16 scales a sample of the stream's bit depth to 16 bits
func (s *FLACSource) toInt16(sample int32) int16 {
	shift := s.bitDepth - 16
	if shift > 0 {
		sample >>= uint(shift)
	} else if shift < 0 {
		sample <<= uint(-shift)
	}
	return audio.ClampInt16(sample)
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }

func (s *FLACSource) Close() error {
	return s.file.Close()
}
