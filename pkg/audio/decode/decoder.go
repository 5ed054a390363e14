// ABOUTME: Source interface definition
// ABOUTME: Opens an audio file with the decoder matching its extension
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source delivers interleaved 16-bit stereo PCM
type Source interface {
	// Read fills samples and returns how many were written. Returns io.EOF
	// when no samples are left.
	Read(samples []int16) (int, error)

	// SampleRate returns the native sample rate of the source
	SampleRate() int

	// Close releases decoder resources
	Close() error
}

// Open creates a Source for path based on its extension
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	var source Source
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		source, err = NewMP3(path)
	case ".flac":
		source, err = NewFLAC(path)
	case ".wav":
		source, err = NewWAV(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .wav)", ext)
	}
	if err != nil {
		return nil, err
	}

	return source, nil
}
