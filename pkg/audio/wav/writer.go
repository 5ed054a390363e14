// ABOUTME: RIFF/WAVE writer for 16-bit PCM capture sinks
// ABOUTME: Streams interleaved samples through go-audio's encoder, which patches sizes on close
package wav

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	pcmFormat = 1
)

// ErrClosed is returned when writing to a closed writer
var ErrClosed = errors.New("wav: writer closed")

// Writer writes a canonical PCM WAV file
type Writer struct {
	file       *os.File
	enc        *gowav.Encoder
	buf        *goaudio.IntBuffer
	sampleRate int
	channels   int
	dataBytes  int64
	closed     bool
}

// Create truncates or creates path and writes a provisional header
func Create(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &Writer{
		file: f,
		enc:  gowav.NewEncoder(f, sampleRate, bitDepth, channels, pcmFormat),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		sampleRate: sampleRate,
		channels:   channels,
	}

	// An empty buffer makes the encoder emit the header, so a session that
	// never receives audio still closes into a valid file
	if err := w.enc.Write(w.buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}

	return w, nil
}

// Write appends interleaved 16-bit samples
func (w *Writer) Write(samples []int16) error {
	if w.closed {
		return ErrClosed
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	w.dataBytes += int64(len(samples) * bitDepth / 8)
	return nil
}

// SampleRate returns the rate written into the header
func (w *Writer) SampleRate() int {
	return w.sampleRate
}

// BytesWritten returns the PCM payload size so far
func (w *Writer) BytesWritten() int64 {
	return w.dataBytes
}

// Close patches the RIFF and data sizes and closes the file. Calling Close
// more than once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	closeErr := w.file.Close()

	for _, err := range []error{encErr, closeErr} {
		if err != nil {
			return fmt.Errorf("failed to finalize wav file: %w", err)
		}
	}
	return nil
}
