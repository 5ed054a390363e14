// ABOUTME: RIFF/WAVE reader for 16-bit PCM files
// ABOUTME: Used by the replay source and the dump inspector
package wav

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info describes the fmt chunk of a WAV file
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int64
}

// Frames returns the number of sample frames in the data chunk
func (i Info) Frames() int64 {
	blockAlign := int64(i.Channels * i.BitDepth / 8)
	if blockAlign == 0 {
		return 0
	}
	return i.DataBytes / blockAlign
}

// Reader reads interleaved 16-bit samples from a WAV file
type Reader struct {
	file *os.File
	dec  *gowav.Decoder
	info Info
	buf  *goaudio.IntBuffer
}

// Open opens path and positions the decoder at the start of the PCM data
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}

	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	dec := gowav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("not a RIFF/WAVE file: %w", err)
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("unsupported wav encoding: %d (only PCM)", dec.WavAudioFormat)
	}
	if dec.BitDepth != bitDepth {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find data chunk: %w", err)
	}

	return &Reader{
		file: f,
		dec:  dec,
		info: Info{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   int(dec.BitDepth),
			DataBytes:  dec.PCMLen(),
		},
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
		},
	}, nil
}

// Info returns the parsed format
func (r *Reader) Info() Info {
	return r.info
}

// Read fills samples with interleaved PCM and returns the count read.
// A short data chunk (e.g. an unfinalized capture) simply ends early.
func (r *Reader) Read(samples []int16) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]

	n, err := r.dec.PCMBuffer(r.buf)
	for i := 0; i < n; i++ {
		samples[i] = int16(r.buf.Data[i])
	}
	if err != nil {
		return n, fmt.Errorf("wav read failed: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close closes the underlying file
func (r *Reader) Close() error {
	return r.file.Close()
}
