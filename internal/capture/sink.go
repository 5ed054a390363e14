// ABOUTME: Rotating WAV sink owned by one service recorder
// ABOUTME: Reopens the file whenever the decoded sample rate changes
package capture

import (
	"log"

	"github.com/dabdump/dabdump/pkg/audio"
	"github.com/dabdump/dabdump/pkg/audio/wav"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// pcmWriter is the open file behind a recording session
type pcmWriter interface {
	Write(samples []int16) error
	Close() error
	BytesWritten() int64
}

type openFunc func(path string, sampleRate, channels int) (pcmWriter, error)

func openWAV(path string, sampleRate, channels int) (pcmWriter, error) {
	return wav.Create(path, sampleRate, channels)
}

// audioSink holds at most one open recording session. It is not safe for
// concurrent use; the owning Recorder serializes access.
type audioSink struct {
	tag  string
	path string
	open openFunc

	w         pcmWriter
	format    audio.Format
	session   string
	opens     int
	samples   int64
	writeFail bool
}

func newAudioSink(tag, path string) *audioSink {
	return &audioSink{tag: tag, path: path, open: openWAV}
}

// write appends samples, rotating the session first if the rate changed.
// After a failed open, frames are dropped until the rate changes again.
func (s *audioSink) write(samples []int16, sampleRate int, mode string) {
	if sampleRate != s.format.SampleRate {
		log.Printf("%s rate %d mode %s", s.tag, sampleRate, mode)
		s.close()
		s.format = audio.NewFormat(sampleRate, mode)

		w, err := s.open(s.path, sampleRate, s.format.Channels)
		if err != nil {
			log.Printf("%s could not open wav file %s: %v", s.tag, s.path, err)
		} else {
			s.w = w
			s.opens++
			s.session = uuid.NewString()
			s.writeFail = false
			log.Printf("%s recording session %s opened: %s (%dHz, %d channels)",
				s.tag, s.session, s.path, sampleRate, s.format.Channels)
		}
	}

	if s.w == nil {
		return
	}

	if err := s.w.Write(samples); err != nil {
		// Log once per session; later failures are almost always the same one
		if !s.writeFail {
			log.Printf("%s wav write failed: %v", s.tag, err)
			s.writeFail = true
		}
		return
	}
	s.samples += int64(len(samples))
}

// close flushes and closes the open session, if any
func (s *audioSink) close() {
	if s.w == nil {
		return
	}

	size := s.w.BytesWritten()
	if err := s.w.Close(); err != nil {
		log.Printf("%s failed to close wav file %s: %v", s.tag, s.path, err)
	} else {
		log.Printf("%s recording session %s closed (%s)", s.tag, s.session, humanize.Bytes(uint64(size)))
	}
	s.w = nil
	s.session = ""
}
