// ABOUTME: Per-service content recorder
// ABOUTME: Turns programme callbacks into a rotating WAV sink, an NDJSON log and slideshow files
package capture

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dabdump/dabdump/internal/artwork"
	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/internal/record"
	"github.com/dustin/go-humanize"
)

// File suffixes appended to a service prefix
const (
	AudioExt = ".wav"
	LogExt   = ".txt"
)

// Stats is a snapshot of what a recorder has produced
type Stats struct {
	SampleRate    int
	Mode          string
	Recording     bool
	Samples       int64
	SinkOpens     int
	Labels        int
	LastLabel     string
	Slides        int
	SlidesSkipped int
}

// Recorder captures one service. It implements dab.ProgrammeHandler.
type Recorder struct {
	mu sync.Mutex

	id      dab.ServiceID
	prefix  string
	tag     string
	logPath string
	sink    *audioSink
	slides  *artwork.Store
	now     func() time.Time

	// MOT dedup compares only the size of the previous object
	lastMOTSize int
	haveMOT     bool

	labels        int
	lastLabel     string
	slidesWritten int
	slidesSkipped int
	closed        bool
}

// NewRecorder creates a recorder writing to prefix.wav, prefix.txt and
// prefix-<unix>.<ext>. The directory of prefix must already exist.
func NewRecorder(id dab.ServiceID, prefix string) *Recorder {
	tag := fmt.Sprintf("[%s]", id)
	return &Recorder{
		id:      id,
		prefix:  prefix,
		tag:     tag,
		logPath: prefix + LogExt,
		sink:    newAudioSink(tag, prefix+AudioExt),
		slides:  artwork.NewStore(prefix),
		now:     time.Now,
	}
}

// ID returns the service this recorder captures
func (r *Recorder) ID() dab.ServiceID {
	return r.id
}

// Prefix returns the path prefix of every file this recorder writes
func (r *Recorder) Prefix() string {
	return r.prefix
}

// OnAudio writes a decoded frame, rotating the WAV file on rate change
func (r *Recorder) OnAudio(samples []int16, sampleRate int, mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.sink.write(samples, sampleRate, mode)
}

// Decoder quality counters are observed but not recorded.
func (r *Recorder) OnFrameErrors(frameErrors int) {}

func (r *Recorder) OnRSErrors(uncorrectedErrors bool, correctedErrors int) {}

func (r *Recorder) OnAACErrors(aacErrors int) {}

// OnDynamicLabel appends a dls record. Repeated labels are all recorded.
func (r *Recorder) OnDynamicLabel(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	log.Printf("%s DLS: %s", r.tag, label)

	value := strings.TrimSpace(label)
	err := record.Append(r.logPath, record.TagDLS, record.DLS{
		Value: value,
		TS:    r.now().Unix(),
	})
	if err != nil {
		log.Printf("%s failed to log DLS: %v", r.tag, err)
		return
	}
	r.labels++
	r.lastLabel = value
}

// OnMOT saves a slideshow object unless it has the same size as the
// previous one for this service
func (r *Recorder) OnMOT(file dab.MOTFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	size := len(file.Data)
	if r.haveMOT && size == r.lastMOTSize {
		log.Printf("%s MOT bypass (duplicate, %s)", r.tag, humanize.Bytes(uint64(size)))
		r.slidesSkipped++
		return
	}
	r.haveMOT = true
	r.lastMOTSize = size

	ts := r.now().Unix()
	name, err := r.slides.Save(ts, file.ContentSubType, file.Data)
	if err != nil {
		log.Printf("%s %v", r.tag, err)
		return
	}

	err = record.Append(r.logPath, record.TagMOT, record.MOT{
		File:            name,
		ContentName:     file.ContentName,
		ClickThroughURL: file.ClickThroughURL,
		CategoryTitle:   file.CategoryTitle,
		TS:              ts,
	})
	if err != nil {
		log.Printf("%s failed to log MOT: %v", r.tag, err)
	}

	r.slidesWritten++
	log.Printf("%s MOT received: %s (%s)", r.tag, name, humanize.Bytes(uint64(size)))
}

// OnPADLengthError is diagnostic only
func (r *Recorder) OnPADLengthError(announced, actual int) {
	log.Printf("%s X-PAD length mismatch, expected: %d got: %d", r.tag, announced, actual)
}

// Stats returns a snapshot for status displays
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		SampleRate:    r.sink.format.SampleRate,
		Mode:          r.sink.format.Mode,
		Recording:     r.sink.w != nil,
		Samples:       r.sink.samples,
		SinkOpens:     r.sink.opens,
		Labels:        r.labels,
		LastLabel:     r.lastLabel,
		Slides:        r.slidesWritten,
		SlidesSkipped: r.slidesSkipped,
	}
}

// Close flushes and closes the open WAV file. Later audio, label and slide
// callbacks are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.sink.close()
	return nil
}
