// ABOUTME: File-driven DAB receiver
// ABOUTME: Plays a manifest through the controller and programme handler contracts
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/pkg/audio/decode"
)

// ErrNotStarted is returned by AddService before Restart
var ErrNotStarted = errors.New("receiver not started")

// Receiver simulates an ensemble from a manifest. It implements dab.Receiver
// and dab.Tuner.
type Receiver struct {
	manifest   *Manifest
	source     string
	controller dab.ControllerHandler
	now        func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	revealed  []ServiceSpec
	added     map[dab.ServiceID]bool
	frequency int
	gain      int
	agc       bool
	closed    bool

	wg sync.WaitGroup
}

// Open loads the manifest at path
func Open(path string, controller dab.ControllerHandler) (*Receiver, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	r := New(m, controller)
	r.source = path
	return r, nil
}

// New creates a receiver for an already parsed manifest
func New(m *Manifest, controller dab.ControllerHandler) *Receiver {
	return &Receiver{
		manifest:   m,
		source:     "inline",
		controller: controller,
		now:        time.Now,
		added:      make(map[dab.ServiceID]bool),
		agc:        true,
	}
}

// Description names the replayed manifest
func (r *Receiver) Description() string {
	return "replay " + r.source
}

// SetFrequency records the tuned frequency; the manifest plays regardless
func (r *Receiver) SetFrequency(hz int) error {
	r.mu.Lock()
	r.frequency = hz
	r.mu.Unlock()

	log.Printf("Replay: tuned to %d Hz", hz)
	return nil
}

func (r *Receiver) SetGain(gain int) error {
	r.mu.Lock()
	r.gain = gain
	r.agc = false
	r.mu.Unlock()
	return nil
}

func (r *Receiver) SetAGC(enabled bool) error {
	r.mu.Lock()
	r.agc = enabled
	r.mu.Unlock()
	return nil
}

// Restart (re)starts the simulated session. Services registered in an
// earlier session are stopped and must be added again.
func (r *Receiver) Restart(ctx context.Context) error {
	r.stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("replay receiver closed")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.revealed = nil
	r.added = make(map[dab.ServiceID]bool)

	r.wg.Add(1)
	go r.runSession(r.ctx)
	return nil
}

// Close stops every goroutine. Safe to call more than once.
func (r *Receiver) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stop()
	return nil
}

func (r *Receiver) stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Services returns the services announced so far
func (r *Receiver) Services() []dab.Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]dab.Service, 0, len(r.revealed))
	for _, s := range r.revealed {
		out = append(out, s.service())
	}
	return out
}

// Components reports the single audio component of a service
func (r *Receiver) Components(s dab.Service) []dab.Component {
	spec, ok := r.lookup(s.ID)
	if !ok {
		return nil
	}

	ascty, _ := parseAudioType(spec.Type)
	return []dab.Component{{
		Number:       0,
		Type:         ascty,
		SubchannelID: spec.Subchannel.ID,
	}}
}

func (r *Receiver) Subchannel(c dab.Component) (dab.Subchannel, bool) {
	for _, spec := range r.manifest.Services {
		if spec.Subchannel.ID == c.SubchannelID {
			return dab.Subchannel{
				ID:        spec.Subchannel.ID,
				Bitrate:   spec.Subchannel.Bitrate,
				StartAddr: spec.Subchannel.StartAddr,
			}, true
		}
	}
	return dab.Subchannel{}, false
}

// AddService starts delivering the service's programme to h. The replay
// carries no MSC, so nothing is written to dumpFileName.
func (r *Receiver) AddService(h dab.ProgrammeHandler, dumpFileName string, s dab.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil || r.ctx.Err() != nil {
		return ErrNotStarted
	}

	var spec *ServiceSpec
	for i := range r.revealed {
		if dab.ServiceID(r.revealed[i].ID) == s.ID {
			spec = &r.revealed[i]
			break
		}
	}
	if spec == nil {
		return fmt.Errorf("service %s not in ensemble", s.ID)
	}
	if r.added[s.ID] {
		return fmt.Errorf("service %s already added", s.ID)
	}
	r.added[s.ID] = true

	log.Printf("Replay: decoding %s (%s), MSC dump %s skipped", s.ID, dab.TrimLabel(spec.Label), dumpFileName)

	r.wg.Add(1)
	go r.runService(r.ctx, *spec, h)
	return nil
}

func (r *Receiver) lookup(id dab.ServiceID) (ServiceSpec, bool) {
	for _, spec := range r.manifest.Services {
		if dab.ServiceID(spec.ID) == id {
			return spec, true
		}
	}
	return ServiceSpec{}, false
}

// runSession drives the controller: sync, ensemble, service discovery,
// then periodic SNR and date/time
func (r *Receiver) runSession(ctx context.Context) {
	defer r.wg.Done()

	m := r.manifest
	if !sleep(ctx, m.SyncDelay) {
		return
	}

	r.controller.OnMessage(dab.LevelInformation, "Replay: ", "found sync")
	r.controller.OnSyncChange(true)
	r.controller.OnNewEnsemble(uint16(m.Ensemble.ID))
	r.controller.OnSetEnsembleLabel(m.Ensemble.Label)

	for _, spec := range m.Services {
		r.mu.Lock()
		r.revealed = append(r.revealed, spec)
		r.mu.Unlock()
		r.controller.OnServiceDetected(dab.ServiceID(spec.ID))
	}

	for _, tii := range m.TII {
		r.controller.OnTIIMeasurement(dab.TIIMeasurement{
			Comb:         tii.Comb,
			Pattern:      tii.Pattern,
			DelaySamples: tii.DelaySamples,
			Error:        tii.Error,
		})
	}

	ticker := time.NewTicker(m.SNRInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if len(m.SNR) > 0 {
			r.controller.OnSNR(m.SNR[i%len(m.SNR)])
		}
		t := r.now().UTC()
		r.controller.OnDateTimeUpdate(dab.DateTime{
			Year:    t.Year(),
			Month:   int(t.Month()),
			Day:     t.Day(),
			Hour:    t.Hour(),
			Minutes: t.Minute(),
			Seconds: t.Second(),
		})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runService plays the audio segments of one service and interleaves its
// labels and slides by audio position
func (r *Receiver) runService(ctx context.Context, spec ServiceSpec, h dab.ProgrammeHandler) {
	defer r.wg.Done()

	ascty, _ := parseAudioType(spec.Type)
	mode := ascty.String()
	speed := *r.manifest.Speed
	pad := newPADSchedule(spec)

	start := time.Now()
	var position time.Duration

	for {
		delivered := false

		for _, seg := range spec.Audio {
			src, err := r.openSegment(seg)
			if err != nil {
				r.controller.OnMessage(dab.LevelError, "Replay: ", err.Error())
				continue
			}

			rate := src.SampleRate()
			frames := int(math.Round(float64(rate) * r.manifest.Chunk.Seconds()))
			if frames < 1 {
				frames = 1
			}

			for {
				buf := make([]int16, frames*2)
				n, err := readFull(src, buf)
				if n > 0 {
					delivered = true
					pad.emit(position, h, r.readSlide, r.controller)
					h.OnAudio(buf[:n], rate, mode)
					h.OnFrameErrors(0)

					position += time.Duration(n/2) * time.Second / time.Duration(rate)
					if !pace(ctx, start, position, speed) {
						src.Close()
						return
					}
				}
				if err != nil {
					if err != io.EOF {
						log.Printf("Replay: %s: %v", dab.ServiceID(spec.ID), err)
					}
					break
				}
			}
			src.Close()
		}

		if !spec.Loop || !delivered {
			return
		}
	}
}

func (r *Receiver) openSegment(seg SegmentSpec) (decode.Source, error) {
	if seg.File == "" {
		return decode.NewTone(seg.Tone, seg.SampleRate, seg.Length), nil
	}
	return decode.Open(r.manifest.resolve(seg.File))
}

func (r *Receiver) readSlide(path string) ([]byte, error) {
	return os.ReadFile(r.manifest.resolve(path))
}

// readFull reads until buf is full or the source ends
func readFull(src decode.Source, buf []int16) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:])
		total += n
		if err != nil {
			if total > 0 && err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			if total == 0 {
				return 0, io.EOF
			}
			break
		}
	}
	return total, nil
}

// pace waits until position of audio is due. A zero speed never waits.
func pace(ctx context.Context, start time.Time, position time.Duration, speed float64) bool {
	if speed == 0 {
		return ctx.Err() == nil
	}

	due := start.Add(time.Duration(float64(position) / speed))
	return sleep(ctx, time.Until(due))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
