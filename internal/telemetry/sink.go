// ABOUTME: Process-wide receiver event sink
// ABOUTME: Emits change-suppressed telemetry and keeps the sync/ensemble snapshot
package telemetry

import (
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/internal/record"
)

// Config controls which telemetry kinds are printed
type Config struct {
	// PrintDateTime enables UTCTime records. Date/time changes are always
	// tracked but not printed by default.
	PrintDateTime bool
}

// Snapshot is the latest known session state
type Snapshot struct {
	Synced        bool
	SNR           float64
	HaveSNR       bool
	EnsembleID    uint16
	EnsembleLabel string
	LastService   dab.ServiceID
	DateTime      dab.DateTime
	HaveDateTime  bool
}

// Sink implements dab.ControllerHandler and dab.SignalObserver.
//
// The receiver goroutine is the only writer; the orchestrator and the
// console read through Synced, SyncChanged and Snapshot.
type Sink struct {
	config Config
	now    func() time.Time

	outMu  sync.Mutex
	out    io.Writer // telemetry records
	errOut io.Writer // diagnostic messages

	synced atomic.Bool
	syncCh chan struct{}

	mu            sync.Mutex
	lastSNR       float64
	haveSNR       bool
	lastDateTime  dab.DateTime
	haveDateTime  bool
	ensembleID    uint16
	ensembleLabel string
	lastService   dab.ServiceID
}

// New creates a sink writing telemetry to out and diagnostics to errOut
func New(config Config, out, errOut io.Writer) *Sink {
	return &Sink{
		config: config,
		now:    time.Now,
		out:    out,
		errOut: errOut,
		syncCh: make(chan struct{}, 1),
	}
}

func (s *Sink) emit(tag string, payload interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if err := record.Encode(s.out, tag, payload); err != nil {
		log.Printf("Telemetry: %v", err)
	}
}

// OnSNR prints an snr record when the value changes. NaN and infinite
// estimates have no JSON form and are ignored.
func (s *Sink) OnSNR(snr float64) {
	if math.IsNaN(snr) || math.IsInf(snr, 0) {
		return
	}

	s.mu.Lock()
	changed := !s.haveSNR || s.lastSNR != snr
	s.lastSNR = snr
	s.haveSNR = true
	s.mu.Unlock()

	if changed {
		s.emit(record.TagSNR, record.SNR{TS: s.now().Unix(), Value: snr})
	}
}

// OnSyncChange publishes the sync flag and wakes a waiter
func (s *Sink) OnSyncChange(synced bool) {
	s.synced.Store(synced)

	select {
	case s.syncCh <- struct{}{}:
	default:
	}
}

// OnServiceDetected remembers the latest announced service
func (s *Sink) OnServiceDetected(id dab.ServiceID) {
	s.mu.Lock()
	s.lastService = id
	s.mu.Unlock()
}

// OnNewEnsemble remembers the ensemble id
func (s *Sink) OnNewEnsemble(id uint16) {
	s.mu.Lock()
	s.ensembleID = id
	s.mu.Unlock()
}

// OnSetEnsembleLabel remembers the ensemble label
func (s *Sink) OnSetEnsembleLabel(label string) {
	s.mu.Lock()
	s.ensembleLabel = label
	s.mu.Unlock()
}

// OnDateTimeUpdate tracks the ensemble clock. Output is gated by
// Config.PrintDateTime.
func (s *Sink) OnDateTimeUpdate(dt dab.DateTime) {
	s.mu.Lock()
	changed := !s.haveDateTime || s.lastDateTime != dt
	s.lastDateTime = dt
	s.haveDateTime = true
	s.mu.Unlock()

	if changed && s.config.PrintDateTime {
		s.emit(record.TagUTCTime, record.UTCTime(dt))
	}
}

// OnMessage routes a receiver message to the diagnostic stream
func (s *Sink) OnMessage(level dab.MessageLevel, text, detail string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	fmt.Fprintf(s.errOut, "%s: %s%s\n", level, text, detail)
}

// OnTIIMeasurement prints every measurement
func (s *Sink) OnTIIMeasurement(m dab.TIIMeasurement) {
	s.emit(record.TagTII, record.TII{
		Comb:    m.Comb,
		Pattern: m.Pattern,
		Delay:   m.DelaySamples,
		DelayKm: m.DelayKm(),
		Error:   m.Error,
	})
}

// Raw signal data is reserved for spectrum tooling and ignored here.
func (s *Sink) OnFrequencyCorrectorChange(fine, coarse int) {}

func (s *Sink) OnSignalPresence(present bool) {}

func (s *Sink) OnFIBDecodeSuccess(crcOK bool, fib []byte) {}

func (s *Sink) OnNewImpulseResponse(data []float32) {}

func (s *Sink) OnNewNullSymbol(data []complex64) {}

func (s *Sink) OnConstellationPoints(data []complex64) {}

// Synced reports the latest sync state
func (s *Sink) Synced() bool {
	return s.synced.Load()
}

// SyncChanged fires after sync state updates. It coalesces, so readers
// must re-check Synced.
func (s *Sink) SyncChanged() <-chan struct{} {
	return s.syncCh
}

// Ensemble returns the latest ensemble identity
func (s *Sink) Ensemble() dab.Ensemble {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dab.Ensemble{ID: s.ensembleID, Label: s.ensembleLabel}
}

// LastService returns the most recently detected service
func (s *Sink) LastService() dab.ServiceID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastService
}

// Snapshot returns the full session state
func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Synced:        s.synced.Load(),
		SNR:           s.lastSNR,
		HaveSNR:       s.haveSNR,
		EnsembleID:    s.ensembleID,
		EnsembleLabel: s.ensembleLabel,
		LastService:   s.lastService,
		DateTime:      s.lastDateTime,
		HaveDateTime:  s.haveDateTime,
	}
}

var (
	_ dab.ControllerHandler = (*Sink)(nil)
	_ dab.SignalObserver    = (*Sink)(nil)
)
