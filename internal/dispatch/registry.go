// ABOUTME: Service dispatch registry
// ABOUTME: Waits for sync and the service list, then wires one recorder per discovered service
package dispatch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dabdump/dabdump/internal/capture"
	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/internal/record"
	"github.com/google/uuid"
)

// Default polling cadence of the startup sequence
const (
	DefaultSyncPoll    = 3 * time.Second
	DefaultListPoll    = 1 * time.Second
	DefaultSettleDelay = 3 * time.Second
)

// Config holds registry configuration
type Config struct {
	DumpDir     string
	SyncPoll    time.Duration
	ListPoll    time.Duration
	SettleDelay time.Duration
}

// Session is the receiver state the registry waits on
type Session interface {
	Synced() bool
	SyncChanged() <-chan struct{}
	Ensemble() dab.Ensemble
}

// WrapFunc lets the caller decorate a recorder before it is handed to the
// engine (e.g. to monitor one programme)
type WrapFunc func(id dab.ServiceID, h dab.ProgrammeHandler) dab.ProgrammeHandler

// Registry owns every recorder of the capture session
type Registry struct {
	config    Config
	engine    dab.Engine
	session   Session
	sessionID string
	now       func() time.Time
	wrap      WrapFunc

	mu        sync.Mutex
	recorders map[dab.ServiceID]*capture.Recorder
	order     []dab.ServiceID
	closed    bool
}

// New creates a registry. Zero durations fall back to the defaults.
func New(config Config, engine dab.Engine, session Session) *Registry {
	if config.SyncPoll <= 0 {
		config.SyncPoll = DefaultSyncPoll
	}
	if config.ListPoll <= 0 {
		config.ListPoll = DefaultListPoll
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}

	return &Registry{
		config:    config,
		engine:    engine,
		session:   session,
		sessionID: uuid.NewString(),
		now:       time.Now,
		recorders: make(map[dab.ServiceID]*capture.Recorder),
	}
}

// SetWrap installs a handler decorator used by RegisterDiscoveredServices
func (r *Registry) SetWrap(wrap WrapFunc) {
	r.wrap = wrap
}

// SessionID identifies this capture run in every ensemble record
func (r *Registry) SessionID() string {
	return r.sessionID
}

// WaitForSync blocks until the receiver reports sync or ctx is done
func (r *Registry) WaitForSync(ctx context.Context) error {
	ticker := time.NewTicker(r.config.SyncPoll)
	defer ticker.Stop()

	for !r.session.Synced() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for sync: %w", ctx.Err())
		case <-r.session.SyncChanged():
		case <-ticker.C:
		}
	}
	return nil
}

// WaitForServiceList blocks until the engine knows at least one service,
// then waits SettleDelay so late services and labels can arrive
func (r *Registry) WaitForServiceList(ctx context.Context) error {
	ticker := time.NewTicker(r.config.ListPoll)
	defer ticker.Stop()

	for len(r.engine.Services()) == 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for service list: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	if r.config.SettleDelay == 0 {
		return nil
	}

	settle := time.NewTimer(r.config.SettleDelay)
	defer settle.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for service list: %w", ctx.Err())
	case <-settle.C:
		return nil
	}
}

// PrefixFor derives the directory and file prefix for a service:
// <dumpDir>/0xSID and <dumpDir>/0xSID/0xSID
func PrefixFor(dumpDir string, id dab.ServiceID) (dir, prefix string) {
	name := id.String()
	dir = filepath.Join(dumpDir, name)
	prefix = strings.TrimRight(filepath.Join(dir, name), " \t\r\n\f\v")
	return dir, prefix
}

// RegisterDiscoveredServices creates a recorder for every discovered
// service not registered yet and hands it to the engine. It returns the
// number of services newly registered. A failure only affects its own service.
func (r *Registry) RegisterDiscoveredServices() int {
	services := r.engine.Services()
	ensemble := r.session.Ensemble()

	log.Printf("Service list")
	for _, s := range services {
		log.Printf("  [%s] %s %s", s.ID, s.Label, r.describeComponents(s))
	}

	registered := 0
	for _, s := range services {
		if r.registered(s.ID) {
			continue
		}
		if err := r.register(s, ensemble); err != nil {
			log.Printf("Tune to %s (%s) failed: %v", dab.TrimLabel(s.Label), s.ID, err)
			continue
		}
		registered++
	}

	log.Printf("Recording %d of %d services to %s", len(r.Recorders()), len(services), r.config.DumpDir)
	return registered
}

func (r *Registry) describeComponents(s dab.Service) string {
	var b strings.Builder
	for _, c := range r.engine.Components(s) {
		fmt.Fprintf(&b, " [component %d ASCTy: %s ]", c.Number, c.Type)
		if sub, ok := r.engine.Subchannel(c); ok {
			fmt.Fprintf(&b, " [subch %d bitrate:%d at SAd:%d]", sub.ID, sub.Bitrate, sub.StartAddr)
		}
	}
	return b.String()
}

func (r *Registry) registered(id dab.ServiceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.recorders[id]
	return ok
}

func (r *Registry) register(s dab.Service, ensemble dab.Ensemble) error {
	dir, prefix := PrefixFor(r.config.DumpDir, s.ID)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}

	ts := r.now().Unix()
	err := record.AppendAll(prefix+capture.LogExt,
		record.Entry{Tag: record.TagEnsemble, Payload: record.Ensemble{
			EnsembleID:    ensemble.ID,
			EnsembleLabel: dab.TrimLabel(ensemble.Label),
			Session:       r.sessionID,
			TS:            ts,
		}},
		record.Entry{Tag: record.TagService, Payload: record.Service{
			ServiceID:    uint32(s.ID),
			ServiceLabel: dab.TrimLabel(s.Label),
			TS:           ts,
		}},
	)
	if err != nil {
		// The recorder can still capture audio; only the header records are lost
		log.Printf("[%s] %v", s.ID, err)
	}

	rec := capture.NewRecorder(s.ID, prefix)
	var handler dab.ProgrammeHandler = rec
	if r.wrap != nil {
		handler = r.wrap(s.ID, rec)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("registry closed")
	}
	r.recorders[s.ID] = rec
	r.order = append(r.order, s.ID)
	r.mu.Unlock()

	if err := r.engine.AddService(handler, prefix+".msc", s); err != nil {
		r.remove(s.ID)
		rec.Close()
		return err
	}
	return nil
}

func (r *Registry) remove(id dab.ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.recorders, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Recorders returns the registered recorders in registration order
func (r *Registry) Recorders() []*capture.Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*capture.Recorder, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.recorders[id])
	}
	return out
}

// Recorder returns the recorder for id, if registered
func (r *Registry) Recorder(id dab.ServiceID) (*capture.Recorder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recorders[id]
	return rec, ok
}

// Close closes every recorder. Safe to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	recorders := make([]*capture.Recorder, 0, len(r.order))
	for _, id := range r.order {
		recorders = append(recorders, r.recorders[id])
	}
	r.mu.Unlock()

	for _, rec := range recorders {
		rec.Close()
	}
	return nil
}
