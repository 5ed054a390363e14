// ABOUTME: Tests for the replay receiver
// ABOUTME: Covers manifest parsing and a complete paced session
package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dabdump/dabdump/internal/dab"
)

type recordingController struct {
	mu       sync.Mutex
	synced   bool
	ensemble uint16
	label    string
	services []dab.ServiceID
	snr      []float64
	tii      []dab.TIIMeasurement
	errors   []string
	times    int
}

func (c *recordingController) OnSNR(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snr = append(c.snr, v)
}

func (c *recordingController) OnSyncChange(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced = b
}

func (c *recordingController) OnServiceDetected(id dab.ServiceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append(c.services, id)
}

func (c *recordingController) OnNewEnsemble(id uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensemble = id
}

func (c *recordingController) OnSetEnsembleLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

func (c *recordingController) OnDateTimeUpdate(dab.DateTime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times++
}

func (c *recordingController) OnMessage(level dab.MessageLevel, text, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level == dab.LevelError {
		c.errors = append(c.errors, text+detail)
	}
}

func (c *recordingController) OnTIIMeasurement(m dab.TIIMeasurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tii = append(c.tii, m)
}

type recordingHandler struct {
	mu     sync.Mutex
	frames int
	rates  map[int]bool
	modes  map[string]bool
	labels []string
	slides []dab.MOTFile
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{rates: make(map[int]bool), modes: make(map[string]bool)}
}

func (h *recordingHandler) OnAudio(samples []int16, rate int, mode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames += len(samples) / 2
	h.rates[rate] = true
	h.modes[mode] = true
}

func (h *recordingHandler) OnFrameErrors(int) {}

func (h *recordingHandler) OnRSErrors(bool, int) {}

func (h *recordingHandler) OnAACErrors(int) {}

func (h *recordingHandler) OnPADLengthError(int, int) {}

func (h *recordingHandler) OnDynamicLabel(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels = append(h.labels, label)
}

func (h *recordingHandler) OnMOT(f dab.MOTFile) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slides = append(h.slides, f)
}

func (h *recordingHandler) frameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

const testManifest = `
ensemble:
  id: 0x10b1
  label: "Test Mux        "
sync_delay: 10ms
snr: [12.5, 13]
speed: 0
tii:
  - comb: 1
    pattern: 2
    delay_samples: 2048
services:
  - id: 0xd210
    label: "Radio One"
    type: dab+
    subchannel: {id: 3, bitrate: 96, start_addr: 120}
    audio:
      - tone: 1000
        sample_rate: 8000
        length: 1s
    labels: ["a", "b"]
    label_interval: 400ms
    slides:
      - file: slides/cover.png
        content_name: cover.png
    slide_interval: 1s
  - id: 53776
    label: "Radio Two"
    type: dab
    audio:
      - tone: 500
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	if m.Ensemble.ID != 0x10b1 {
		t.Errorf("ensemble id = %#x", uint32(m.Ensemble.ID))
	}
	if m.SyncDelay != 10*time.Millisecond {
		t.Errorf("sync delay = %v", m.SyncDelay)
	}
	if m.SNRInterval != DefaultSNRInterval || m.Chunk != DefaultChunk {
		t.Errorf("defaults not applied: %v %v", m.SNRInterval, m.Chunk)
	}
	if *m.Speed != 0 {
		t.Errorf("speed = %v", *m.Speed)
	}
	if len(m.Services) != 2 {
		t.Fatalf("services = %d", len(m.Services))
	}
	if m.Services[1].ID != 53776 {
		t.Errorf("decimal id = %d", m.Services[1].ID)
	}

	tone := m.Services[1].Audio[0]
	if tone.SampleRate != DefaultToneRate || tone.Length != DefaultToneLength {
		t.Errorf("tone defaults not applied: %+v", tone)
	}
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad id", "services:\n  - id: zz\n    audio: [{tone: 1}]\n", "invalid identifier"},
		{"duplicate", "services:\n  - id: 1\n    audio: [{tone: 1}]\n  - id: 0x1\n    audio: [{tone: 1}]\n", "duplicate service 0x0001"},
		{"no audio", "services:\n  - id: 1\n", "no audio segments"},
		{"bad type", "services:\n  - id: 1\n    type: drm\n    audio: [{tone: 1}]\n", "unknown audio type"},
		{"label interval", "services:\n  - id: 1\n    audio: [{tone: 1}]\n    labels: [x]\n", "label_interval"},
		{"negative speed", "speed: -1\n", "speed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSlideSubType(t *testing.T) {
	tests := map[string]int{
		"a.jpg":  dab.MOTSubTypeJFIF,
		"a.JPEG": dab.MOTSubTypeJFIF,
		"a.png":  dab.MOTSubTypePNG,
		"a.gif":  dab.MOTSubTypeGIF,
		"a.bmp":  dab.MOTSubTypeBMP,
		"a.webp": 0xff,
	}
	for name, want := range tests {
		if got := slideSubType(name); got != want {
			t.Errorf("slideSubType(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestReceiverReplaysManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "slides"), 0755); err != nil {
		t.Fatal(err)
	}
	png := []byte("\x89PNG fake image")
	if err := os.WriteFile(filepath.Join(dir, "slides", "cover.png"), png, 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "mux.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0644); err != nil {
		t.Fatal(err)
	}

	controller := &recordingController{}
	r, err := Open(path, controller)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.AddService(newRecordingHandler(), "x.msc", dab.Service{ID: 0xd210}); err != ErrNotStarted {
		t.Errorf("AddService before Restart = %v, want ErrNotStarted", err)
	}

	if err := r.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}

	waitFor(t, "service list", func() bool { return len(r.Services()) == 2 })

	controller.mu.Lock()
	if !controller.synced || controller.ensemble != 0x10b1 || controller.label != "Test Mux        " {
		t.Errorf("controller state: synced=%v ensemble=%#x label=%q", controller.synced, controller.ensemble, controller.label)
	}
	if len(controller.tii) != 1 || controller.tii[0].DelaySamples != 2048 {
		t.Errorf("tii = %+v", controller.tii)
	}
	controller.mu.Unlock()

	services := r.Services()
	comps := r.Components(services[0])
	if len(comps) != 1 || comps[0].Type != dab.AudioDABPlus || comps[0].SubchannelID != 3 {
		t.Errorf("components = %+v", comps)
	}
	sub, ok := r.Subchannel(comps[0])
	if !ok || sub.Bitrate != 96 || sub.StartAddr != 120 {
		t.Errorf("subchannel = %+v, %v", sub, ok)
	}

	h := newRecordingHandler()
	if err := r.AddService(h, "x.msc", services[0]); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	if err := r.AddService(h, "x.msc", services[0]); err == nil {
		t.Error("adding a service twice should fail")
	}
	if err := r.AddService(h, "x.msc", dab.Service{ID: 0xbeef}); err == nil {
		t.Error("adding an unknown service should fail")
	}

	waitFor(t, "audio", func() bool { return h.frameCount() >= 8000 })
	time.Sleep(20 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frames != 8000 {
		t.Errorf("frames = %d, want 8000", h.frames)
	}
	if len(h.rates) != 1 || !h.rates[8000] {
		t.Errorf("rates = %v", h.rates)
	}
	if !h.modes["DAB+"] {
		t.Errorf("modes = %v", h.modes)
	}
	if strings.Join(h.labels, ",") != "a,b,a" {
		t.Errorf("labels = %v", h.labels)
	}
	if len(h.slides) != 1 {
		t.Fatalf("slides = %d, want 1", len(h.slides))
	}
	if string(h.slides[0].Data) != string(png) || h.slides[0].ContentSubType != dab.MOTSubTypePNG || h.slides[0].ContentName != "cover.png" {
		t.Errorf("slide = %+v", h.slides[0])
	}
}

func TestReceiverCloseStopsLoopingService(t *testing.T) {
	m, err := ParseManifest([]byte(`
sync_delay: 1ms
speed: 0
services:
  - id: 0x1
    loop: true
    audio:
      - tone: 440
        sample_rate: 8000
        length: 100ms
`))
	if err != nil {
		t.Fatal(err)
	}

	r := New(m, &recordingController{})
	if err := r.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "service list", func() bool { return len(r.Services()) == 1 })

	h := newRecordingHandler()
	if err := r.AddService(h, "", r.Services()[0]); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "looped audio", func() bool { return h.frameCount() > 1600 })

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the service goroutine")
	}

	if err := r.Restart(context.Background()); err == nil {
		t.Error("Restart after Close should fail")
	}
}

func TestReceiverReportsMissingSegment(t *testing.T) {
	m, err := ParseManifest([]byte(`
sync_delay: 1ms
speed: 0
services:
  - id: 0x1
    audio:
      - file: missing.flac
`))
	if err != nil {
		t.Fatal(err)
	}

	controller := &recordingController{}
	r := New(m, controller)
	defer r.Close()

	if err := r.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "service list", func() bool { return len(r.Services()) == 1 })

	if err := r.AddService(newRecordingHandler(), "", r.Services()[0]); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "error message", func() bool {
		controller.mu.Lock()
		defer controller.mu.Unlock()
		return len(controller.errors) > 0
	})

	controller.mu.Lock()
	defer controller.mu.Unlock()
	if !strings.Contains(controller.errors[0], "audio file not found") {
		t.Errorf("error = %q", controller.errors[0])
	}
}
