// ABOUTME: Tests for the capture application
// ABOUTME: Runs a full replay session in line-console mode against a temp dump directory
package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dabdump/dabdump/internal/config"
	"github.com/dabdump/dabdump/internal/dispatch"
	"github.com/dabdump/dabdump/internal/input"
	"github.com/dabdump/dabdump/internal/record"
	"github.com/dabdump/dabdump/pkg/audio/output"
	"github.com/dabdump/dabdump/pkg/audio/wav"
)

// syncBuffer is a bytes.Buffer safe for the receiver goroutine to write
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeOutput struct {
	mu     sync.Mutex
	opened bool
	closed bool
}

func (f *fakeOutput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *fakeOutput) Write(samples []int16) error { return nil }

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

const manifest = `
ensemble:
  id: 0x10b1
  label: "Test Mux"
sync_delay: 10ms
snr: [9.5]
speed: 0
services:
  - id: 0xd210
    label: "Radio One"
    loop: true
    audio:
      - tone: 440
        sample_rate: 48000
        length: 500ms
    labels: ["Now playing"]
    label_interval: 1h
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "mux.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Replay = path
	cfg.DumpDir = filepath.Join(dir, "dump")
	cfg.Startup.SyncPoll = 10 * time.Millisecond
	cfg.Startup.ListPoll = 10 * time.Millisecond
	cfg.Startup.SettleDelay = 10 * time.Millisecond
	return cfg
}

func waitForFile(t *testing.T, path string, minSize int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if fi, err := os.Stat(path); err == nil && fi.Size() > minSize {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunReplaySession(t *testing.T) {
	cfg := testConfig(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	var out, telemetry, diagnostics syncBuffer
	a := New(cfg, Options{In: pr, Out: &out, Telemetry: &telemetry, Diagnostics: &diagnostics})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	prefix := filepath.Join(cfg.DumpDir, "0xd210", "0xd210")
	waitForFile(t, prefix+".wav", 64*1024)

	if _, err := io.WriteString(pw, ".\n"); err != nil {
		t.Fatalf("write quit: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after '.'")
	}

	if !strings.Contains(out.String(), dispatch.Prompt) {
		t.Errorf("prompt not printed: %q", out.String())
	}

	r, err := wav.Open(prefix + ".wav")
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	info := r.Info()
	r.Close()
	if info.SampleRate != 48000 || info.Channels != 2 || info.DataBytes == 0 {
		t.Errorf("wav info = %+v", info)
	}

	f, err := os.Open(prefix + ".txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var tags []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tag, _, err := record.Decode(scanner.Bytes())
		if err != nil {
			t.Fatalf("bad record %q: %v", scanner.Text(), err)
		}
		tags = append(tags, tag)
	}
	if len(tags) < 3 || tags[0] != record.TagEnsemble || tags[1] != record.TagService || tags[2] != record.TagDLS {
		t.Errorf("log tags = %v", tags)
	}

	if !strings.Contains(telemetry.String(), `"snr":`) {
		t.Errorf("no snr telemetry: %q", telemetry.String())
	}
	if !strings.Contains(diagnostics.String(), "Info: Replay: found sync") {
		t.Errorf("diagnostics = %q", diagnostics.String())
	}
}

func TestRunWithoutDevice(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DumpDir = t.TempDir()
	cfg.Frontend.Driver = "no-such-frontend"

	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	err := a.Run(context.Background())

	if !errors.Is(err, ErrStartDevice) {
		t.Fatalf("expected ErrStartDevice, got %v", err)
	}
	if !errors.Is(err, input.ErrDeviceUnavailable) {
		t.Errorf("expected wrapped ErrDeviceUnavailable, got %v", err)
	}
}

func TestRunBadManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DumpDir = t.TempDir()
	cfg.Replay = filepath.Join(t.TempDir(), "missing.yaml")

	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	if err := a.Run(context.Background()); !errors.Is(err, ErrStartDevice) {
		t.Fatalf("expected ErrStartDevice, got %v", err)
	}
}

func TestRunStartupTimeout(t *testing.T) {
	cfg := testConfig(t)
	data := strings.Replace(manifest, "sync_delay: 10ms", "sync_delay: 1h", 1)
	if err := os.WriteFile(cfg.Replay, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Startup.Timeout = 50 * time.Millisecond

	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	err := a.Run(context.Background())
	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("expected ErrStartupTimeout, got %v", err)
	}
}

func TestRunCancelledDuringStartup(t *testing.T) {
	cfg := testConfig(t)
	data := strings.Replace(manifest, "sync_delay: 10ms", "sync_delay: 1h", 1)
	if err := os.WriteFile(cfg.Replay, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	if err := a.Run(ctx); err != nil {
		t.Fatalf("cancelled startup should end cleanly, got %v", err)
	}
}

func TestRunConsoleEOFEndsSession(t *testing.T) {
	cfg := testConfig(t)

	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.DumpDir, "0xd210", "0xd210.txt")); err != nil {
		t.Errorf("service log missing: %v", err)
	}
}

func TestMonitorWrapsOnlyTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.Service = "0xd210"

	out := &fakeOutput{}
	a := New(cfg, Options{In: strings.NewReader(""), Out: io.Discard, Telemetry: io.Discard, Diagnostics: io.Discard})
	a.newOutput = func() output.Output { return out }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened || !out.closed {
		t.Errorf("monitor output opened=%v closed=%v", out.opened, out.closed)
	}
}
