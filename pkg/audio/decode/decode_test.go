// ABOUTME: Tests for the audio file decoders
// ABOUTME: Covers extension dispatch, WAV mono widening and tone length
package decode

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dabdump/dabdump/pkg/audio/wav"
)

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.mp3"))
	if err == nil || !strings.Contains(err.Error(), "audio file not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestOpenUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported audio format: .ogg") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func writeWAV(t *testing.T, channels int, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	w, err := wav.Create(path, 32000, channels)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(samples); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVStereo(t *testing.T) {
	path := writeWAV(t, 2, []int16{1, -1, 2, -2})

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 32000 {
		t.Errorf("SampleRate() = %d", src.SampleRate())
	}

	buf := make([]int16, 16)
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []int16{1, -1, 2, -2}
	if n != len(want) {
		t.Fatalf("read %d samples, want %d", n, len(want))
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf[i], want[i])
		}
	}

	if _, err := src.Read(buf); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWAVMonoWidened(t *testing.T) {
	path := writeWAV(t, 1, []int16{10, 20, 30})

	src, err := NewWAV(path)
	if err != nil {
		t.Fatalf("NewWAV: %v", err)
	}
	defer src.Close()

	buf := make([]int16, 16)
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []int16{10, 10, 20, 20, 30, 30}
	if n != len(want) {
		t.Fatalf("read %d samples, want %d", n, len(want))
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf[i], want[i])
		}
	}
}

func TestToneLength(t *testing.T) {
	tone := NewTone(1000, 48000, 100*time.Millisecond)

	total := 0
	buf := make([]int16, 1024)
	for {
		n, err := tone.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if want := 4800 * 2; total != want {
		t.Errorf("tone produced %d samples, want %d", total, want)
	}
}

func TestToneStereoAndScale(t *testing.T) {
	tone := NewTone(0, 8000, 0)
	if tone.frequency != DefaultToneFrequency {
		t.Errorf("frequency = %v, want default", tone.frequency)
	}

	buf := make([]int16, 2000)
	n, err := tone.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Read = %d, %v", n, err)
	}

	for i := 0; i < n; i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("frame %d not identical on both channels", i/2)
		}
		if buf[i] > 16384 || buf[i] < -16384 {
			t.Fatalf("sample %d out of half scale: %d", i, buf[i])
		}
	}
}
