// ABOUTME: Tests for the operator console loop
// ABOUTME: Covers the quit sentinel, EOF and cancellation
package dispatch

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		line string
		quit bool
	}{
		{".", true},
		{"  .  ", true},
		{"", false},
		{"5C", false},
		{"..", false},
	}

	for _, tt := range tests {
		if got := HandleCommand(tt.line); got != tt.quit {
			t.Errorf("HandleCommand(%q) = %v, want %v", tt.line, got, tt.quit)
		}
	}
}

func TestRunConsoleQuit(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("hello\n.\nnever read\n")

	if err := RunConsole(context.Background(), in, &out); err != nil {
		t.Fatalf("RunConsole: %v", err)
	}

	if got := strings.Count(out.String(), Prompt); got != 2 {
		t.Errorf("prompt printed %d times, want 2", got)
	}
}

func TestRunConsoleEOF(t *testing.T) {
	var out bytes.Buffer
	if err := RunConsole(context.Background(), strings.NewReader("a\nb\n"), &out); err != nil {
		t.Fatalf("RunConsole: %v", err)
	}
}

func TestRunConsoleCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunConsole(ctx, pr, io.Discard)
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunConsole: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunConsole did not return after cancel")
	}
}
