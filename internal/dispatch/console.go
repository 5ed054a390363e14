// ABOUTME: Operator console loop
// ABOUTME: Reads operator lines until the quit sentinel, EOF or cancellation
package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
)

// QuitSentinel ends the console loop
const QuitSentinel = "."

// Prompt is printed before every read
const Prompt = "**** Enter '.' to quit."

// HandleCommand interprets one operator line and reports whether the
// session should end. Anything but the sentinel is accepted and ignored;
// live re-tuning is not supported yet.
func HandleCommand(line string) (quit bool) {
	cmd := strings.TrimSpace(line)
	if cmd == QuitSentinel {
		return true
	}
	if cmd != "" {
		log.Printf("Console: %q not supported, enter '%s' to quit", cmd, QuitSentinel)
	}
	return false
}

// RunConsole prompts on out and reads lines from in until the operator
// enters the sentinel, in reaches EOF or ctx is cancelled
func RunConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprintln(out, Prompt)

		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("console read failed: %w", err)
			}
			return nil
		case line := <-lines:
			if HandleCommand(line) {
				return nil
			}
		}
	}
}
