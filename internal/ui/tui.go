// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the operator console
package ui

import (
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Console manages the operator console
type Console struct {
	mu       sync.Mutex
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{}
	done     chan struct{}
}

// NewConsole creates a console
func NewConsole() *Console {
	return &Console{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// NewModel creates a console model that signals quitChan when the operator quits
func NewModel(initial Status, quitChan chan struct{}) Model {
	return Model{
		status:    initial,
		startTime: time.Now(),
		quitChan:  quitChan,
	}
}

// Start runs the console until the operator quits or Stop is called.
// in and out may be nil for the process terminal.
func (c *Console) Start(initial Status, in io.Reader, out io.Writer) error {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	program := tea.NewProgram(NewModel(initial, c.quitChan), opts...)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil
	default:
	}
	c.program = program
	c.mu.Unlock()

	go func() {
		for {
			select {
			case status := <-c.updates:
				program.Send(statusMsg(status))
			case <-c.done:
				return
			}
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the console
func (c *Console) Update(status Status) {
	select {
	case c.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop ends the console program
func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	if c.program != nil {
		c.program.Quit()
	}
}

// QuitChan returns the channel that signals when the operator quits
func (c *Console) QuitChan() <-chan struct{} {
	return c.quitChan
}
