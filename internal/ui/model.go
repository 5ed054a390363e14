// ABOUTME: Bubbletea model for the operator console
// ABOUTME: Shows receiver and per-service capture status and reads operator commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dabdump/dabdump/internal/dispatch"
	"github.com/dustin/go-humanize"
)

// Status is one snapshot of the capture session
type Status struct {
	Source        string
	Channel       string
	DumpDir       string
	Synced        bool
	SNR           float64
	HaveSNR       bool
	EnsembleID    uint16
	EnsembleLabel string
	UTC           string
	Services      []ServiceStatus
	Monitoring    string
	MonitorDrops  int64
}

// ServiceStatus describes one recorded service
type ServiceStatus struct {
	ID         string
	Label      string
	SampleRate int
	Mode       string
	Recording  bool
	Bytes      int64
	Labels     int
	LastLabel  string
	Slides     int
	Skipped    int
}

type tickMsg time.Time
type statusMsg Status

// Model represents the console state
type Model struct {
	status    Status
	input     string
	notice    string
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

// Init starts the refresh tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case statusMsg:
		m.status = Status(msg)
	}

	return m, nil
}

// handleKey edits the command line; Enter submits it
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEnter:
		line := m.input
		m.input = ""
		if dispatch.HandleCommand(line) {
			return m.quit()
		}
		if strings.TrimSpace(line) != "" {
			m.notice = fmt.Sprintf("%q not supported, enter '%s' to quit", strings.TrimSpace(line), dispatch.QuitSentinel)
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			r := []rune(m.input)
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
		if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
			m.input += " "
		}
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.quitChan != nil {
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
	}
	return m, tea.Quit
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	serviceHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	okStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	faint              = lipgloss.NewStyle().Faint(true)
)

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return "Closing recordings...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("dabdump"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Source", m.status.Source)
	field("Channel", m.status.Channel)
	field("Dump", m.status.DumpDir)
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())

	b.WriteString(headerStyle.Render("Sync: "))
	if m.status.Synced {
		b.WriteString(okStyle.Render("locked"))
	} else {
		b.WriteString(warnStyle.Render("searching"))
	}
	if m.status.HaveSNR {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  SNR %.1f dB", m.status.SNR)))
	}
	b.WriteString("\n")

	if m.status.EnsembleLabel != "" || m.status.EnsembleID != 0 {
		field("Ensemble", fmt.Sprintf("%s (0x%04x)", m.status.EnsembleLabel, m.status.EnsembleID))
	}
	if m.status.UTC != "" {
		field("UTC", m.status.UTC)
	}
	if m.status.Monitoring != "" {
		field("Monitor", fmt.Sprintf("%s (%d dropped)", m.status.Monitoring, m.status.MonitorDrops))
	}
	b.WriteString("\n")

	b.WriteString(serviceHeaderStyle.Render(fmt.Sprintf("Services (%d)", len(m.status.Services))))
	b.WriteString("\n\n")

	if len(m.status.Services) == 0 {
		b.WriteString(valueStyle.Render("  Waiting for service list"))
		b.WriteString("\n")
	}
	for _, s := range m.status.Services {
		b.WriteString(renderService(s, m.width))
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(warnStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(faint.Render(fmt.Sprintf("Enter '%s' to quit", dispatch.QuitSentinel)))
	b.WriteString("\n> ")
	b.WriteString(m.input)

	return b.String()
}

func renderService(s ServiceStatus, width int) string {
	state := warnStyle.Render("idle")
	if s.Recording {
		state = okStyle.Render(fmt.Sprintf("%dHz %s", s.SampleRate, s.Mode))
	}

	line := fmt.Sprintf("  %s %-16s %s  %s  slides %d/%d",
		s.ID, truncate(s.Label, 16), state, humanize.Bytes(uint64(s.Bytes)), s.Slides, s.Slides+s.Skipped)

	label := ""
	if s.LastLabel != "" {
		limit := 60
		if width > 10 {
			limit = width - 6
		}
		label = "\n      " + faint.Render(truncate(s.LastLabel, limit))
	}

	return line + label + "\n"
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}
