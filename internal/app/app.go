// ABOUTME: Capture application orchestration
// ABOUTME: Acquires the receiver, tunes, registers every service and runs the console until quit
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dabdump/dabdump/internal/channels"
	"github.com/dabdump/dabdump/internal/config"
	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/internal/dispatch"
	"github.com/dabdump/dabdump/internal/input"
	"github.com/dabdump/dabdump/internal/monitor"
	"github.com/dabdump/dabdump/internal/replay"
	"github.com/dabdump/dabdump/internal/telemetry"
	"github.com/dabdump/dabdump/internal/ui"
	"github.com/dabdump/dabdump/pkg/audio/output"
	"github.com/dustin/go-humanize"
)

// ErrStartDevice wraps every failure to acquire a receiver
var ErrStartDevice = errors.New("could not start device")

// ErrStartupTimeout is returned when sync or the service list did not
// arrive within the configured startup timeout
var ErrStartupTimeout = errors.New("startup timed out")

// Device is the receiver the app drives
type Device interface {
	dab.Receiver
	dab.Tuner
}

// Options wires the app to the process streams
type Options struct {
	In          io.Reader // operator commands (line console)
	Out         io.Writer // console prompt
	Telemetry   io.Writer // NDJSON telemetry records
	Diagnostics io.Writer // Info:/Error: receiver messages
	UseTUI      bool
}

// App owns one capture session
type App struct {
	config  config.Config
	options Options

	telemetry *telemetry.Sink
	device    Device
	registry  *dispatch.Registry
	monitor   *monitor.Monitor
	console   *ui.Console

	// closed when the console program has restored the terminal
	consoleDone chan struct{}

	// newOutput creates the monitor's sound card output
	newOutput func() output.Output
}

// New creates an app for a validated configuration
func New(cfg config.Config, opts Options) *App {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Telemetry == nil {
		opts.Telemetry = os.Stdout
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}

	return &App{
		config:  cfg,
		options: opts,
		newOutput: func() output.Output {
			o := output.NewOto()
			o.SetVolume(cfg.Monitor.Volume)
			return o
		},
	}
}

// Run executes the capture session until the operator quits or ctx ends.
// Recordings are always closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.telemetry = telemetry.New(
		telemetry.Config{PrintDateTime: a.config.PrintTime},
		a.options.Telemetry,
		a.options.Diagnostics,
	)

	device, err := a.openDevice()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartDevice, err)
	}
	a.device = device
	log.Printf("Receiver: %s", device.Description())

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.shutdown()
	}()

	if err := a.tune(); err != nil {
		return err
	}

	if err := a.device.Restart(runCtx); err != nil {
		return fmt.Errorf("failed to start receiver: %w", err)
	}

	a.registry = dispatch.New(dispatch.Config{
		DumpDir:     a.config.DumpDir,
		SyncPoll:    a.config.Startup.SyncPoll,
		ListPoll:    a.config.Startup.ListPoll,
		SettleDelay: a.config.Startup.SettleDelay,
	}, a.device, a.telemetry)
	log.Printf("Capture session %s", a.registry.SessionID())

	a.startMonitor()

	if a.options.UseTUI {
		a.startConsole(runCtx, cancel)
	}

	if err := a.startup(runCtx); err != nil {
		if runCtx.Err() != nil && !errors.Is(err, ErrStartupTimeout) {
			// Operator quit or signal before the service list arrived
			log.Printf("Startup interrupted")
			return nil
		}
		return err
	}

	if a.options.UseTUI {
		<-runCtx.Done()
		return nil
	}

	return dispatch.RunConsole(runCtx, a.options.In, a.options.Out)
}

func (a *App) openDevice() (Device, error) {
	if a.config.Replay != "" {
		r, err := replay.Open(a.config.Replay, a.telemetry)
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	return input.Open(input.Options{
		Frontend:               a.config.Frontend.Driver,
		Args:                   a.config.Frontend.Args,
		DisableCoarseCorrector: a.config.Frontend.DisableCoarseCorrector,
		DecodeTII:              a.config.Frontend.DecodeTII,
	}, a.telemetry)
}

func (a *App) tune() error {
	ch, err := channels.Lookup(a.config.Channel)
	if err != nil {
		return err
	}
	if err := a.device.SetFrequency(ch.Hz()); err != nil {
		return fmt.Errorf("failed to tune to %s: %w", ch, err)
	}
	log.Printf("Tuned to %s", ch)

	if a.config.Gain == config.GainAGC {
		return a.device.SetAGC(true)
	}
	if err := a.device.SetGain(a.config.Gain); err != nil {
		return fmt.Errorf("failed to set gain %d: %w", a.config.Gain, err)
	}
	return nil
}

// startup waits for sync and the service list, then registers every service
func (a *App) startup(ctx context.Context) error {
	waitCtx := ctx
	if a.config.Startup.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.config.Startup.Timeout)
		defer cancel()
	}

	log.Printf("Waiting for sync")
	if err := a.registry.WaitForSync(waitCtx); err != nil {
		return a.startupError(ctx, err)
	}

	log.Printf("Wait for services")
	if err := a.registry.WaitForServiceList(waitCtx); err != nil {
		return a.startupError(ctx, err)
	}

	a.registry.RegisterDiscoveredServices()
	return nil
}

func (a *App) startupError(ctx context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %w", ErrStartupTimeout, a.config.Startup.Timeout, err)
	}
	return err
}

// startMonitor sets up playback of the configured service, if any
func (a *App) startMonitor() {
	if a.config.Monitor.Service == "" {
		return
	}

	target, err := config.ParseServiceID(a.config.Monitor.Service)
	if err != nil {
		log.Printf("Monitor: %v", err)
		return
	}

	m := monitor.New(a.newOutput(), a.config.Monitor.DeviceRate, a.config.Monitor.QueueDepth)
	if err := m.Start(); err != nil {
		log.Printf("Monitor: could not open audio output: %v", err)
		m.Close()
		return
	}
	a.monitor = m

	a.registry.SetWrap(func(id dab.ServiceID, h dab.ProgrammeHandler) dab.ProgrammeHandler {
		if id != target {
			return h
		}
		log.Printf("Monitor: playing %s", id)
		return monitor.Wrap(h, m)
	})
}

// startConsole runs the TUI and cancels the session when the operator quits
func (a *App) startConsole(ctx context.Context, cancel context.CancelFunc) {
	a.console = ui.NewConsole()
	a.consoleDone = make(chan struct{})

	go func() {
		defer close(a.consoleDone)
		if err := a.console.Start(a.status(), nil, nil); err != nil {
			log.Printf("Console: %v", err)
		}
		cancel()
	}()

	go func() {
		select {
		case <-a.console.QuitChan():
			log.Printf("Received quit from console")
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.console.Update(a.status())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// status collects the console view of the session
func (a *App) status() ui.Status {
	snap := a.telemetry.Snapshot()

	st := ui.Status{
		Source:        a.device.Description(),
		Channel:       a.config.Channel,
		DumpDir:       a.config.DumpDir,
		Synced:        snap.Synced,
		SNR:           snap.SNR,
		HaveSNR:       snap.HaveSNR,
		EnsembleID:    snap.EnsembleID,
		EnsembleLabel: dab.TrimLabel(snap.EnsembleLabel),
		Monitoring:    a.config.Monitor.Service,
	}
	if snap.HaveDateTime {
		dt := snap.DateTime
		st.UTC = fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minutes, dt.Seconds)
	}
	if a.monitor != nil {
		st.MonitorDrops = a.monitor.Dropped()
	}

	if a.registry == nil {
		return st
	}

	labels := make(map[dab.ServiceID]string)
	for _, s := range a.device.Services() {
		labels[s.ID] = dab.TrimLabel(s.Label)
	}
	for _, rec := range a.registry.Recorders() {
		stats := rec.Stats()
		st.Services = append(st.Services, ui.ServiceStatus{
			ID:         rec.ID().String(),
			Label:      labels[rec.ID()],
			SampleRate: stats.SampleRate,
			Mode:       stats.Mode,
			Recording:  stats.Recording,
			Bytes:      stats.Samples * 2,
			Labels:     stats.Labels,
			LastLabel:  stats.LastLabel,
			Slides:     stats.Slides,
			Skipped:    stats.SlidesSkipped,
		})
	}
	return st
}

// shutdown stops the receiver first so no callback races the recorder close
func (a *App) shutdown() {
	if a.console != nil {
		a.console.Stop()
		select {
		case <-a.consoleDone:
		case <-time.After(2 * time.Second):
		}
	}

	if a.device != nil {
		if err := a.device.Close(); err != nil {
			log.Printf("Error closing receiver: %v", err)
		}
	}

	if a.registry != nil {
		for _, rec := range a.registry.Recorders() {
			stats := rec.Stats()
			log.Printf("%s: %s audio, %d labels, %d slides (%d skipped)",
				rec.ID(), humanize.Bytes(uint64(stats.Samples*2)), stats.Labels, stats.Slides, stats.SlidesSkipped)
		}
		a.registry.Close()
	}

	if a.monitor != nil {
		a.monitor.Close()
	}

	log.Printf("Capture stopped")
}
