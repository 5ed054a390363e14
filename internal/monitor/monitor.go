// ABOUTME: Local playback of one monitored service
// ABOUTME: Tees a programme handler into a sound card output without blocking the decoder
package monitor

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/dabdump/dabdump/internal/dab"
	"github.com/dabdump/dabdump/pkg/audio"
	"github.com/dabdump/dabdump/pkg/audio/output"
	"github.com/dabdump/dabdump/pkg/audio/resample"
)

// Playback defaults
const (
	DefaultDeviceRate = 48000
	DefaultQueueDepth = 32
)

type chunk struct {
	samples []int16
	rate    int
}

// Monitor plays the audio of one service through an Output. OnAudio never
// blocks: chunks are dropped when the queue is full.
type Monitor struct {
	out        output.Output
	deviceRate int
	queue      chan chunk
	dropped    atomic.Int64
	played     atomic.Int64

	resampler *resample.Resampler

	mu      sync.RWMutex
	started bool
	closed  bool
	openErr error
	done    chan struct{}
}

// New creates a monitor that will open out at deviceRate on first use
func New(out output.Output, deviceRate, queueDepth int) *Monitor {
	if deviceRate <= 0 {
		deviceRate = DefaultDeviceRate
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Monitor{
		out:        out,
		deviceRate: deviceRate,
		queue:      make(chan chunk, queueDepth),
		done:       make(chan struct{}),
	}
}

// Start opens the output and starts the playback goroutine
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.closed {
		return m.openErr
	}
	m.started = true

	if err := m.out.Open(m.deviceRate, audio.DefaultChannels); err != nil {
		m.openErr = err
		close(m.done)
		return err
	}
	go m.run()
	return nil
}

// Enqueue hands a decoded frame to the playback goroutine
func (m *Monitor) Enqueue(samples []int16, sampleRate int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	c := chunk{samples: append([]int16(nil), samples...), rate: sampleRate}
	select {
	case m.queue <- c:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns the number of frames discarded because the queue was full
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Played returns the number of samples written to the output
func (m *Monitor) Played() int64 {
	return m.played.Load()
}

func (m *Monitor) run() {
	defer close(m.done)

	for c := range m.queue {
		samples := c.samples
		if c.rate != m.deviceRate {
			if m.resampler == nil || m.resampler.InputRate() != c.rate {
				m.resampler = resample.New(c.rate, m.deviceRate, audio.DefaultChannels)
			}
			samples = m.resampler.Resample(samples)
		}

		if err := m.out.Write(samples); err != nil {
			log.Printf("Monitor: playback stopped: %v", err)
			// Drain so Enqueue keeps dropping rather than filling up
			for range m.queue {
			}
			return
		}
		m.played.Add(int64(len(samples)))
	}
}

// Close stops playback and closes the output
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	started, openErr := m.started, m.openErr
	m.mu.Unlock()

	if !started {
		return nil
	}
	<-m.done
	if openErr != nil {
		return nil
	}
	return m.out.Close()
}

// Tee forwards every callback to the wrapped handler and copies audio to
// the monitor
type Tee struct {
	dab.ProgrammeHandler
	monitor *Monitor
}

// Wrap returns h with its audio also sent to m
func Wrap(h dab.ProgrammeHandler, m *Monitor) *Tee {
	return &Tee{ProgrammeHandler: h, monitor: m}
}

func (t *Tee) OnAudio(samples []int16, sampleRate int, mode string) {
	t.ProgrammeHandler.OnAudio(samples, sampleRate, mode)
	t.monitor.Enqueue(samples, sampleRate)
}
