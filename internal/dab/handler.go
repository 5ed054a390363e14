// ABOUTME: Callback and engine contracts between the DAB receiver and the capture core
// ABOUTME: One narrow interface per concern instead of a single fat callback surface
package dab

import "context"

// ProgrammeHandler receives decoded content for exactly one service.
// The engine calls it from its own goroutine, dedicated to that service.
type ProgrammeHandler interface {
	// OnAudio delivers interleaved stereo PCM at sampleRate
	OnAudio(samples []int16, sampleRate int, mode string)
	OnFrameErrors(frameErrors int)
	OnRSErrors(uncorrectedErrors bool, correctedErrors int)
	OnAACErrors(aacErrors int)
	OnDynamicLabel(label string)
	OnMOT(file MOTFile)
	OnPADLengthError(announced, actual int)
}

// ControllerHandler receives receiver-level session events
type ControllerHandler interface {
	OnSNR(snr float64)
	OnSyncChange(synced bool)
	OnServiceDetected(id ServiceID)
	OnNewEnsemble(id uint16)
	OnSetEnsembleLabel(label string)
	OnDateTimeUpdate(dt DateTime)
	OnMessage(level MessageLevel, text, detail string)
	OnTIIMeasurement(m TIIMeasurement)
}

// SignalObserver receives raw signal-level data. Receivers only deliver
// these when the ControllerHandler also implements this interface.
type SignalObserver interface {
	OnFrequencyCorrectorChange(fine, coarse int)
	OnSignalPresence(present bool)
	OnFIBDecodeSuccess(crcOK bool, fib []byte)
	OnNewImpulseResponse(data []float32)
	OnNewNullSymbol(data []complex64)
	OnConstellationPoints(data []complex64)
}

// Engine is the service-level view of the decoder
type Engine interface {
	// Services returns the services discovered so far (may be empty)
	Services() []Service
	Components(s Service) []Component
	Subchannel(c Component) (Subchannel, bool)
	// AddService starts decoding s into h. dumpFileName is where the
	// engine may dump the raw MSC stream.
	AddService(h ProgrammeHandler, dumpFileName string, s Service) error
}

// Receiver is a tuned receiver: device plus decode engine
type Receiver interface {
	Engine
	// Restart (re)starts acquisition and decoding
	Restart(ctx context.Context) error
	Close() error
}

// Tuner is the device side a receiver exposes for tuning and gain
type Tuner interface {
	SetFrequency(hz int) error
	SetGain(gain int) error
	SetAGC(enabled bool) error
	Description() string
}
