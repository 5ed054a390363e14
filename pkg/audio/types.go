// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM format descriptor and sample helpers used by capture sinks
package audio

// Capture sinks always write interleaved stereo 16-bit PCM, whatever the
// source mode (mono programmes are upmixed by the decoder).
const (
	DefaultChannels = 2
	DefaultBitDepth = 16
)

// Format describes an audio stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Mode       string // decoder mode label, e.g. "DAB+ stereo"
}

// NewFormat returns the sink format for a decoded frame
func NewFormat(sampleRate int, mode string) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		Mode:       mode,
	}
}

// BytesPerFrame returns the size of one interleaved sample frame
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Frames returns the number of interleaved frames held by n samples
func (f Format) Frames(n int) int {
	if f.Channels <= 0 {
		return 0
	}
	return n / f.Channels
}

// ClampInt16 saturates a wider sample to the int16 range
func ClampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// MonoToStereo duplicates every mono sample into both channels
func MonoToStereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}
