// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Streams interleaved int16 chunks, carrying the last frame across calls
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read position in input frames, relative to prev
	prev       []int16 // last frame of the previous chunk
	havePrev   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]int16, channels),
	}
}

// InputRate returns the rate this resampler converts from
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// Resample converts one chunk of interleaved samples at inputRate into
// interleaved samples at outputRate. Output lags input by one frame so that
// interpolation is continuous across chunk boundaries.
func (r *Resampler) Resample(input []int16) []int16 {
	ch := r.channels
	frames := len(input) / ch
	if frames == 0 {
		return nil
	}

	offset := 0
	if r.havePrev {
		offset = 1
	}
	total := frames + offset

	at := func(frame, c int) float64 {
		if frame < offset {
			return float64(r.prev[c])
		}
		return float64(input[(frame-offset)*ch+c])
	}

	out := make([]int16, 0, r.OutputSamplesNeeded(len(input))+ch)
	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}

		// Linear interpolation factor
		frac := r.position - float64(idx)
		for c := 0; c < ch; c++ {
			v := at(idx, c)*(1.0-frac) + at(idx+1, c)*frac
			out = append(out, int16(math.Round(v)))
		}
		r.position += r.ratio
	}

	// Re-base the position on the frame we keep for the next chunk
	r.position -= float64(total - 1)
	copy(r.prev, input[(frames-1)*ch:frames*ch])
	r.havePrev = true

	return out
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.havePrev = false
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output samples n input samples produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
