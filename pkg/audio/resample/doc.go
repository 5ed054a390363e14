// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts monitored programme audio to the sound card rate
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation on interleaved int16 samples. DAB services run
// at 48 kHz or 32 kHz (half-rate HE-AAC and MPEG-II) while the sound card
// is usually opened once at a fixed rate.
//
// Example:
//
//	r := resample.New(32000, 48000, 2)
//	out := r.Resample(samples)
package resample
