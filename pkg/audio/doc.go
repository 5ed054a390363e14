// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Format descriptor shared by capture, replay and monitor
// Package audio provides the PCM types used throughout dabdump.
//
// Every decoded DAB programme reaches the capture layer as interleaved
// 16-bit stereo samples. Format carries the sample rate and decoder mode
// label; the channel count is fixed at 2.
//
// Example:
//
//	format := audio.NewFormat(48000, "DAB+ stereo")
//	frames := format.Frames(len(samples))
package audio
