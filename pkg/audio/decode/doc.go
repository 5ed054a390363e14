// ABOUTME: Audio file decoder package for the replay receiver
// ABOUTME: Provides Source interface and implementations for MP3, FLAC, WAV and a test tone
// Package decode turns audio files into interleaved 16-bit stereo PCM.
//
// Supports: MP3, FLAC (any bit depth), 16-bit WAV, and a generated sine tone
//
// Every Source delivers stereo frames at its native sample rate; mono input
// is duplicated to both channels. Read returns io.EOF once the source is
// exhausted.
//
// Example:
//
//	src, err := decode.Open("programme.flac")
//	n, err := src.Read(buf)
package decode
