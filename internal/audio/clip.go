// internal/audio/clip.go

// Package audio loads, synthesizes and writes the mono PCM clips analysed by the detector.
package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyAudio indicates a clip or file with no samples
	ErrEmptyAudio = errors.New("audio contains no samples")
	// ErrUnsupportedFormat indicates a file that is not decodable PCM WAV
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidSample indicates a NaN, infinite or out-of-range amplitude
	ErrInvalidSample = errors.New("sample must be finite and within [-1, 1]")
)

// Clip is an immutable mono recording normalized to [-1, 1].
// A Clip may be shared between goroutines; nothing mutates it after construction.
type Clip struct {
	samples    []float64
	sampleRate int
}

// NewClip copies samples into a new Clip after validating them.
func NewClip(samples []float64, sampleRate int) (*Clip, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < -1 || s > 1 {
			return nil, fmt.Errorf("sample %d (%v): %w", i, s, ErrInvalidSample)
		}
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)
	return &Clip{samples: owned, sampleRate: sampleRate}, nil
}

// SampleRate returns the sample rate in Hz
func (c *Clip) SampleRate() int {
	return c.sampleRate
}

// Len returns the number of samples
func (c *Clip) Len() int {
	return len(c.samples)
}

// Duration returns the clip length in seconds
func (c *Clip) Duration() float64 {
	return float64(len(c.samples)) / float64(c.sampleRate)
}

// CopyTo copies samples starting at offset into dst and returns the count copied.
// It is the allocation-free accessor used on the analysis hot path.
func (c *Clip) CopyTo(dst []float64, offset int) int {
	if offset < 0 || offset >= len(c.samples) {
		return 0
	}
	return copy(dst, c.samples[offset:])
}

// Samples returns a copy of the clip's samples
func (c *Clip) Samples() []float64 {
	out := make([]float64, len(c.samples))
	copy(out, c.samples)
	return out
}

// Peak returns the largest absolute amplitude in the clip
func (c *Clip) Peak() float64 {
	peak := 0.0
	for _, s := range c.samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
