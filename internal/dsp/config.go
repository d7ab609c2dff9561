// internal/dsp/config.go

// Package dsp turns audio clips into spectral frames and scores them for a
// rotor blade-pass signature.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Default detector parameters
const (
	DefaultFFTSize             = 4096
	DefaultHopSize             = 2048
	DefaultWindow              = WindowHann
	DefaultProminenceRatio     = 4.0
	DefaultMinBPFHz            = 40.0
	DefaultMaxBPFHz            = 2500.0
	DefaultNumHarmonics        = 6
	DefaultHarmonicToleranceHz = 15.0
	DefaultDetectionThreshold  = 50.0

	minFFTSize      = 64
	maxFFTSize      = 1 << 16
	maxNumHarmonics = 32
)

// ErrInvalidConfig is matched by every ConfigError
var ErrInvalidConfig = errors.New("invalid detector config")

// ConfigError reports a single out-of-range detector parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// DetectorConfig holds the analysis and detection parameters.
// All values should come from the application config file.
type DetectorConfig struct {
	// FFTSize is the transform length, a power of two (from config: fft_size)
	FFTSize int
	// HopSize is the frame advance in samples, 0 = half the frame (from config: hop_size)
	HopSize int
	// WindowSeconds is the analysed frame length, 0 = FFTSize samples (from config: window_seconds)
	WindowSeconds float64
	// Window is the taper: hann, hamming, blackman or rectangular (from config: window)
	Window string
	// ProminenceRatio is the minimum peak amplitude over the noise floor (from config: prominence_ratio)
	ProminenceRatio float64
	// MinBPFHz and MaxBPFHz bound the fundamental search (from config: min_bpf_hz, max_bpf_hz)
	MinBPFHz float64
	MaxBPFHz float64
	// NumHarmonics is the series length including the fundamental (from config: num_harmonics)
	NumHarmonics int
	// HarmonicToleranceHz is the match window around h*f0 (from config: harmonic_tolerance_hz)
	HarmonicToleranceHz float64
	// NoiseFloorDB pins the floor instead of estimating it per frame (from config: noise_floor_db)
	NoiseFloorDB *float64
	// DetectionThreshold is the minimum confidence (0-100) for a positive (from config: detection_threshold).
	// Positives also need one overtone, so a lone tone never qualifies however low this is.
	DetectionThreshold float64
}

// DefaultDetectorConfig returns the stock parameters
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		FFTSize:             DefaultFFTSize,
		HopSize:             DefaultHopSize,
		Window:              DefaultWindow,
		ProminenceRatio:     DefaultProminenceRatio,
		MinBPFHz:            DefaultMinBPFHz,
		MaxBPFHz:            DefaultMaxBPFHz,
		NumHarmonics:        DefaultNumHarmonics,
		HarmonicToleranceHz: DefaultHarmonicToleranceHz,
		DetectionThreshold:  DefaultDetectionThreshold,
	}
}

// Validate checks every field and returns all problems joined, or nil.
// Each joined error is a *ConfigError.
func (c DetectorConfig) Validate() error {
	var errs []error
	bad := func(field string, value any, reason string) {
		errs = append(errs, &ConfigError{Field: field, Value: value, Reason: reason})
	}

	if c.FFTSize < minFFTSize || c.FFTSize > maxFFTSize || c.FFTSize&(c.FFTSize-1) != 0 {
		bad("fft_size", c.FFTSize, fmt.Sprintf("must be a power of two in [%d, %d]", minFFTSize, maxFFTSize))
	}
	if c.HopSize < 0 {
		bad("hop_size", c.HopSize, "must be non-negative")
	}
	if !isFinite(c.WindowSeconds) || c.WindowSeconds < 0 {
		bad("window_seconds", c.WindowSeconds, "must be non-negative")
	}
	if !slices.Contains(WindowNames(), c.Window) {
		bad("window", c.Window, fmt.Sprintf("must be one of %v", WindowNames()))
	}
	if !isFinite(c.ProminenceRatio) || c.ProminenceRatio < 1 {
		bad("prominence_ratio", c.ProminenceRatio, "must be at least 1")
	}
	if !isFinite(c.MinBPFHz) || c.MinBPFHz < 0 {
		bad("min_bpf_hz", c.MinBPFHz, "must be non-negative")
	}
	if !isFinite(c.MaxBPFHz) || c.MaxBPFHz <= c.MinBPFHz {
		bad("max_bpf_hz", c.MaxBPFHz, "must be greater than min_bpf_hz")
	}
	if c.NumHarmonics < 1 || c.NumHarmonics > maxNumHarmonics {
		bad("num_harmonics", c.NumHarmonics, fmt.Sprintf("must be in [1, %d]", maxNumHarmonics))
	}
	if !isFinite(c.HarmonicToleranceHz) || c.HarmonicToleranceHz <= 0 {
		bad("harmonic_tolerance_hz", c.HarmonicToleranceHz, "must be positive")
	}
	if c.NoiseFloorDB != nil && !isFinite(*c.NoiseFloorDB) {
		bad("noise_floor_db", *c.NoiseFloorDB, "must be finite")
	}
	if !isFinite(c.DetectionThreshold) || c.DetectionThreshold < 0 || c.DetectionThreshold > 100 {
		bad("detection_threshold", c.DetectionThreshold, "must be in [0, 100]")
	}

	return errors.Join(errs...)
}

// ProminenceDB returns the prominence ratio as a dB margin
func (c DetectorConfig) ProminenceDB() float64 {
	return 20 * math.Log10(c.ProminenceRatio)
}

// FrameLength returns the analysed samples per frame at sampleRate
func (c DetectorConfig) FrameLength(sampleRate int) int {
	if c.WindowSeconds <= 0 {
		return c.FFTSize
	}
	return int(math.Round(c.WindowSeconds * float64(sampleRate)))
}

// Hop returns the frame advance for a frame of frameLen samples
func (c DetectorConfig) Hop(frameLen int) int {
	if c.HopSize > 0 {
		return c.HopSize
	}
	return max(1, frameLen/2)
}

// WithNoiseFloor returns a copy of c with the floor pinned to db
func (c DetectorConfig) WithNoiseFloor(db float64) DetectorConfig {
	c.NoiseFloorDB = &db
	return c
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
