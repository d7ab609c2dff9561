// internal/audio/synth.go
package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Synthesizer defaults
const (
	DefaultSynthHarmonics = 8
	DefaultHarmonicDecay  = 1.0

	// fundamentalAmplitude leaves headroom for the harmonic stack before rescaling
	fundamentalAmplitude = 0.5
	// maxPeak is the ceiling applied when the mixed waveform would clip
	maxPeak = 0.99
)

var (
	// ErrInvalidRPM indicates rpm must be positive
	ErrInvalidRPM = errors.New("rpm must be positive")
	// ErrInvalidBlades indicates blade count must be at least 1
	ErrInvalidBlades = errors.New("blade count must be at least 1")
	// ErrInvalidDuration indicates duration must produce at least one sample
	ErrInvalidDuration = errors.New("duration must be positive")
	// ErrAboveNyquist indicates the blade-pass frequency cannot be represented
	ErrAboveNyquist = errors.New("blade-pass frequency must be below Nyquist")
	// ErrInvalidNoiseLevel indicates noise rms must be positive and finite
	ErrInvalidNoiseLevel = errors.New("noise rms must be positive")
)

// SynthConfig describes a synthetic rotor recording.
type SynthConfig struct {
	RPM             float64
	Blades          int
	DurationSeconds float64
	SampleRate      int
	// SNRDB is the fundamental's RMS level above the broadband noise RMS
	SNRDB float64
	// Harmonics is the number of integer multiples including the fundamental (0 = DefaultSynthHarmonics)
	Harmonics int
	// Decay sets harmonic amplitude to 1/k^Decay (<= 0 = DefaultHarmonicDecay)
	Decay float64
	// Seed drives the noise generator; equal seeds give identical noise
	Seed uint64
}

// Synthesize renders a rotor signature: a fundamental at rpm/60*blades, a
// decaying harmonic series and Gaussian noise scaled to the requested SNR.
func Synthesize(cfg SynthConfig) (*Clip, error) {
	if cfg.RPM <= 0 || math.IsNaN(cfg.RPM) || math.IsInf(cfg.RPM, 0) {
		return nil, ErrInvalidRPM
	}
	if cfg.Blades < 1 {
		return nil, ErrInvalidBlades
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	count := sampleCount(cfg.DurationSeconds, cfg.SampleRate)
	if count == 0 {
		return nil, ErrInvalidDuration
	}

	fundamental := BladePassFrequency(cfg.RPM, cfg.Blades)
	nyquist := float64(cfg.SampleRate) / 2
	if fundamental >= nyquist {
		return nil, fmt.Errorf("%w: %.1f Hz >= %.1f Hz", ErrAboveNyquist, fundamental, nyquist)
	}

	harmonics := cfg.Harmonics
	if harmonics <= 0 {
		harmonics = DefaultSynthHarmonics
	}
	decay := cfg.Decay
	if decay <= 0 {
		decay = DefaultHarmonicDecay
	}

	samples := make([]float64, count)
	rate := float64(cfg.SampleRate)
	for k := 1; k <= harmonics; k++ {
		freq := fundamental * float64(k)
		if freq >= nyquist {
			break
		}
		amp := fundamentalAmplitude / math.Pow(float64(k), decay)
		omega := 2 * math.Pi * freq / rate
		for i := range samples {
			samples[i] += amp * math.Sin(omega*float64(i))
		}
	}

	noiseRMS := (fundamentalAmplitude / math.Sqrt2) / math.Pow(10, cfg.SNRDB/20)
	rng := newRand(cfg.Seed)
	for i := range samples {
		samples[i] += noiseRMS * rng.NormFloat64()
	}

	normalize(samples)
	return NewClip(samples, cfg.SampleRate)
}

// WhiteNoise renders Gaussian noise with the given RMS, used as a no-drone control.
func WhiteNoise(durationSeconds float64, sampleRate int, rms float64, seed uint64) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if rms <= 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
		return nil, ErrInvalidNoiseLevel
	}
	count := sampleCount(durationSeconds, sampleRate)
	if count == 0 {
		return nil, ErrInvalidDuration
	}

	rng := newRand(seed)
	samples := make([]float64, count)
	for i := range samples {
		samples[i] = rms * rng.NormFloat64()
	}
	normalize(samples)
	return NewClip(samples, sampleRate)
}

func sampleCount(durationSeconds float64, sampleRate int) int {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return 0
	}
	return int(durationSeconds * float64(sampleRate))
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// normalize rescales in place when the peak would clip; SNR is unaffected
func normalize(samples []float64) {
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak <= maxPeak {
		return
	}
	scale := maxPeak / peak
	for i := range samples {
		samples[i] *= scale
	}
}
