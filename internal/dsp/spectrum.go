// internal/dsp/spectrum.go
package dsp

import (
	"errors"
	"fmt"
	"math"
	"slices"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
)

// FloorDB is the lowest magnitude reported; silence clamps here instead of -Inf
const FloorDB = -160.0

// ErrClipTooShort indicates the clip cannot fill a single analysis frame
var ErrClipTooShort = errors.New("clip shorter than one analysis frame")

// SpectralFrame is the one-sided magnitude spectrum of one analysis frame.
// Frequencies is shared by every frame of an analysis and must not be modified.
type SpectralFrame struct {
	Frequencies  []float64
	MagnitudesDB []float64
	NoiseFloorDB float64
	StartSample  int
}

// BinWidth returns the spacing between adjacent bins in Hz
func (f SpectralFrame) BinWidth() float64 {
	if len(f.Frequencies) < 2 {
		return 0
	}
	return f.Frequencies[1] - f.Frequencies[0]
}

// Analyze splits clip into overlapping windowed frames and returns their
// dB spectra. Magnitudes are scaled so a full-scale sine reads 0 dB.
func Analyze(clip *audio.Clip, cfg DetectorConfig) ([]SpectralFrame, error) {
	if clip == nil {
		return nil, audio.ErrEmptyAudio
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rate := clip.SampleRate()
	frameLen := cfg.FrameLength(rate)
	if frameLen < 2 {
		return nil, &ConfigError{Field: "window_seconds", Value: cfg.WindowSeconds, Reason: "frame must span at least two samples"}
	}
	if frameLen > cfg.FFTSize {
		return nil, &ConfigError{
			Field:  "window_seconds",
			Value:  cfg.WindowSeconds,
			Reason: fmt.Sprintf("%d samples exceed fft_size %d", frameLen, cfg.FFTSize),
		}
	}
	if clip.Len() < frameLen {
		return nil, fmt.Errorf("%w: %d samples, frame needs %d", ErrClipTooShort, clip.Len(), frameLen)
	}

	win, err := makeWindow(cfg.Window, frameLen)
	if err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}

	bins := cfg.FFTSize/2 + 1
	freqs := make([]float64, bins)
	binWidth := float64(rate) / float64(cfg.FFTSize)
	for k := range freqs {
		freqs[k] = float64(k) * binWidth
	}

	// |X| of a windowed sine of amplitude A is A*sum(w)/2
	scale := 2 / (float64(frameLen) * coherentGain(win))

	hop := cfg.Hop(frameLen)
	frameBuf := make([]float64, frameLen)
	in := make([]complex128, cfg.FFTSize)
	out := make([]complex128, cfg.FFTSize)
	re := make([]float64, bins)
	im := make([]float64, bins)
	mags := make([]float64, bins)

	frames := make([]SpectralFrame, 0, (clip.Len()-frameLen)/hop+1)
	for start := 0; start+frameLen <= clip.Len(); start += hop {
		clip.CopyTo(frameBuf, start)
		vecmath.MulBlockInPlace(frameBuf, win)

		clear(in)
		for i, v := range frameBuf {
			in[i] = complex(v, 0)
		}
		if err := plan.Forward(out, in); err != nil {
			return nil, fmt.Errorf("fft frame at sample %d: %w", start, err)
		}

		for k := range bins {
			re[k] = real(out[k])
			im[k] = imag(out[k])
		}
		vecmath.Magnitude(mags, re, im)

		db := make([]float64, bins)
		for k, m := range mags {
			db[k] = toDB(m * scale)
		}

		frames = append(frames, SpectralFrame{
			Frequencies:  freqs,
			MagnitudesDB: db,
			NoiseFloorDB: noiseFloor(db, freqs, cfg),
			StartSample:  start,
		})
	}

	return frames, nil
}

// noiseFloor returns the median level of bins outside the BPF search band.
// DC is ignored. If the band covers every bin the whole spectrum is used.
func noiseFloor(db, freqs []float64, cfg DetectorConfig) float64 {
	if cfg.NoiseFloorDB != nil {
		return *cfg.NoiseFloorDB
	}

	outside := make([]float64, 0, len(db))
	for k := 1; k < len(db); k++ {
		if freqs[k] < cfg.MinBPFHz || freqs[k] > cfg.MaxBPFHz {
			outside = append(outside, db[k])
		}
	}
	if len(outside) == 0 {
		outside = append(outside, db[1:]...)
	}
	return median(outside)
}

// median sorts values in place
func median(values []float64) float64 {
	if len(values) == 0 {
		return FloorDB
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func toDB(mag float64) float64 {
	if mag <= 0 {
		return FloorDB
	}
	return math.Max(FloorDB, 20*math.Log10(mag))
}
