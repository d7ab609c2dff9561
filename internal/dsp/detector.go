// internal/dsp/detector.go
package dsp

import (
	"math"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
)

// Confidence scoring constants
const (
	// snrSpanDB is the SNR excess over the prominence margin that saturates confidence
	snrSpanDB = 30.0
	// loneToneWeight is the completeness factor of a fundamental with no overtones
	loneToneWeight = 0.2
	// MaxConfidence is the top of the confidence scale
	MaxConfidence = 100.0
)

// Harmonic is a verified overtone of the detected fundamental.
type Harmonic struct {
	// Order is the integer multiple of the fundamental (2 = first overtone)
	Order       int
	FrequencyHz float64
	MagnitudeDB float64
}

// Detection is the clip-level verdict of the blade-pass detector.
// FundamentalHz is nil when no candidate peak was found.
type Detection struct {
	FundamentalHz *float64
	// HarmonicCount is the number of overtones (orders 2..N) found
	HarmonicCount int
	Harmonics     []Harmonic
	// SNRDB is the fundamental's level over the noise floor, or the
	// strongest in-band excess when there is no candidate
	SNRDB        float64
	PeakDB       float64
	NoiseFloorDB float64
	// Confidence is in [0, 100]
	Confidence      float64
	IsPositive      bool
	DurationSeconds float64
	// FrameIndex is the frame the verdict came from
	FrameIndex int
}

// Fundamental returns the fundamental frequency, or 0 when none was found
func (d Detection) Fundamental() float64 {
	if d.FundamentalHz == nil {
		return 0
	}
	return *d.FundamentalHz
}

// peak is a local maximum in a dB spectrum
type peak struct {
	bin  int
	freq float64 // parabolic-interpolated frequency
	db   float64
}

// Detect scores every frame for a blade-pass fundamental with a harmonic
// series and returns the best candidate across frames.
func Detect(frames []SpectralFrame, cfg DetectorConfig) (Detection, error) {
	if len(frames) == 0 {
		return Detection{}, ErrClipTooShort
	}
	if err := cfg.Validate(); err != nil {
		return Detection{}, err
	}

	promDB := cfg.ProminenceDB()

	var best Detection
	found := false
	for idx, frame := range frames {
		threshold := frame.NoiseFloorDB + promDB
		peaks := findPeaks(frame.MagnitudesDB, frame.BinWidth(), threshold)
		tol := math.Max(cfg.HarmonicToleranceHz, frame.BinWidth())

		for _, c := range peaks {
			if c.freq < cfg.MinBPFHz || c.freq > cfg.MaxBPFHz {
				continue
			}

			harmonics := matchHarmonics(c, peaks, cfg.NumHarmonics, tol)
			snr := c.db - frame.NoiseFloorDB
			conf := Confidence(snr, promDB, len(harmonics), cfg.NumHarmonics)

			freq := c.freq
			cand := Detection{
				FundamentalHz: &freq,
				HarmonicCount: len(harmonics),
				Harmonics:     harmonics,
				SNRDB:         snr,
				PeakDB:        c.db,
				NoiseFloorDB:  frame.NoiseFloorDB,
				Confidence:    conf,
				IsPositive:    conf >= cfg.DetectionThreshold && len(harmonics) >= 1,
				FrameIndex:    idx,
			}
			if found && !better(cand, best) {
				continue
			}
			best = cand
			found = true
		}
	}

	if !found {
		return bandExcess(frames, cfg), nil
	}
	return best, nil
}

// DetectClip analyses clip and runs Detect on the resulting frames.
func DetectClip(clip *audio.Clip, cfg DetectorConfig) (Detection, error) {
	frames, err := Analyze(clip, cfg)
	if err != nil {
		return Detection{}, err
	}
	det, err := Detect(frames, cfg)
	if err != nil {
		return Detection{}, err
	}
	det.DurationSeconds = clip.Duration()
	return det, nil
}

// Confidence combines SNR and harmonic completeness into a 0-100 score.
// It is non-decreasing in both snrDB and found. A fundamental without
// overtones scores at most 20.
func Confidence(snrDB, prominenceDB float64, found, numHarmonics int) float64 {
	strength := clamp((snrDB-prominenceDB)/snrSpanDB, 0, 1)

	completeness := 0.0
	if numHarmonics > 1 {
		completeness = clamp(float64(found)/float64(numHarmonics-1), 0, 1)
	}

	return MaxConfidence * strength * (loneToneWeight + (1-loneToneWeight)*completeness)
}

// better reports whether cand beats the current best: a positive verdict
// first, then higher confidence, then lower frequency. Equal candidates
// keep the earlier frame.
func better(cand, best Detection) bool {
	if cand.IsPositive != best.IsPositive {
		return cand.IsPositive
	}
	if cand.Confidence != best.Confidence {
		return cand.Confidence > best.Confidence
	}
	return *cand.FundamentalHz < *best.FundamentalHz
}

// findPeaks returns local maxima above threshold with interpolated frequencies
func findPeaks(db []float64, binWidth, threshold float64) []peak {
	var peaks []peak
	for i := 1; i < len(db)-1; i++ {
		if db[i] <= threshold || db[i] <= db[i-1] || db[i] < db[i+1] {
			continue
		}
		offset := parabolicOffset(db[i-1], db[i], db[i+1])
		peaks = append(peaks, peak{
			bin:  i,
			freq: (float64(i) + offset) * binWidth,
			db:   db[i],
		})
	}
	return peaks
}

// parabolicOffset returns the vertex offset, in bins, of the parabola
// through three neighbouring values.
func parabolicOffset(alpha, beta, gamma float64) float64 {
	denom := alpha - 2*beta + gamma
	if denom == 0 {
		return 0
	}
	return clamp(0.5*(alpha-gamma)/denom, -0.5, 0.5)
}

// matchHarmonics finds, for h = 2..n, the strongest peak within tol of h*f0
func matchHarmonics(fundamental peak, peaks []peak, n int, tol float64) []Harmonic {
	var out []Harmonic
	for h := 2; h <= n; h++ {
		target := float64(h) * fundamental.freq
		match := -1
		for i, p := range peaks {
			if p.bin == fundamental.bin || math.Abs(p.freq-target) > tol {
				continue
			}
			if match < 0 || p.db > peaks[match].db {
				match = i
			}
		}
		if match >= 0 {
			out = append(out, Harmonic{Order: h, FrequencyHz: peaks[match].freq, MagnitudeDB: peaks[match].db})
		}
	}
	return out
}

// bandExcess builds the negative result: the strongest in-band level over
// the floor across all frames, never below zero.
func bandExcess(frames []SpectralFrame, cfg DetectorConfig) Detection {
	det := Detection{
		NoiseFloorDB: frames[0].NoiseFloorDB,
		PeakDB:       frames[0].NoiseFloorDB,
	}
	for idx, frame := range frames {
		for k, f := range frame.Frequencies {
			if f < cfg.MinBPFHz || f > cfg.MaxBPFHz {
				continue
			}
			excess := frame.MagnitudesDB[k] - frame.NoiseFloorDB
			if excess > det.SNRDB {
				det.SNRDB = excess
				det.PeakDB = frame.MagnitudesDB[k]
				det.NoiseFloorDB = frame.NoiseFloorDB
				det.FrameIndex = idx
			}
		}
	}
	return det
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
