// internal/dsp/spectrum_test.go
package dsp

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
)

func sineClip(t *testing.T, freq, amp float64, rate, n int) *audio.Clip {
	t.Helper()
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	clip, err := audio.NewClip(samples, rate)
	require.NoError(t, err)
	return clip
}

func TestMakeWindow(t *testing.T) {
	for _, name := range WindowNames() {
		w, err := makeWindow(name, 64)
		require.NoError(t, err, name)
		require.Len(t, w, 64)
		for _, v := range w {
			assert.LessOrEqual(t, v, 1.0+1e-12, name)
			assert.GreaterOrEqual(t, v, -1e-12, name)
		}
	}

	hann, err := makeWindow(WindowHann, 8)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, hann[0], 1e-12)
	assert.InDelta(t, 1.0, hann[4], 1e-12)
	assert.InDelta(t, 0.5, coherentGain(hann), 1e-12)

	_, err = makeWindow("kaiser", 8)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMakeWindow_PeriodicLibraryWindows(t *testing.T) {
	require.Len(t, windowTypes, len(WindowNames()))

	for _, name := range WindowNames() {
		w, err := makeWindow(name, 256)
		require.NoError(t, err, name)
		assert.Equal(t, window.Generate(windowTypes[name], 256, window.WithPeriodic()), w, name)
		// periodic: the sample after the last one would repeat w[0]
		assert.InDelta(t, w[1], w[255], 1e-12, name)
	}

	rect, err := makeWindow(WindowRectangular, 16)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, coherentGain(rect), 1e-12)
}

func TestAnalyze_SineLevelAndFrames(t *testing.T) {
	// 8192 Hz / 1024 = 8 Hz bins, so 1000 Hz is bin 125
	const rate, n = 8192, 4096

	for _, name := range WindowNames() {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultDetectorConfig()
			cfg.FFTSize = 1024
			cfg.HopSize = 512
			cfg.Window = name

			frames, err := Analyze(sineClip(t, 1000, 0.5, rate, n), cfg)
			require.NoError(t, err)
			require.Len(t, frames, 7)

			for i, frame := range frames {
				assert.Equal(t, i*512, frame.StartSample)
				require.Len(t, frame.MagnitudesDB, 513)
				assert.InDelta(t, 8.0, frame.BinWidth(), 1e-12)
				assert.InDelta(t, 1000.0, frame.Frequencies[125], 1e-9)
				assert.InDelta(t, 20*math.Log10(0.5), frame.MagnitudesDB[125], 0.01)
				assert.Less(t, frame.NoiseFloorDB, frame.MagnitudesDB[125]-40)
			}
		})
	}
}

func TestAnalyze_ZeroPadsShortWindow(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.FFTSize = 2048
	cfg.WindowSeconds = 0.125 // 1024 samples at 8192 Hz
	cfg.HopSize = 0

	frames, err := Analyze(sineClip(t, 1000, 0.5, 8192, 4096), cfg)
	require.NoError(t, err)
	assert.Len(t, frames, 7)
	assert.Len(t, frames[0].MagnitudesDB, 1025)
	assert.InDelta(t, 4.0, frames[0].BinWidth(), 1e-12)
	assert.InDelta(t, 20*math.Log10(0.5), frames[0].MagnitudesDB[250], 0.01)
}

func TestAnalyze_Silence(t *testing.T) {
	clip, err := audio.NewClip(make([]float64, 8192), 16000)
	require.NoError(t, err)

	frames, err := Analyze(clip, DefaultDetectorConfig())
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	for _, frame := range frames {
		assert.Equal(t, FloorDB, frame.NoiseFloorDB)
		for _, db := range frame.MagnitudesDB {
			assert.Equal(t, FloorDB, db)
		}
	}
}

func TestAnalyze_NoiseFloorOverride(t *testing.T) {
	cfg := DefaultDetectorConfig().WithNoiseFloor(-72)

	frames, err := Analyze(sineClip(t, 440, 0.3, 16000, 8192), cfg)
	require.NoError(t, err)
	for _, frame := range frames {
		assert.Equal(t, -72.0, frame.NoiseFloorDB)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := Analyze(sineClip(t, 440, 0.3, 16000, 1000), DefaultDetectorConfig())
		assert.ErrorIs(t, err, ErrClipTooShort)
	})

	t.Run("window longer than fft", func(t *testing.T) {
		cfg := DefaultDetectorConfig()
		cfg.WindowSeconds = 1
		_, err := Analyze(sineClip(t, 440, 0.3, 16000, 32000), cfg)
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "window_seconds")
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultDetectorConfig()
		cfg.MinBPFHz = 3000
		_, err := Analyze(sineClip(t, 440, 0.3, 16000, 8192), cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil clip", func(t *testing.T) {
		_, err := Analyze(nil, DefaultDetectorConfig())
		assert.ErrorIs(t, err, audio.ErrEmptyAudio)
	})
}

func TestNoiseFloor_WholeSpectrumFallback(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.MinBPFHz = 0
	cfg.MaxBPFHz = 1000

	freqs := []float64{0, 100, 200, 300, 400}
	db := []float64{0, -10, -20, -30, -40}
	assert.Equal(t, -25.0, noiseFloor(db, freqs, cfg))

	cfg.MaxBPFHz = 250
	assert.Equal(t, -35.0, noiseFloor(db, freqs, cfg))
}
