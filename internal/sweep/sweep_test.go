package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/eval"
	"github.com/ColonelBlimp/fpvdetect/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeCorpus(t *testing.T, nPos, nNeg int) (posDir, negDir string) {
	t.Helper()
	root := t.TempDir()
	posDir = filepath.Join(root, "drone")
	negDir = filepath.Join(root, "ambient")

	for i := range nPos {
		clip, err := audio.Synthesize(audio.SynthConfig{
			RPM:             4500 + float64(i)*400,
			Blades:          2 + i%3,
			DurationSeconds: 1.5,
			SampleRate:      16000,
			SNRDB:           10,
			Seed:            uint64(i + 1),
		})
		require.NoError(t, err)
		require.NoError(t, audio.WriteWAV(filepath.Join(posDir, fmt.Sprintf("rotor_%02d.wav", i)), clip))
	}
	for i := range nNeg {
		clip, err := audio.WhiteNoise(1.5, 16000, 0.1, uint64(500+i))
		require.NoError(t, err)
		require.NoError(t, audio.WriteWAV(filepath.Join(negDir, fmt.Sprintf("noise_%02d.wav", i)), clip))
	}
	return posDir, negDir
}

// countingLoader counts decodes that reach the filesystem
type countingLoader struct {
	calls atomic.Int32
}

func (l *countingLoader) Load(path string) (*audio.Clip, error) {
	l.calls.Add(1)
	return audio.Load(path)
}

func TestGridConfigs(t *testing.T) {
	base := dsp.DefaultDetectorConfig()
	grid := Grid{
		ProminenceRatios: []float64{2, 4},
		NumHarmonics:     []int{2, 3},
		NoiseFloorDB:     []float64{-60},
	}
	assert.Equal(t, 4, grid.Size())

	cells, err := grid.Configs(base)
	require.NoError(t, err)
	require.Len(t, cells, 4)

	want := []struct {
		prominence float64
		harmonics  int
	}{{2, 2}, {2, 3}, {4, 2}, {4, 3}}
	for i, w := range want {
		assert.Equal(t, w.prominence, cells[i].ProminenceRatio, "cell %d", i)
		assert.Equal(t, w.harmonics, cells[i].NumHarmonics, "cell %d", i)
		assert.Equal(t, base.MinBPFHz, cells[i].MinBPFHz)
		require.NotNil(t, cells[i].NoiseFloorDB)
		assert.Equal(t, -60.0, *cells[i].NoiseFloorDB)
	}
	assert.Nil(t, base.NoiseFloorDB)
}

func TestGridConfigs_EmptyGridIsBase(t *testing.T) {
	base := dsp.DefaultDetectorConfig()
	cells, err := Grid{}.Configs(base)
	require.NoError(t, err)
	assert.Equal(t, []dsp.DetectorConfig{base}, cells)
	assert.Equal(t, 1, Grid{}.Size())
}

func TestGridConfigs_InvalidCell(t *testing.T) {
	grid := Grid{
		MinBPFHz: []float64{40, 3000},
		MaxBPFHz: []float64{2500},
	}
	_, err := grid.Configs(dsp.DefaultDetectorConfig())
	require.ErrorIs(t, err, dsp.ErrInvalidConfig)
	assert.ErrorContains(t, err, "sweep cell 1")
	assert.ErrorContains(t, err, "max_bpf_hz")
}

func TestRun_TwoByTwo(t *testing.T) {
	pos, neg := writeCorpus(t, 6, 6)
	source := &countingLoader{}
	s := New(eval.DetectorFunc(dsp.DetectClip),
		WithLogger(logging.Discard()),
		WithWorkers(4),
		WithSource(source))

	results, err := s.Run(context.Background(), Grid{
		ProminenceRatios: []float64{2, 4},
		NumHarmonics:     []int{2, 3},
	}, dsp.DefaultDetectorConfig(), Options{
		PositiveDir: pos,
		NegativeDir: neg,
		Seed:        42,
		MaxPerClass: 5,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	indices := map[int]bool{}
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Accuracy, 0.0)
		assert.LessOrEqual(t, r.Accuracy, 1.0)
		assert.Equal(t, 10, r.Evaluated)
		assert.Zero(t, r.Errors)
		indices[r.Index] = true
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Accuracy, r.Accuracy)
		}
	}
	assert.Len(t, indices, 4)

	// every cell saw the same ten files, decoded once
	assert.EqualValues(t, 10, source.calls.Load())
}

func TestRun_InvalidCellStopsBeforeEvaluating(t *testing.T) {
	source := &countingLoader{}
	s := New(eval.DetectorFunc(dsp.DetectClip), WithLogger(logging.Discard()), WithSource(source))

	_, err := s.Run(context.Background(), Grid{NumHarmonics: []int{2, 0}},
		dsp.DefaultDetectorConfig(), Options{PositiveDir: t.TempDir()})
	require.ErrorIs(t, err, dsp.ErrInvalidConfig)
	assert.Zero(t, source.calls.Load())
}

func TestRun_Cancelled(t *testing.T) {
	pos, neg := writeCorpus(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(eval.DetectorFunc(dsp.DetectClip), WithLogger(logging.Discard()))
	_, err := s.Run(ctx, Grid{}, dsp.DefaultDetectorConfig(), Options{PositiveDir: pos, NegativeDir: neg})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "sweep cell 0")
}

func TestRank(t *testing.T) {
	results := []Result{
		{Index: 0, Accuracy: 0.5, PositiveMeanSNRDB: 30},
		{Index: 1, Accuracy: 0.9, PositiveMeanSNRDB: 10},
		{Index: 2, Accuracy: 0.9, PositiveMeanSNRDB: 20},
		{Index: 3, Accuracy: 0.5, PositiveMeanSNRDB: 30},
	}
	Rank(results)

	var order []int
	for _, r := range results {
		order = append(order, r.Index)
	}
	assert.Equal(t, []int{2, 1, 0, 3}, order)
}

func TestWriteCSV(t *testing.T) {
	floor := -55.5
	cfg := dsp.DefaultDetectorConfig()
	results := []Result{
		{Index: 3, Config: cfg.WithNoiseFloor(floor), Accuracy: 0.95, Evaluated: 20},
		{Index: 0, Config: cfg, Accuracy: 0.5, Errors: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])

	assert.Equal(t, []string{"1", "3", "4096", "2048", "0", "hann", "4", "40", "2500", "6", "15", "-55.5", "50",
		"0.95", "0", "0", "0", "0", "0", "0", "20", "0"}, records[1])
	assert.Equal(t, "2", records[2][0])
	assert.Empty(t, records[2][11])
}

func TestWriteBestConfig(t *testing.T) {
	cfg := dsp.DefaultDetectorConfig()
	cfg.ProminenceRatio = 2.5

	var buf bytes.Buffer
	require.NoError(t, WriteBestConfig(&buf, cfg))
	assert.Contains(t, buf.String(), "prominence_ratio: 2.5")
	assert.NotContains(t, buf.String(), "noise_floor_db")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 10)
	assert.Equal(t, 4096, got["fft_size"])
	assert.Equal(t, "hann", got["window"])

	buf.Reset()
	require.NoError(t, WriteBestConfig(&buf, cfg.WithNoiseFloor(-70)))
	var pinned fileConfig
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &pinned))
	require.NotNil(t, pinned.NoiseFloorDB)
	assert.Equal(t, -70.0, *pinned.NoiseFloorDB)
}
