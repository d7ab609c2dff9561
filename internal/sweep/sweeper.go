// internal/sweep/sweeper.go
package sweep

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/eval"
)

// Options selects the corpus shared by every cell
type Options struct {
	PositiveDir string
	NegativeDir string
	Seed        uint64
	// MaxPerClass caps each label so cells stay cheap (0 = no cap)
	MaxPerClass int
}

// Result is the score of one grid cell.
type Result struct {
	// Index is the cell's position in Grid.Configs order
	Index                  int
	Config                 dsp.DetectorConfig
	Accuracy               float64
	MeanSNRDB              float64
	PositiveDetectionRate  float64
	NegativeDetectionRate  float64
	PositiveMeanConfidence float64
	NegativeMeanConfidence float64
	PositiveMeanSNRDB      float64
	Evaluated              int
	Errors                 int
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithLogger sets the logger (default slog.Default())
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers bounds concurrent files within a cell; n <= 0 means GOMAXPROCS
func WithWorkers(n int) Option {
	return func(s *Sweeper) {
		s.workers = n
	}
}

// WithSource sets the loader behind the shared clip cache (default audio.FileLoader)
func WithSource(l audio.Loader) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.source = l
		}
	}
}

// Sweeper scores every cell of a Grid with one detector.
type Sweeper struct {
	detector eval.Detector
	source   audio.Loader
	logger   *slog.Logger
	workers  int
}

// New creates a Sweeper for detector
func New(detector eval.Detector, opts ...Option) *Sweeper {
	s := &Sweeper{
		detector: detector,
		source:   audio.FileLoader{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates every cell of grid over base and returns the results best
// first. Every cell sees the same balanced file subset, and each file is
// decoded once for the whole sweep.
func (s *Sweeper) Run(ctx context.Context, grid Grid, base dsp.DetectorConfig, opts Options) ([]Result, error) {
	configs, err := grid.Configs(base)
	if err != nil {
		return nil, err
	}

	loader := audio.NewCachedLoader(s.source)
	defer loader.Flush()

	ev := eval.New(s.detector,
		eval.WithLoader(loader),
		eval.WithLogger(s.logger),
		eval.WithWorkers(s.workers))

	start := time.Now()
	s.logger.Info("sweep started", "cells", len(configs), "seed", opts.Seed, "max_per_class", opts.MaxPerClass)

	results := make([]Result, 0, len(configs))
	for i, cfg := range configs {
		res, err := ev.Evaluate(ctx, eval.Options{
			PositiveDir: opts.PositiveDir,
			NegativeDir: opts.NegativeDir,
			Config:      cfg,
			MaxPerClass: opts.MaxPerClass,
			Seed:        opts.Seed,
		})
		if err != nil {
			return nil, fmt.Errorf("sweep cell %d: %w", i, err)
		}
		r := newResult(i, cfg, res.Summary)
		s.logger.Debug("sweep cell scored",
			"cell", i,
			"prominence_ratio", cfg.ProminenceRatio,
			"num_harmonics", cfg.NumHarmonics,
			"accuracy", r.Accuracy)
		results = append(results, r)
	}

	Rank(results)
	s.logger.Info("sweep finished",
		"cells", len(results),
		"best_accuracy", results[0].Accuracy,
		"clips_cached", loader.Len(),
		"elapsed", time.Since(start))
	return results, nil
}

func newResult(index int, cfg dsp.DetectorConfig, sum eval.Summary) Result {
	pos := sum.Class(eval.LabelDrone)
	neg := sum.Class(eval.LabelNoDrone)
	return Result{
		Index:                  index,
		Config:                 cfg,
		Accuracy:               sum.Accuracy,
		MeanSNRDB:              sum.MeanSNRDB,
		PositiveDetectionRate:  pos.DetectionRate,
		NegativeDetectionRate:  neg.DetectionRate,
		PositiveMeanConfidence: pos.MeanConfidence,
		NegativeMeanConfidence: neg.MeanConfidence,
		PositiveMeanSNRDB:      pos.MeanSNRDB,
		Evaluated:              sum.Evaluated,
		Errors:                 sum.Errors,
	}
}

// Rank sorts results by accuracy, then positive-class mean SNR, both
// descending, then by grid index.
func Rank(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Or(
			cmp.Compare(b.Accuracy, a.Accuracy),
			cmp.Compare(b.PositiveMeanSNRDB, a.PositiveMeanSNRDB),
			cmp.Compare(a.Index, b.Index),
		)
	})
}
