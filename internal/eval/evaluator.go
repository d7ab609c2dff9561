// internal/eval/evaluator.go

// Package eval runs the detector over labelled recordings and scores it.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/recovery"
)

// Detector scores one clip. pipeline.Algorithm satisfies it.
type Detector interface {
	Detect(clip *audio.Clip, cfg dsp.DetectorConfig) (dsp.Detection, error)
}

// DetectorFunc adapts a function to Detector
type DetectorFunc func(clip *audio.Clip, cfg dsp.DetectorConfig) (dsp.Detection, error)

// Detect implements Detector
func (f DetectorFunc) Detect(clip *audio.Clip, cfg dsp.DetectorConfig) (dsp.Detection, error) {
	return f(clip, cfg)
}

// Options selects the corpus and parameters for one run.
type Options struct {
	PositiveDir string
	NegativeDir string
	Config      dsp.DetectorConfig
	// MaxFiles truncates the balanced order (0 = all)
	MaxFiles int
	// MaxPerClass caps each label before interleaving (0 = no cap)
	MaxPerClass int
	Seed        uint64
}

// Row is the outcome for one file.
type Row struct {
	Path      string
	Label     string
	Expected  bool
	Meta      *FileMeta
	Detection dsp.Detection
	Correct   bool
	// Err is set when the file could not be decoded or analysed;
	// such rows are excluded from accuracy.
	Err error
}

// Result is a complete evaluation run.
type Result struct {
	RunID    string
	Seed     uint64
	Config   dsp.DetectorConfig
	Rows     []Row
	Summary  Summary
	Started  time.Time
	Duration time.Duration
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithLoader sets the clip loader (default audio.FileLoader)
func WithLoader(l audio.Loader) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.loader = l
		}
	}
}

// WithLogger sets the logger (default slog.Default())
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds concurrent files; n <= 0 means GOMAXPROCS
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		e.workers = n
	}
}

// Evaluator runs a Detector over a labelled corpus.
// It holds no per-run state and may be reused across runs.
type Evaluator struct {
	detector Detector
	loader   audio.Loader
	logger   *slog.Logger
	workers  int
}

// New creates an Evaluator for detector.
func New(detector Detector, opts ...Option) *Evaluator {
	e := &Evaluator{
		detector: detector,
		loader:   audio.FileLoader{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// Evaluate discovers the corpus, orders it, runs every file through the
// detector and aggregates the verdicts. Per-file failures become row errors;
// only an invalid config, a missing directory or cancellation fail the run.
func (e *Evaluator) Evaluate(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	samples, err := Discover(opts.PositiveDir, opts.NegativeDir)
	if err != nil {
		return nil, err
	}
	order := BalancedOrder(samples, opts.Seed, opts.MaxPerClass)
	if opts.MaxFiles > 0 && len(order) > opts.MaxFiles {
		order = order[:opts.MaxFiles]
	}

	res := &Result{
		RunID:   uuid.NewString(),
		Seed:    opts.Seed,
		Config:  opts.Config,
		Rows:    make([]Row, len(order)),
		Started: time.Now(),
	}
	log := e.logger.With("run_id", res.RunID)
	log.Info("evaluation started", "files", len(order), "workers", e.workers, "seed", opts.Seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, s := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Rows[i] = e.evaluateFile(s, opts.Config, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	res.Summary = Summarize(res.Rows)
	res.Duration = time.Since(res.Started)
	log.Info("evaluation finished",
		"evaluated", res.Summary.Evaluated,
		"errors", res.Summary.Errors,
		"accuracy", res.Summary.Accuracy,
		"elapsed", res.Duration)
	return res, nil
}

func (e *Evaluator) evaluateFile(s Sample, cfg dsp.DetectorConfig, log *slog.Logger) Row {
	row := Row{
		Path:     s.Path,
		Label:    s.Label,
		Expected: s.Label == LabelDrone,
		Meta:     s.Meta,
	}

	err := recovery.Capture(func() error {
		clip, err := e.loader.Load(s.Path)
		if err != nil {
			return err
		}
		det, err := e.detector.Detect(clip, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Path, err)
		}
		row.Detection = det
		return nil
	})
	if err != nil {
		log.Warn("file skipped", "path", s.Path, "error", err)
		row.Err = err
		return row
	}

	row.Correct = row.Detection.IsPositive == row.Expected
	log.Debug("file evaluated",
		"path", s.Path,
		"label", s.Label,
		"fundamental_hz", row.Detection.Fundamental(),
		"confidence", row.Detection.Confidence,
		"positive", row.Detection.IsPositive)
	return row
}
