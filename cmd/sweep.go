// cmd/sweep.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/fpvdetect/internal/sweep"
)

var sweepOpts struct {
	positive    string
	negative    string
	maxPerClass int
	output      string
	bestConfig  string
	grid        sweep.Grid
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Grid-search detector parameters against labelled recordings",
	Long: `Evaluates every combination of the given parameter values on the same balanced
file subset and ranks them by accuracy, then by mean SNR of the drone class.
Parameters without a value list keep their configured value.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	f := sweepCmd.Flags()
	f.StringVar(&sweepOpts.positive, "positive", "", "directory of recordings containing drones")
	f.StringVar(&sweepOpts.negative, "negative", "", "directory of recordings without drones")
	f.IntVar(&sweepOpts.maxPerClass, "max-per-class", 50, "cap files per label for every cell (0 = no cap)")
	f.StringVarP(&sweepOpts.output, "output", "o", "", "write the ranked grid as CSV")
	f.StringVar(&sweepOpts.bestConfig, "best-config", "", "write the winning parameters as a config file")
	f.Float64SliceVar(&sweepOpts.grid.ProminenceRatios, "prominence-values", nil, "prominence ratios to try")
	f.Float64SliceVar(&sweepOpts.grid.MinBPFHz, "min-bpf-values", nil, "minimum blade-pass frequencies to try (Hz)")
	f.Float64SliceVar(&sweepOpts.grid.MaxBPFHz, "max-bpf-values", nil, "maximum blade-pass frequencies to try (Hz)")
	f.IntSliceVar(&sweepOpts.grid.NumHarmonics, "harmonics-values", nil, "harmonic series lengths to try")
	f.Float64SliceVar(&sweepOpts.grid.NoiseFloorDB, "noise-floor-values", nil, "fixed noise floors to try (dB)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	algo, err := registry.Lookup(algorithmName)
	if err != nil {
		return err
	}

	s := sweep.New(algo, sweep.WithLogger(slog.Default()), sweep.WithWorkers(settings.Workers))
	results, err := s.Run(cmd.Context(), sweepOpts.grid, settings.DetectorConfig(), sweep.Options{
		PositiveDir: sweepOpts.positive,
		NegativeDir: sweepOpts.negative,
		Seed:        settings.Seed,
		MaxPerClass: sweepOpts.maxPerClass,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSweep(out, results)

	if sweepOpts.output != "" {
		if err = writeFile(sweepOpts.output, func(w io.Writer) error {
			return sweep.WriteCSV(w, results)
		}); err != nil {
			return fmt.Errorf("write %s: %w", sweepOpts.output, err)
		}
		fmt.Fprintf(out, "Grid written to %s\n", sweepOpts.output)
	}
	if sweepOpts.bestConfig != "" {
		if err = writeFile(sweepOpts.bestConfig, func(w io.Writer) error {
			return sweep.WriteBestConfig(w, results[0].Config)
		}); err != nil {
			return fmt.Errorf("write %s: %w", sweepOpts.bestConfig, err)
		}
		fmt.Fprintf(out, "Best config written to %s\n", sweepOpts.bestConfig)
	}
	return nil
}

func printSweep(w io.Writer, results []sweep.Result) {
	fmt.Fprintln(w, "===== Parameter Sweep =====")
	fmt.Fprintf(w, "%4s %5s %10s %8s %8s %9s %8s %8s %8s\n",
		"rank", "cell", "prominence", "min_bpf", "max_bpf", "harmonics", "accuracy", "tpr", "fpr")
	for i, r := range results {
		c := r.Config
		fmt.Fprintf(w, "%4d %5d %10.2f %8.1f %8.1f %9d %7.1f%% %7.1f%% %7.1f%%\n",
			i+1, r.Index, c.ProminenceRatio, c.MinBPFHz, c.MaxBPFHz, c.NumHarmonics,
			r.Accuracy*100, r.PositiveDetectionRate*100, r.NegativeDetectionRate*100)
	}
}
