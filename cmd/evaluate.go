// cmd/evaluate.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/fpvdetect/internal/eval"
)

// Report formats for --format
const (
	formatCSV  = "csv"
	formatJSON = "json"
)

var evalOpts struct {
	positive    string
	negative    string
	maxFiles    int
	maxPerClass int
	output      string
	format      string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the detector against labelled drone and background recordings",
	Long: `Walks the positive (drone) and negative (no drone) directories for WAV files,
runs the detector over a balanced, seeded ordering of them and prints per-class
statistics. --output saves every row as CSV or JSON.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalOpts.positive, "positive", "", "directory of recordings containing drones")
	f.StringVar(&evalOpts.negative, "negative", "", "directory of recordings without drones")
	f.IntVar(&evalOpts.maxFiles, "max-files", 0, "stop after this many files (0 = all)")
	f.IntVar(&evalOpts.maxPerClass, "max-per-class", 0, "cap files per label before interleaving (0 = no cap)")
	f.StringVarP(&evalOpts.output, "output", "o", "", "write per-file rows to this file")
	f.StringVar(&evalOpts.format, "format", "", "output format: csv or json (default from --output extension)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := reportFormat(evalOpts.output, evalOpts.format)
	if err != nil {
		return err
	}
	algo, err := registry.Lookup(algorithmName)
	if err != nil {
		return err
	}

	ev := eval.New(algo, eval.WithLogger(slog.Default()), eval.WithWorkers(settings.Workers))
	res, err := ev.Evaluate(cmd.Context(), eval.Options{
		PositiveDir: evalOpts.positive,
		NegativeDir: evalOpts.negative,
		Config:      settings.DetectorConfig(),
		MaxFiles:    evalOpts.maxFiles,
		MaxPerClass: evalOpts.maxPerClass,
		Seed:        settings.Seed,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	eval.PrintSummary(out, res)
	for _, row := range res.Rows {
		if row.Err != nil {
			fmt.Fprintf(out, "warning: %s skipped: %v\n", row.Path, row.Err)
		}
	}

	if evalOpts.output == "" {
		return nil
	}
	err = writeFile(evalOpts.output, func(w io.Writer) error {
		if format == formatJSON {
			return eval.WriteJSON(w, res)
		}
		return eval.WriteCSV(w, res.Rows)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", evalOpts.output, err)
	}
	fmt.Fprintf(out, "Results written to %s\n", evalOpts.output)
	return nil
}

// reportFormat resolves --format, falling back to the output file extension
func reportFormat(output, format string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(output), ".json") {
			return formatJSON, nil
		}
		return formatCSV, nil
	}
	switch f := strings.ToLower(format); f {
	case formatCSV, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("--format must be csv or json, got %q", format)
	}
}
