// cmd/analyze.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/observation"
)

var (
	writeReport bool
	mgrsRef     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file.wav]",
	Short: "Analyze a recording, or a simulated rotor when no file is given",
	Long: `Runs the detector over one WAV file and prints the acoustic report and the
observation record. Without a file a rotor is synthesized from --rpm and --blades.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.Float64("rpm", 4800, "rotor speed for simulation")
	f.Int("blades", 4, "blade count for simulation")
	f.Float64("radius", 0.0635, "propeller radius in metres for simulation")
	f.Float64("duration", 2.5, "simulated duration in seconds")
	f.Int("sample-rate", 44100, "simulated sample rate in Hz")
	f.Float64("snr", 20, "simulated signal-to-noise ratio in dB")
	f.BoolVarP(&writeReport, "report", "r", false, "write the text report and observation JSON to --report-dir")
	f.String("report-dir", "processed", "directory for --report output")
	f.StringVar(&mgrsRef, "mgrs", observation.UnknownLocation, "MGRS grid reference of the sensor")
	f.String("sensor-id", "AcousticBPF-Pipeline", "sensor identifier for the observation")
	f.String("observer", "AcousticBPF", "observer signature for the observation")
	f.String("unit", "Alpha Company", "reporting unit for the observation")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	algo, err := registry.Lookup(algorithmName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	clip, source, err := loadOrSimulate(out, args)
	if err != nil {
		return err
	}

	det, err := algo.Detect(clip, settings.DetectorConfig())
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	slog.Debug("clip analysed",
		"source", source,
		"algorithm", algo.Name(),
		"fundamental_hz", det.Fundamental(),
		"harmonics", det.HarmonicCount,
		"confidence", det.Confidence)

	rec, err := observation.NewBuilder(observation.WithNarrative()).Build(det, observation.Metadata{
		MGRS:              mgrsRef,
		SensorID:          settings.SensorID,
		Unit:              settings.Unit,
		ObserverSignature: settings.ObserverSignature,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Acoustic Drone Detection ===")
	if err = observation.WriteReport(out, rec, det, source); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err = observation.WriteRecords(out, rec); err != nil {
		return err
	}

	if writeReport {
		return saveReport(out, settings.ReportDir, rec, det, source)
	}
	return nil
}

// loadOrSimulate decodes args[0], or synthesizes the configured rotor and
// prints the harmonic series the detector should find.
func loadOrSimulate(out io.Writer, args []string) (*audio.Clip, string, error) {
	if len(args) == 1 {
		clip, err := audio.Load(args[0])
		return clip, args[0], err
	}

	rotor := audio.Rotor{RPM: settings.DefaultRPM, Blades: settings.DefaultBlades, RadiusM: settings.RotorRadiusM}
	clip, err := audio.Synthesize(audio.SynthConfig{
		RPM:             rotor.RPM,
		Blades:          rotor.Blades,
		DurationSeconds: settings.SimulationDuration,
		SampleRate:      settings.SimulationSampleRate,
		SNRDB:           settings.SimulationSNRDB,
		Seed:            settings.Seed,
	})
	if err != nil {
		return nil, "", fmt.Errorf("simulate rotor: %w", err)
	}
	slog.Info("simulated rotor",
		"rpm", rotor.RPM,
		"blades", rotor.Blades,
		"bpf_hz", rotor.BPF(),
		"tip_mach", rotor.TipMach(),
		"peak", clip.Peak())

	series := rotor.HarmonicFrequencies(settings.NumHarmonics)
	expected := make([]string, len(series))
	for i, f := range series {
		expected[i] = fmt.Sprintf("%.1f", f)
	}
	fmt.Fprintf(out, "Simulated rotor: %.0f rpm x %d blades, tip Mach %.2f, expected harmonics %s Hz\n",
		rotor.RPM, rotor.Blades, rotor.TipMach(), strings.Join(expected, " "))
	return clip, fmt.Sprintf("simulation (%.0f rpm, %d blades)", rotor.RPM, rotor.Blades), nil
}

func saveReport(out io.Writer, dir string, rec observation.Record, det dsp.Detection, source string) error {
	ts := time.Now().UTC().Format("20060102T150405Z")
	reportPath := filepath.Join(dir, "acoustic_report_"+ts+".txt")
	jsonPath := filepath.Join(dir, "observation_"+ts+".json")

	if err := writeFile(reportPath, func(w io.Writer) error {
		return observation.WriteReport(w, rec, det, source)
	}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := writeFile(jsonPath, func(w io.Writer) error {
		return observation.WriteRecords(w, rec)
	}); err != nil {
		return fmt.Errorf("write observation: %w", err)
	}

	fmt.Fprintf(out, "Report written to %s\n", reportPath)
	fmt.Fprintf(out, "Observation written to %s\n", jsonPath)
	return nil
}
