// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/fpvdetect/internal/config"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/logging"
	"github.com/ColonelBlimp/fpvdetect/internal/pipeline"
)

var (
	cfgFile       string
	algorithmName string

	// settings is loaded before any subcommand runs
	settings  *config.Settings
	registry  = pipeline.DefaultRegistry()
	closeLogs func() error
)

var rootCmd = &cobra.Command{
	Use:   "fpvdetect",
	Short: "Acoustic FPV drone detector",
	Long: `Detects small rotary-wing aircraft in audio by their blade-pass frequency
and its harmonic series, and scores the detector against labelled corpora.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func Execute() {
	err := rootCmd.Execute()
	if cerr := closeLog(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalKeys maps persistent flags onto config keys
var globalKeys = []struct{ flag, key string }{
	{"debug", "debug"},
	{"log-level", "log_level"},
	{"log-format", "log_format"},
	{"log-file", "log_file"},
	{"fft-size", "fft_size"},
	{"hop-size", "hop_size"},
	{"window", "window"},
	{"prominence", "prominence_ratio"},
	{"min-bpf", "min_bpf_hz"},
	{"max-bpf", "max_bpf_hz"},
	{"harmonics", "num_harmonics"},
	{"tolerance", "harmonic_tolerance_hz"},
	{"threshold", "detection_threshold"},
	{"workers", "workers"},
	{"seed", "seed"},
}

// localKeys maps subcommand flags onto config keys
var localKeys = map[string]string{
	"rpm":         "default_rpm",
	"blades":      "default_blades",
	"radius":      "rotor_radius_m",
	"duration":    "simulation_duration",
	"sample-rate": "simulation_sample_rate",
	"snr":         "simulation_snr_db",
	"sensor-id":   "sensor_id",
	"observer":    "observer_signature",
	"unit":        "unit",
	"report-dir":  "report_dir",
}

func init() {
	// Global flags (override config file)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, then ~/.config/fpvdetect/config.yaml)")
	pf.StringVarP(&algorithmName, "algorithm", "a", pipeline.BPFName, "detection algorithm")
	pf.BoolP("debug", "D", false, "enable debug logging")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatText, "log format: text or json")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")

	pf.Int("fft-size", dsp.DefaultFFTSize, "FFT length (power of two)")
	pf.Int("hop-size", dsp.DefaultHopSize, "frame advance in samples (0 = half the frame)")
	pf.String("window", dsp.DefaultWindow, "analysis window: hann, hamming, blackman, rectangular")
	pf.Float64P("prominence", "p", dsp.DefaultProminenceRatio, "minimum peak ratio over the noise floor")
	pf.Float64("min-bpf", dsp.DefaultMinBPFHz, "lowest blade-pass frequency searched (Hz)")
	pf.Float64("max-bpf", dsp.DefaultMaxBPFHz, "highest blade-pass frequency searched (Hz)")
	pf.Int("harmonics", dsp.DefaultNumHarmonics, "harmonic series length including the fundamental")
	pf.Float64("tolerance", dsp.DefaultHarmonicToleranceHz, "harmonic match tolerance (Hz)")
	pf.String("noise-floor", "", "fixed noise floor in dB (default: estimate per frame)")
	pf.Float64P("threshold", "t", dsp.DefaultDetectionThreshold, "minimum confidence (0-100) for a detection")
	pf.IntP("workers", "w", 0, "concurrent files (0 = one per CPU)")
	pf.Uint64("seed", 42, "random seed for simulation and shuffling")

	rootCmd.AddCommand(analyzeCmd, evaluateCmd, sweepCmd, synthCmd)
}

// initConfig loads the config file, layers the command line over it and
// installs the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	if err := config.Init(cfgFile); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := bindFlags(cmd); err != nil {
		return err
	}

	s, err := config.Get()
	if err != nil {
		return err
	}

	logger, closer, err := logging.Init(s.EffectiveLogLevel(), s.LogFormat, s.LogFile)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	settings = s
	closeLogs = closer
	logger.Debug("config loaded", "file", viper.ConfigFileUsed(), "command", cmd.Name())
	return nil
}

// bindFlags binds on every run so that viper.Reset between runs cannot
// drop the bindings.
func bindFlags(cmd *cobra.Command) error {
	pf := cmd.Root().PersistentFlags()
	for _, b := range globalKeys {
		if err := viper.BindPFlag(b.key, pf.Lookup(b.flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", b.flag, err)
		}
	}

	// noise_floor_db has no neutral value, so it is only set when given
	if f := pf.Lookup("noise-floor"); f.Changed {
		v, err := strconv.ParseFloat(f.Value.String(), 64)
		if err != nil {
			return fmt.Errorf("--noise-floor: %w", err)
		}
		viper.Set("noise_floor_db", v)
	}

	for name, key := range localKeys {
		if f := cmd.LocalFlags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	return nil
}

func closeLog() error {
	if closeLogs == nil {
		return nil
	}
	err := closeLogs()
	closeLogs = nil
	return err
}

// writeFile creates path, and its directory, and fills it with write
func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
