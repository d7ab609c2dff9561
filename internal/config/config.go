// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
	"github.com/ColonelBlimp/fpvdetect/internal/logging"
)

const (
	AppName       = "fpvdetect"
	ConfigType    = "yaml"
	DefaultConfig = `# FPV Acoustic Detector Configuration

# Spectral analysis
fft_size: 4096          # FFT length, power of two
hop_size: 2048          # Frame advance in samples (0 = half the frame)
window_seconds: 0       # Analysed frame length in seconds (0 = fft_size samples)
window: "hann"          # hann, hamming, blackman or rectangular

# Blade-pass detection
prominence_ratio: 4.0   # Minimum peak amplitude over the noise floor (4.0 = +12 dB)
min_bpf_hz: 40          # Lowest fundamental searched
max_bpf_hz: 2500        # Highest fundamental searched
num_harmonics: 6        # Harmonic series length including the fundamental
harmonic_tolerance_hz: 15 # Match window around each multiple (at least one bin)
# noise_floor_db: -60   # Pin the noise floor instead of estimating it per frame
detection_threshold: 50 # Minimum confidence (0-100) for a positive verdict

# Simulation (analyze without an input file, synth)
default_rpm: 4800
default_blades: 4
rotor_radius_m: 0.0635  # 5 inch propeller
simulation_duration: 2.5
simulation_sample_rate: 44100
simulation_snr_db: 20

# Observation output
sensor_id: "AcousticBPF-Pipeline"
observer_signature: "AcousticBPF"
unit: "Alpha Company"
report_dir: "processed"

# Dataset evaluation
workers: 0              # Concurrent files (0 = one per CPU)
seed: 42                # Balanced shuffle seed

# Logging
log_level: "info"       # debug, info, warn or error
log_format: "text"      # text or json
log_file: ""            # Rotated log file (empty = stderr)
debug: false            # Shorthand for log_level debug
`
)

// Settings holds all application configuration
type Settings struct {
	// Spectral analysis
	FFTSize       int     `mapstructure:"fft_size"`
	HopSize       int     `mapstructure:"hop_size"`
	WindowSeconds float64 `mapstructure:"window_seconds"`
	Window        string  `mapstructure:"window"`

	// Blade-pass detection
	ProminenceRatio     float64  `mapstructure:"prominence_ratio"`
	MinBPFHz            float64  `mapstructure:"min_bpf_hz"`
	MaxBPFHz            float64  `mapstructure:"max_bpf_hz"`
	NumHarmonics        int      `mapstructure:"num_harmonics"`
	HarmonicToleranceHz float64  `mapstructure:"harmonic_tolerance_hz"`
	NoiseFloorDB        *float64 `mapstructure:"noise_floor_db"`
	DetectionThreshold  float64  `mapstructure:"detection_threshold"`

	// Simulation
	DefaultRPM           float64 `mapstructure:"default_rpm"`
	DefaultBlades        int     `mapstructure:"default_blades"`
	RotorRadiusM         float64 `mapstructure:"rotor_radius_m"`
	SimulationDuration   float64 `mapstructure:"simulation_duration"`
	SimulationSampleRate int     `mapstructure:"simulation_sample_rate"`
	SimulationSNRDB      float64 `mapstructure:"simulation_snr_db"`

	// Observation output
	SensorID          string `mapstructure:"sensor_id"`
	ObserverSignature string `mapstructure:"observer_signature"`
	Unit              string `mapstructure:"unit"`
	ReportDir         string `mapstructure:"report_dir"`

	// Dataset evaluation
	Workers int    `mapstructure:"workers"`
	Seed    uint64 `mapstructure:"seed"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
	Debug     bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and a config file.
// An explicit path is read as-is. Otherwise the search order is the current
// directory, then ~/.config/fpvdetect/, where a default file is created if
// none exists.
func Init(path string) error {
	setDefaults()
	viper.SetConfigType(ConfigType)

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("fft_size", dsp.DefaultFFTSize)
	viper.SetDefault("hop_size", dsp.DefaultHopSize)
	viper.SetDefault("window_seconds", 0.0)
	viper.SetDefault("window", dsp.DefaultWindow)
	viper.SetDefault("prominence_ratio", dsp.DefaultProminenceRatio)
	viper.SetDefault("min_bpf_hz", dsp.DefaultMinBPFHz)
	viper.SetDefault("max_bpf_hz", dsp.DefaultMaxBPFHz)
	viper.SetDefault("num_harmonics", dsp.DefaultNumHarmonics)
	viper.SetDefault("harmonic_tolerance_hz", dsp.DefaultHarmonicToleranceHz)
	viper.SetDefault("detection_threshold", dsp.DefaultDetectionThreshold)
	viper.SetDefault("default_rpm", 4800.0)
	viper.SetDefault("default_blades", 4)
	viper.SetDefault("rotor_radius_m", 0.0635)
	viper.SetDefault("simulation_duration", 2.5)
	viper.SetDefault("simulation_sample_rate", 44100)
	viper.SetDefault("simulation_snr_db", 20.0)
	viper.SetDefault("sensor_id", "AcousticBPF-Pipeline")
	viper.SetDefault("observer_signature", "AcousticBPF")
	viper.SetDefault("unit", "Alpha Company")
	viper.SetDefault("report_dir", "processed")
	viper.SetDefault("workers", 0)
	viper.SetDefault("seed", 42)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", logging.FormatText)
	viper.SetDefault("log_file", "")
	viper.SetDefault("debug", false)
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings. Unknown keys are rejected.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.UnmarshalExact(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// DetectorConfig returns the detector parameters
func (s *Settings) DetectorConfig() dsp.DetectorConfig {
	return dsp.DetectorConfig{
		FFTSize:             s.FFTSize,
		HopSize:             s.HopSize,
		WindowSeconds:       s.WindowSeconds,
		Window:              s.Window,
		ProminenceRatio:     s.ProminenceRatio,
		MinBPFHz:            s.MinBPFHz,
		MaxBPFHz:            s.MaxBPFHz,
		NumHarmonics:        s.NumHarmonics,
		HarmonicToleranceHz: s.HarmonicToleranceHz,
		NoiseFloorDB:        s.NoiseFloorDB,
		DetectionThreshold:  s.DetectionThreshold,
	}
}

// EffectiveLogLevel returns debug when the debug switch is on
func (s *Settings) EffectiveLogLevel() string {
	if s.Debug {
		return "debug"
	}
	return s.LogLevel
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	if err := s.DetectorConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	// Simulation
	if s.DefaultRPM <= 0 || math.IsInf(s.DefaultRPM, 0) {
		errs = append(errs, fmt.Errorf("default_rpm must be positive, got %v", s.DefaultRPM))
	}
	if s.DefaultBlades < 1 || s.DefaultBlades > 8 {
		errs = append(errs, fmt.Errorf("default_blades must be between 1 and 8, got %d", s.DefaultBlades))
	}
	if s.RotorRadiusM <= 0 || s.RotorRadiusM > 1 {
		errs = append(errs, fmt.Errorf("rotor_radius_m must be in (0, 1], got %v", s.RotorRadiusM))
	}
	if s.SimulationDuration <= 0 || s.SimulationDuration > 600 {
		errs = append(errs, fmt.Errorf("simulation_duration must be in (0, 600] seconds, got %v", s.SimulationDuration))
	}
	if s.SimulationSampleRate < 8000 || s.SimulationSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("simulation_sample_rate must be between 8000 and 192000 Hz, got %d", s.SimulationSampleRate))
	}
	// Nyquist check: the simulated blade-pass frequency must be representable
	if bpf := s.DefaultRPM / 60 * float64(s.DefaultBlades); s.SimulationSampleRate > 0 && bpf >= float64(s.SimulationSampleRate)/2 {
		errs = append(errs, fmt.Errorf("default blade-pass frequency (%v Hz) must be less than Nyquist frequency (%v Hz)",
			bpf, float64(s.SimulationSampleRate)/2))
	}
	if math.IsNaN(s.SimulationSNRDB) || math.IsInf(s.SimulationSNRDB, 0) {
		errs = append(errs, fmt.Errorf("simulation_snr_db must be finite, got %v", s.SimulationSNRDB))
	}

	// Observation output
	if s.SensorID == "" {
		errs = append(errs, errors.New("sensor_id must not be empty"))
	}

	// Dataset evaluation
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", s.Workers))
	}

	// Logging
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if s.LogFormat != logging.FormatText && s.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log_format %q: %w", s.LogFormat, logging.ErrInvalidFormat))
	}

	return errors.Join(errs...)
}
