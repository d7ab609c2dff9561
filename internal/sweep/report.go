// internal/sweep/report.go
package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

var csvHeader = []string{
	"rank", "index",
	"fft_size", "hop_size", "window_seconds", "window",
	"prominence_ratio", "min_bpf_hz", "max_bpf_hz", "num_harmonics",
	"harmonic_tolerance_hz", "noise_floor_db", "detection_threshold",
	"accuracy", "mean_snr_db",
	"positive_detection_rate", "negative_detection_rate",
	"positive_mean_confidence", "negative_mean_confidence", "positive_mean_snr_db",
	"evaluated", "errors",
}

// WriteCSV writes one line per cell in the given order
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for rank, r := range results {
		c := r.Config
		floor := ""
		if c.NoiseFloorDB != nil {
			floor = ftoa(*c.NoiseFloorDB)
		}
		record := []string{
			strconv.Itoa(rank + 1),
			strconv.Itoa(r.Index),
			strconv.Itoa(c.FFTSize),
			strconv.Itoa(c.HopSize),
			ftoa(c.WindowSeconds),
			c.Window,
			ftoa(c.ProminenceRatio),
			ftoa(c.MinBPFHz),
			ftoa(c.MaxBPFHz),
			strconv.Itoa(c.NumHarmonics),
			ftoa(c.HarmonicToleranceHz),
			floor,
			ftoa(c.DetectionThreshold),
			ftoa(r.Accuracy),
			ftoa(r.MeanSNRDB),
			ftoa(r.PositiveDetectionRate),
			ftoa(r.NegativeDetectionRate),
			ftoa(r.PositiveMeanConfidence),
			ftoa(r.NegativeMeanConfidence),
			ftoa(r.PositiveMeanSNRDB),
			strconv.Itoa(r.Evaluated),
			strconv.Itoa(r.Errors),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv cell %d: %w", r.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// fileConfig mirrors the detector keys of the application config file
type fileConfig struct {
	FFTSize             int      `yaml:"fft_size"`
	HopSize             int      `yaml:"hop_size"`
	WindowSeconds       float64  `yaml:"window_seconds"`
	Window              string   `yaml:"window"`
	ProminenceRatio     float64  `yaml:"prominence_ratio"`
	MinBPFHz            float64  `yaml:"min_bpf_hz"`
	MaxBPFHz            float64  `yaml:"max_bpf_hz"`
	NumHarmonics        int      `yaml:"num_harmonics"`
	HarmonicToleranceHz float64  `yaml:"harmonic_tolerance_hz"`
	NoiseFloorDB        *float64 `yaml:"noise_floor_db,omitempty"`
	DetectionThreshold  float64  `yaml:"detection_threshold"`
}

// WriteBestConfig writes cfg as a config file fragment usable with --config
func WriteBestConfig(w io.Writer, cfg dsp.DetectorConfig) error {
	doc := fileConfig{
		FFTSize:             cfg.FFTSize,
		HopSize:             cfg.HopSize,
		WindowSeconds:       cfg.WindowSeconds,
		Window:              cfg.Window,
		ProminenceRatio:     cfg.ProminenceRatio,
		MinBPFHz:            cfg.MinBPFHz,
		MaxBPFHz:            cfg.MaxBPFHz,
		NumHarmonics:        cfg.NumHarmonics,
		HarmonicToleranceHz: cfg.HarmonicToleranceHz,
		NoiseFloorDB:        cfg.NoiseFloorDB,
		DetectionThreshold:  cfg.DetectionThreshold,
	}

	if _, err := io.WriteString(w, "# Best detector parameters from fpvdetect sweep\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode best config: %w", err)
	}
	return enc.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
