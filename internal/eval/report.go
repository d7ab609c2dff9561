// internal/eval/report.go
package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ColonelBlimp/fpvdetect/internal/observation"
)

var csvHeader = []string{
	"path", "label", "expected",
	"model", "bearing_deg", "range_m", "altitude_m", "temperature_k", "sample_type",
	"timestamp", "flight_session_id", "recording_session_id", "sequence_id",
	"detected", "fundamental_hz", "harmonics", "confidence_pct", "snr_db", "peak_db", "noise_floor_db",
	"correct", "error",
}

// WriteCSV writes one line per row in evaluation order.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		det := row.Detection
		metaCols := make([]string, 10)
		if m := row.Meta; m != nil {
			metaCols = []string{
				m.Model,
				formatFloat(m.BearingDeg),
				formatFloat(m.RangeM),
				formatFloat(m.AltitudeM),
				formatFloat(m.TemperatureK),
				m.SampleType,
				m.Timestamp,
				m.FlightSessionID,
				m.RecordingSessionID,
				m.SequenceID,
			}
		}

		fundamental, errText := "", ""
		if det.FundamentalHz != nil {
			fundamental = formatFloat(*det.FundamentalHz)
		}
		if row.Err != nil {
			errText = row.Err.Error()
		}

		record := []string{row.Path, row.Label, strconv.FormatBool(row.Expected)}
		record = append(record, metaCols...)
		record = append(record,
			strconv.FormatBool(det.IsPositive),
			fundamental,
			strconv.Itoa(det.HarmonicCount),
			strconv.Itoa(observation.Percent(det.Confidence)),
			formatFloat(det.SNRDB),
			formatFloat(det.PeakDB),
			formatFloat(det.NoiseFloorDB),
			strconv.FormatBool(row.Correct),
			errText,
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Path, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

type jsonRow struct {
	Path          string    `json:"path"`
	Label         string    `json:"label"`
	Expected      bool      `json:"expected"`
	Meta          *FileMeta `json:"meta,omitempty"`
	Detected      bool      `json:"detected"`
	FundamentalHz *float64  `json:"fundamental_hz"`
	Harmonics     int       `json:"harmonics"`
	ConfidencePct int       `json:"confidence_pct"`
	SNRDB         float64   `json:"snr_db"`
	PeakDB        float64   `json:"peak_db"`
	NoiseFloorDB  float64   `json:"noise_floor_db"`
	Correct       bool      `json:"correct"`
	Error         string    `json:"error,omitempty"`
}

type jsonReport struct {
	RunID    string    `json:"run_id"`
	Seed     uint64    `json:"seed"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
	Summary  Summary   `json:"summary"`
	Rows     []jsonRow `json:"rows"`
}

// WriteJSON writes the run summary and every row as one JSON document.
func WriteJSON(w io.Writer, res *Result) error {
	report := jsonReport{
		RunID:    res.RunID,
		Seed:     res.Seed,
		Started:  res.Started.UTC(),
		Duration: res.Duration.String(),
		Summary:  res.Summary,
		Rows:     make([]jsonRow, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		det := row.Detection
		jr := jsonRow{
			Path:          row.Path,
			Label:         row.Label,
			Expected:      row.Expected,
			Meta:          row.Meta,
			Detected:      det.IsPositive,
			FundamentalHz: det.FundamentalHz,
			Harmonics:     det.HarmonicCount,
			ConfidencePct: observation.Percent(det.Confidence),
			SNRDB:         det.SNRDB,
			PeakDB:        det.PeakDB,
			NoiseFloorDB:  det.NoiseFloorDB,
			Correct:       row.Correct,
		}
		if row.Err != nil {
			jr.Error = row.Err.Error()
		}
		report.Rows = append(report.Rows, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	return nil
}

// PrintSummary writes the console summary of a run.
func PrintSummary(w io.Writer, res *Result) {
	s := res.Summary
	fmt.Fprintln(w, "===== Acoustic Dataset Evaluation =====")
	fmt.Fprintf(w, "Run: %s (seed %d)\n", res.RunID, res.Seed)
	fmt.Fprintf(w, "Files processed: %d (%d evaluated, %d errors)\n", s.Files, s.Evaluated, s.Errors)
	fmt.Fprintf(w, "Accuracy: %.1f%% (%d/%d correct)\n", s.Accuracy*100, s.Correct, s.Evaluated)
	fmt.Fprintf(w, "True positive rate: %.1f%%  False positive rate: %.1f%%\n",
		s.TruePositiveRate*100, s.FalsePositiveRate*100)
	fmt.Fprintf(w, "Mean SNR: %.1f dB\n", s.MeanSNRDB)

	for _, c := range s.Classes {
		fmt.Fprintf(w, "  - %s: %d/%d detections (%.1f%%), avg conf %.1f%%, avg SNR %.1f dB, avg fundamental %.1f Hz\n",
			c.Label, c.Detections, c.Evaluated, c.DetectionRate*100,
			c.MeanConfidence, c.MeanSNRDB, c.MeanFundamentalHz)
		fmt.Fprintf(w, "    harmonics: %s\n", formatHistogram(c.HarmonicHistogram))
	}
}

func formatHistogram(h map[int]int) string {
	if len(h) == 0 {
		return "none"
	}
	maxKey := 0
	for k := range h {
		maxKey = max(maxKey, k)
	}
	out := ""
	for k := 0; k <= maxKey; k++ {
		if n, ok := h[k]; ok {
			if out != "" {
				out += " "
			}
			out += fmt.Sprintf("%d:%d", k, n)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
