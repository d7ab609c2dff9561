// internal/observation/report.go
package observation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

// WriteReport writes the human-readable analysis summary.
func WriteReport(w io.Writer, rec Record, det dsp.Detection, source string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Timestamp: %s\n", rec.Time)
	fmt.Fprintf(bw, "Source: %s\n", source)
	fmt.Fprintf(bw, "Description: %s\n", rec.What)
	fmt.Fprintf(bw, "Confidence: %d%%\n", rec.Confidence)
	if det.FundamentalHz != nil {
		fmt.Fprintf(bw, "Fundamental: %.1f Hz\n", *det.FundamentalHz)
	} else {
		fmt.Fprintln(bw, "Fundamental: none")
	}
	fmt.Fprintf(bw, "Peak (dB): %.1f\n", det.PeakDB)
	fmt.Fprintf(bw, "Noise floor (dB): %.1f\n", det.NoiseFloorDB)
	fmt.Fprintf(bw, "SNR (dB): %.1f\n", det.SNRDB)

	if len(det.Harmonics) > 0 {
		fmt.Fprintln(bw, "Harmonics:")
		for _, h := range det.Harmonics {
			fmt.Fprintf(bw, "  - Order %d: %.1f Hz @ %.1f dB\n", h.Order, h.FrequencyHz, h.MagnitudeDB)
		}
	}

	if rec.OriginalMessage != nil {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, *rec.OriginalMessage)
	}

	return bw.Flush()
}

// WriteRecords writes records as an indented JSON array
func WriteRecords(w io.Writer, records ...Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode observations: %w", err)
	}
	return nil
}
