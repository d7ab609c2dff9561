// internal/eval/summary.go
package eval

import (
	"cmp"
	"slices"
	"strings"
)

// ClassStats aggregates the rows of one label.
type ClassStats struct {
	Label      string `json:"label"`
	Files      int    `json:"files"`
	Errors     int    `json:"errors"`
	Evaluated  int    `json:"evaluated"`
	Detections int    `json:"detections"`
	// DetectionRate is Detections/Evaluated
	DetectionRate     float64 `json:"detection_rate"`
	MeanConfidence    float64 `json:"mean_confidence"`
	MeanSNRDB         float64 `json:"mean_snr_db"`
	MeanFundamentalHz float64 `json:"mean_fundamental_hz"`
	// HarmonicHistogram counts evaluated rows by HarmonicCount
	HarmonicHistogram map[int]int `json:"harmonic_histogram"`
}

// Summary aggregates a run. Rows with errors count toward Files and Errors only.
type Summary struct {
	Classes           []ClassStats `json:"classes"`
	Files             int          `json:"files"`
	Evaluated         int          `json:"evaluated"`
	Errors            int          `json:"errors"`
	Correct           int          `json:"correct"`
	Accuracy          float64      `json:"accuracy"`
	TruePositiveRate  float64      `json:"true_positive_rate"`
	FalsePositiveRate float64      `json:"false_positive_rate"`
	MeanSNRDB         float64      `json:"mean_snr_db"`
}

// Class returns the stats for label, or a zero value with that label
func (s Summary) Class(label string) ClassStats {
	for _, c := range s.Classes {
		if c.Label == label {
			return c
		}
	}
	return ClassStats{Label: label, HarmonicHistogram: map[int]int{}}
}

type accumulator struct {
	stats       ClassStats
	confSum     float64
	snrSum      float64
	fundSum     float64
	fundamental int
}

// Summarize aggregates rows per label and overall.
func Summarize(rows []Row) Summary {
	byLabel := make(map[string]*accumulator)
	var sum Summary
	var snrSum float64

	for _, row := range rows {
		acc, ok := byLabel[row.Label]
		if !ok {
			acc = &accumulator{stats: ClassStats{Label: row.Label, HarmonicHistogram: map[int]int{}}}
			byLabel[row.Label] = acc
		}
		acc.stats.Files++
		sum.Files++

		if row.Err != nil {
			acc.stats.Errors++
			sum.Errors++
			continue
		}

		det := row.Detection
		acc.stats.Evaluated++
		acc.stats.HarmonicHistogram[det.HarmonicCount]++
		acc.confSum += det.Confidence
		acc.snrSum += det.SNRDB
		if det.IsPositive {
			acc.stats.Detections++
			if det.FundamentalHz != nil {
				acc.fundSum += *det.FundamentalHz
				acc.fundamental++
			}
		}

		sum.Evaluated++
		snrSum += det.SNRDB
		if row.Correct {
			sum.Correct++
		}
	}

	for _, acc := range byLabel {
		s := &acc.stats
		s.DetectionRate = ratio(float64(s.Detections), s.Evaluated)
		s.MeanConfidence = ratio(acc.confSum, s.Evaluated)
		s.MeanSNRDB = ratio(acc.snrSum, s.Evaluated)
		s.MeanFundamentalHz = ratio(acc.fundSum, acc.fundamental)
		sum.Classes = append(sum.Classes, *s)
	}
	slices.SortFunc(sum.Classes, func(a, b ClassStats) int {
		return cmp.Or(classRank(a.Label)-classRank(b.Label), strings.Compare(a.Label, b.Label))
	})

	sum.Accuracy = ratio(float64(sum.Correct), sum.Evaluated)
	sum.MeanSNRDB = ratio(snrSum, sum.Evaluated)
	sum.TruePositiveRate = sum.Class(LabelDrone).DetectionRate
	sum.FalsePositiveRate = sum.Class(LabelNoDrone).DetectionRate
	return sum
}

// classRank orders drone before no_drone before anything else
func classRank(label string) int {
	switch label {
	case LabelDrone:
		return 0
	case LabelNoDrone:
		return 1
	default:
		return 2
	}
}

func ratio(num float64, den int) float64 {
	if den == 0 {
		return 0
	}
	return num / float64(den)
}
