// internal/eval/dataset.go
package eval

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Ground-truth labels
const (
	LabelDrone   = "drone"
	LabelNoDrone = "no_drone"
)

// ErrNoDataset indicates neither label directory was given
var ErrNoDataset = errors.New("no dataset directory given")

// Sample is one labelled recording.
type Sample struct {
	Path  string
	Label string
	Meta  *FileMeta
}

// Discover walks the positive and negative directories for WAV files.
// An empty directory argument skips that class; a missing one is an error.
func Discover(positiveDir, negativeDir string) ([]Sample, error) {
	if positiveDir == "" && negativeDir == "" {
		return nil, ErrNoDataset
	}

	var samples []Sample
	for _, src := range []struct{ dir, label string }{
		{positiveDir, LabelDrone},
		{negativeDir, LabelNoDrone},
	} {
		if src.dir == "" {
			continue
		}
		found, err := walkWAV(src.dir, src.label)
		if err != nil {
			return nil, err
		}
		samples = append(samples, found...)
	}
	return samples, nil
}

// walkWAV returns every *.wav under dir in lexical order
func walkWAV(dir, label string) ([]Sample, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%s dataset: %w", label, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s dataset: %s is not a directory", label, dir)
	}

	var out []Sample
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		out = append(out, Sample{Path: path, Label: label, Meta: ParseDDL(d.Name())})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s dataset: walk %s: %w", label, dir, err)
	}
	return out, nil
}

// BalancedOrder returns samples in a reproducible label-interleaved order.
// Classes and the files within each class are shuffled with seed, buckets
// are cut to maxPerClass (0 = no cap), then the class furthest behind in
// proportion is always drawn next, so any prefix keeps class proportions.
func BalancedOrder(samples []Sample, seed uint64, maxPerClass int) []Sample {
	buckets := make(map[string][]Sample)
	for _, s := range samples {
		buckets[s.Label] = append(buckets[s.Label], s)
	}

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })

	total := 0
	for _, label := range labels {
		b := buckets[label]
		rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
		if maxPerClass > 0 && len(b) > maxPerClass {
			b = b[:maxPerClass]
		}
		buckets[label] = b
		total += len(b)
	}

	taken := make([]int, len(labels))
	out := make([]Sample, 0, total)
	for len(out) < total {
		pick := -1
		for i, label := range labels {
			size := len(buckets[label])
			if taken[i] >= size {
				continue
			}
			// taken[i]/size < taken[pick]/pickSize without division
			if pick < 0 || taken[i]*len(buckets[labels[pick]]) < taken[pick]*size {
				pick = i
			}
		}
		out = append(out, buckets[labels[pick]][taken[pick]])
		taken[pick]++
	}
	return out
}

// FileMeta is recording context encoded in drone-dataset file names:
// <timestamp:14><model:4><bearing:3><range:3><altitude:3><temp dK:4><R|S><flight:6>-<session>-<seq>
type FileMeta struct {
	Timestamp          string  `json:"timestamp"`
	Model              string  `json:"model"`
	BearingDeg         float64 `json:"bearing_deg"`
	RangeM             float64 `json:"range_m"`
	AltitudeM          float64 `json:"altitude_m"`
	TemperatureK       float64 `json:"temperature_k"`
	SampleType         string  `json:"sample_type"`
	FlightSessionID    string  `json:"flight_session_id"`
	RecordingSessionID string  `json:"recording_session_id"`
	SequenceID         string  `json:"sequence_id"`
}

var ddlPattern = regexp.MustCompile(`^(\d{14})([A-Z0-9]{4})(\d{3})(\d{3})([\d-]{3})(\d{4})([RS])(\d{6})-([^-]+)-(\d+)$`)

// ParseDDL extracts FileMeta from a file name, or returns nil if it does not match.
func ParseDDL(name string) *FileMeta {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := ddlPattern.FindStringSubmatch(stem)
	if m == nil {
		return nil
	}

	bearing, _ := strconv.ParseFloat(m[3], 64)
	rangeM, _ := strconv.ParseFloat(m[4], 64)
	altitude := 0.0
	if digits := strings.ReplaceAll(m[5], "-", ""); digits != "" {
		altitude, _ = strconv.ParseFloat(digits, 64)
	}
	temp, _ := strconv.ParseFloat(m[6], 64)

	sampleType := "synthetic"
	if m[7] == "R" {
		sampleType = "real"
	}

	return &FileMeta{
		Timestamp:          m[1],
		Model:              m[2],
		BearingDeg:         bearing,
		RangeM:             rangeM,
		AltitudeM:          altitude,
		TemperatureK:       temp / 10,
		SampleType:         sampleType,
		FlightSessionID:    m[8],
		RecordingSessionID: m[9],
		SequenceID:         m[10],
	}
}
