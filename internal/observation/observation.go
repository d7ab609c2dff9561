// internal/observation/observation.go

// Package observation maps detections onto the observation records consumed
// by downstream ingestion.
package observation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

// Record labelling
const (
	TacticalPrefix  = "TACTICAL:"
	VerdictPositive = "FPV DETECTED"
	VerdictNegative = "NO FPV"

	// minObserverLen matches the ingestion schema constraint on observer_signature
	minObserverLen = 3
)

// ErrInvalidObserver indicates an observer signature shorter than three characters
var ErrInvalidObserver = errors.New("observer signature must be at least 3 characters")

// Metadata is the caller-supplied context attached to a record.
type Metadata struct {
	// Time of the observation; zero means the builder's clock
	Time              time.Time
	MGRS              string
	SensorID          string
	Unit              string
	ObserverSignature string
	// Amount of objects observed; zero means 1
	Amount int
}

// Record is the observation JSON contract.
type Record struct {
	Time              string  `json:"time"`
	MGRS              string  `json:"mgrs"`
	What              string  `json:"what"`
	Amount            int     `json:"amount"`
	Confidence        int     `json:"confidence"`
	SensorID          string  `json:"sensor_id"`
	Unit              string  `json:"unit"`
	ObserverSignature string  `json:"observer_signature"`
	OriginalMessage   *string `json:"original_message"`
}

// Option configures a Builder
type Option func(*Builder)

// WithClock sets the time source used when metadata has no time
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithNarrative fills original_message with a one-sentence analyst summary
func WithNarrative() Option {
	return func(b *Builder) {
		b.narrative = true
	}
}

// Builder turns Detections into Records.
type Builder struct {
	now       func() time.Time
	narrative bool
}

// NewBuilder creates a Builder using the wall clock
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build maps det and meta to a Record. Metadata problems are returned, not repaired.
func (b *Builder) Build(det dsp.Detection, meta Metadata) (Record, error) {
	mgrs, err := NormalizeMGRS(meta.MGRS)
	if err != nil {
		return Record{}, err
	}
	observer := strings.TrimSpace(meta.ObserverSignature)
	if len([]rune(observer)) < minObserverLen {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidObserver, meta.ObserverSignature)
	}

	ts := meta.Time
	if ts.IsZero() {
		ts = b.now()
	}
	amount := meta.Amount
	if amount <= 0 {
		amount = 1
	}

	pct := Percent(det.Confidence)
	rec := Record{
		Time:              ts.UTC().Format(time.RFC3339),
		MGRS:              mgrs,
		What:              What(det.IsPositive, pct),
		Amount:            amount,
		Confidence:        pct,
		SensorID:          meta.SensorID,
		Unit:              meta.Unit,
		ObserverSignature: observer,
	}
	if b.narrative {
		msg := Narrative(det)
		rec.OriginalMessage = &msg
	}
	return rec, nil
}

// Percent rounds a confidence score onto the integer 0-100 scale
func Percent(confidence float64) int {
	if math.IsNaN(confidence) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(dsp.MaxConfidence, confidence))))
}

// What renders the classification label, e.g. "TACTICAL: FPV DETECTED (87%)"
func What(positive bool, pct int) string {
	verdict := VerdictNegative
	if positive {
		verdict = VerdictPositive
	}
	return fmt.Sprintf("%s %s (%d%%)", TacticalPrefix, verdict, pct)
}

// Narrative describes the detection in one sentence
func Narrative(det dsp.Detection) string {
	if det.FundamentalHz == nil {
		return "Signal analysis did not reveal periodic narrow-band energy indicative of UAV rotors."
	}
	return fmt.Sprintf("Detected blade-pass frequency at %.1f Hz with %d harmonics. Estimated SNR %.1f dB.",
		*det.FundamentalHz, det.HarmonicCount, det.SNRDB)
}
