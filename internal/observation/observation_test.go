package observation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("EET", 2*3600))
}

func positiveDetection() dsp.Detection {
	f0 := 200.0
	return dsp.Detection{
		FundamentalHz: &f0,
		HarmonicCount: 2,
		Harmonics: []dsp.Harmonic{
			{Order: 2, FrequencyHz: 400.2, MagnitudeDB: -18.4},
			{Order: 3, FrequencyHz: 599.8, MagnitudeDB: -22.9},
		},
		SNRDB:        48.26,
		PeakDB:       -6.1,
		NoiseFloorDB: -54.36,
		Confidence:   86.6,
		IsPositive:   true,
	}
}

func validMeta() Metadata {
	return Metadata{
		MGRS:              "35V LG 12345 67890",
		SensorID:          "AcousticBPF-Pipeline",
		Unit:              "Alpha Company",
		ObserverSignature: "AcousticBPF",
	}
}

func TestBuild_Positive(t *testing.T) {
	rec, err := NewBuilder(WithClock(fixedClock)).Build(positiveDetection(), validMeta())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01T10:30:00Z", rec.Time)
	assert.Equal(t, "35VLG1234567890", rec.MGRS)
	assert.Equal(t, "TACTICAL: FPV DETECTED (87%)", rec.What)
	assert.Equal(t, 87, rec.Confidence)
	assert.Equal(t, 1, rec.Amount)
	assert.Equal(t, "AcousticBPF-Pipeline", rec.SensorID)
	assert.Equal(t, "Alpha Company", rec.Unit)
	assert.Equal(t, "AcousticBPF", rec.ObserverSignature)
	assert.Nil(t, rec.OriginalMessage)
}

func TestBuild_Negative(t *testing.T) {
	meta := validMeta()
	meta.MGRS = ""
	meta.Amount = 3
	meta.Time = time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	rec, err := NewBuilder().Build(dsp.Detection{}, meta)
	require.NoError(t, err)

	assert.Equal(t, "2023-01-02T03:04:05Z", rec.Time)
	assert.Equal(t, UnknownLocation, rec.MGRS)
	assert.Equal(t, "TACTICAL: NO FPV (0%)", rec.What)
	assert.Equal(t, 0, rec.Confidence)
	assert.Equal(t, 3, rec.Amount)
}

func TestBuild_CandidateBelowThresholdIsNoFPV(t *testing.T) {
	det := positiveDetection()
	det.IsPositive = false
	det.Confidence = 41.2

	rec, err := NewBuilder().Build(det, validMeta())
	require.NoError(t, err)
	assert.Equal(t, "TACTICAL: NO FPV (41%)", rec.What)
}

func TestBuild_MetadataErrors(t *testing.T) {
	meta := validMeta()
	meta.MGRS = "not a grid"
	_, err := NewBuilder().Build(positiveDetection(), meta)
	assert.ErrorIs(t, err, ErrInvalidMGRS)

	meta = validMeta()
	meta.ObserverSignature = " ab "
	_, err = NewBuilder().Build(positiveDetection(), meta)
	assert.ErrorIs(t, err, ErrInvalidObserver)
}

func TestBuild_Narrative(t *testing.T) {
	b := NewBuilder(WithClock(fixedClock), WithNarrative())

	rec, err := b.Build(positiveDetection(), validMeta())
	require.NoError(t, err)
	require.NotNil(t, rec.OriginalMessage)
	assert.Equal(t, "Detected blade-pass frequency at 200.0 Hz with 2 harmonics. Estimated SNR 48.3 dB.", *rec.OriginalMessage)

	rec, err = b.Build(dsp.Detection{}, validMeta())
	require.NoError(t, err)
	require.NotNil(t, rec.OriginalMessage)
	assert.Contains(t, *rec.OriginalMessage, "did not reveal")
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(-3))
	assert.Equal(t, 100, Percent(140))
	assert.Equal(t, 50, Percent(49.5))
	assert.Equal(t, 0, Percent(0))
}

func TestNormalizeMGRS(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", UnknownLocation, false},
		{"  ", UnknownLocation, false},
		{"unknown", UnknownLocation, false},
		{"35vlg1234567890", "35VLG1234567890", false},
		{"4Q FJ 1234 5678", "4QFJ12345678", false},
		{"35VLG12", "35VLG12", false},
		{"61VLG1234", "", true},  // zone out of range
		{"0VLG1234", "", true},   // zone zero
		{"35ILG1234", "", true},  // band I not used
		{"35VLG123", "", true},   // odd digit count
		{"35VLG", "", true},      // no digits
		{"35VLG123456789012", "", true},
		{"hello", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeMGRS(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMGRS)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWriteRecords(t *testing.T) {
	rec, err := NewBuilder(WithClock(fixedClock)).Build(positiveDetection(), validMeta())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, rec))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)

	keys := []string{"time", "mgrs", "what", "amount", "confidence", "sensor_id", "unit", "observer_signature", "original_message"}
	for _, k := range keys {
		assert.Contains(t, decoded[0], k)
	}
	assert.Len(t, decoded[0], len(keys))
	assert.Nil(t, decoded[0]["original_message"])
	assert.Equal(t, float64(87), decoded[0]["confidence"])

	buf.Reset()
	require.NoError(t, WriteRecords(&buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteReport(t *testing.T) {
	det := positiveDetection()
	rec, err := NewBuilder(WithClock(fixedClock), WithNarrative()).Build(det, validMeta())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, rec, det, "synthetic rpm=6000 blades=2"))
	out := buf.String()

	for _, want := range []string{
		"Timestamp: 2024-03-01T10:30:00Z",
		"Source: synthetic rpm=6000 blades=2",
		"Description: TACTICAL: FPV DETECTED (87%)",
		"Confidence: 87%",
		"Fundamental: 200.0 Hz",
		"Peak (dB): -6.1",
		"Noise floor (dB): -54.4",
		"  - Order 2: 400.2 Hz @ -18.4 dB",
		"  - Order 3: 599.8 Hz @ -22.9 dB",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, *rec.OriginalMessage+"\n"))

	buf.Reset()
	require.NoError(t, WriteReport(&buf, Record{What: "TACTICAL: NO FPV (0%)"}, dsp.Detection{}, "x.wav"))
	assert.Contains(t, buf.String(), "Fundamental: none")
	assert.NotContains(t, buf.String(), "Harmonics:")
}
