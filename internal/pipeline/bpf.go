// internal/pipeline/bpf.go
package pipeline

import (
	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

// BPFName is the registry name of the blade-pass frequency detector
const BPFName = "acoustic_drone_bpf"

// BPF detects rotor signatures from their blade-pass harmonic series.
type BPF struct{}

// NewBPF returns the blade-pass detector
func NewBPF() BPF {
	return BPF{}
}

// Name implements Algorithm
func (BPF) Name() string {
	return BPFName
}

// Detect implements Algorithm
func (BPF) Detect(clip *audio.Clip, cfg dsp.DetectorConfig) (dsp.Detection, error) {
	return dsp.DetectClip(clip, cfg)
}
