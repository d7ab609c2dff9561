// internal/audio/rotor.go
package audio

import "math"

// SpeedOfSound is the speed of sound in air at roughly 20 °C, in m/s
const SpeedOfSound = 343.0

// Rotor describes a propeller for acoustic modelling
type Rotor struct {
	RPM     float64
	Blades  int
	RadiusM float64
}

// BladePassFrequency returns the fundamental acoustic frequency of a rotor:
// revolutions per second times blade count.
func BladePassFrequency(rpm float64, blades int) float64 {
	return rpm / 60.0 * float64(blades)
}

// BPF returns the rotor's blade-pass frequency in Hz
func (r Rotor) BPF() float64 {
	return BladePassFrequency(r.RPM, r.Blades)
}

// TipSpeed returns the blade tip speed in m/s
func (r Rotor) TipSpeed() float64 {
	return 2.0 * math.Pi * (r.RPM / 60.0) * r.RadiusM
}

// TipMach returns the blade tip Mach number
func (r Rotor) TipMach() float64 {
	return r.TipSpeed() / SpeedOfSound
}

// HarmonicFrequencies returns the first count integer multiples of the BPF
func (r Rotor) HarmonicFrequencies(count int) []float64 {
	if count <= 0 {
		return nil
	}
	bpf := r.BPF()
	out := make([]float64, count)
	for k := range out {
		out[k] = bpf * float64(k+1)
	}
	return out
}
