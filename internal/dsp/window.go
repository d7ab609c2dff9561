// internal/dsp/window.go
package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/window"
)

// Supported analysis windows
const (
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowBlackman    = "blackman"
	WindowRectangular = "rectangular"
)

var windowTypes = map[string]window.Type{
	WindowHann:        window.TypeHann,
	WindowHamming:     window.TypeHamming,
	WindowBlackman:    window.TypeBlackman,
	WindowRectangular: window.TypeRectangular,
}

// WindowNames lists the accepted window names
func WindowNames() []string {
	return []string{WindowHann, WindowHamming, WindowBlackman, WindowRectangular}
}

// makeWindow returns periodic window coefficients of the given length.
// Periodic windows tile cleanly under overlap.
func makeWindow(name string, length int) ([]float64, error) {
	t, ok := windowTypes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, name)
	}
	return window.Generate(t, length, window.WithPeriodic()), nil
}

// coherentGain returns sum(w)/len(w), the amplitude a windowed sine retains
func coherentGain(w []float64) float64 {
	if len(w) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}
