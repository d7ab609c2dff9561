// internal/sweep/grid.go

// Package sweep grid-searches detector parameters against a labelled corpus.
package sweep

import (
	"fmt"

	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

// Grid lists candidate values per detector parameter.
// An empty axis keeps the base config's value.
type Grid struct {
	ProminenceRatios []float64
	MinBPFHz         []float64
	MaxBPFHz         []float64
	NumHarmonics     []int
	NoiseFloorDB     []float64
}

// Size returns the number of cells the grid expands to
func (g Grid) Size() int {
	n := 1
	for _, axis := range []int{
		len(g.ProminenceRatios), len(g.MinBPFHz), len(g.MaxBPFHz),
		len(g.NumHarmonics), len(g.NoiseFloorDB),
	} {
		n *= max(axis, 1)
	}
	return n
}

// Configs expands the Cartesian product over base. The last axis varies
// fastest. Every cell is validated before any is returned.
func (g Grid) Configs(base dsp.DetectorConfig) ([]dsp.DetectorConfig, error) {
	cells := []dsp.DetectorConfig{base}

	cells = expand(cells, g.ProminenceRatios, func(c *dsp.DetectorConfig, v float64) { c.ProminenceRatio = v })
	cells = expand(cells, g.MinBPFHz, func(c *dsp.DetectorConfig, v float64) { c.MinBPFHz = v })
	cells = expand(cells, g.MaxBPFHz, func(c *dsp.DetectorConfig, v float64) { c.MaxBPFHz = v })
	cells = expand(cells, g.NumHarmonics, func(c *dsp.DetectorConfig, v int) { c.NumHarmonics = v })
	cells = expand(cells, g.NoiseFloorDB, func(c *dsp.DetectorConfig, v float64) { *c = c.WithNoiseFloor(v) })

	for i, cfg := range cells {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("sweep cell %d: %w", i, err)
		}
	}
	return cells, nil
}

func expand[T any](cells []dsp.DetectorConfig, values []T, set func(*dsp.DetectorConfig, T)) []dsp.DetectorConfig {
	if len(values) == 0 {
		return cells
	}
	out := make([]dsp.DetectorConfig, 0, len(cells)*len(values))
	for _, cell := range cells {
		for _, v := range values {
			c := cell
			set(&c, v)
			out = append(out, c)
		}
	}
	return out
}
