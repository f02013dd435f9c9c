package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the valid pixels of a grid.
type Summary struct {
	Total         int     `json:"total_pixels"`
	Valid         int     `json:"valid_pixels"`
	ValidFraction float64 `json:"valid_fraction"`
	Mean          float64 `json:"mean,omitempty"`
	StdDev        float64 `json:"stddev,omitempty"`
	Min           float64 `json:"min,omitempty"`
	Max           float64 `json:"max,omitempty"`
}

// Summarize computes summary statistics over the non-NaN pixels of g.
func Summarize(g *Grid) Summary {
	valid := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	s := Summary{Total: len(g.Data), Valid: len(valid)}
	if s.Total > 0 {
		s.ValidFraction = float64(s.Valid) / float64(s.Total)
	}
	if len(valid) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	return s
}
