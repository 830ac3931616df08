// Package chart projects a PnL snapshot series onto normalized plot
// coordinates for the detail panel's equity curve.
package chart

import (
	"sort"

	"github.com/wurong98/feature-hft-exchange/models"
)

// Geometry describes the plot surface. The origin is top-left, so higher
// values map to smaller y.
type Geometry struct {
	Width   float64
	Height  float64
	Padding float64
}

// DefaultGeometry matches the dashboard's equity-curve container.
var DefaultGeometry = Geometry{Width: 800, Height: 200, Padding: 20}

// Point is one projected plot coordinate.
type Point struct {
	X float64
	Y float64
}

// Series is a projected snapshot series ready for rendering.
type Series struct {
	Points []Point
	Trend  string // "positive" when the sorted series ends at or above its start
	Min    float64
	Max    float64
}

// Project sorts the series by time ascending (the backend may return it
// unordered) and maps each point into geo. A flat series projects against a
// range of 1 instead of dividing by zero.
func Project(snapshots []models.PnLSnapshot, geo Geometry) Series {
	if geo.Width <= 0 || geo.Height <= 0 {
		geo = DefaultGeometry
	}
	if len(snapshots) == 0 {
		return Series{Trend: "positive"}
	}

	sorted := make([]models.PnLSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SnapshotAt.Time.Before(sorted[j].SnapshotAt.Time)
	})

	values := make([]float64, len(sorted))
	min, max := sorted[0].TotalPnl.Float(), sorted[0].TotalPnl.Float()
	for i, s := range sorted {
		v := s.TotalPnl.Float()
		values[i] = v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min
	if rng == 0 {
		rng = 1
	}

	span := float64(len(values) - 1)
	if span == 0 {
		span = 1
	}

	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{
			X: geo.Padding + float64(i)/span*(geo.Width-2*geo.Padding),
			Y: geo.Height - geo.Padding - (v-min)/rng*(geo.Height-2*geo.Padding),
		}
	}

	trend := "positive"
	if values[len(values)-1] < values[0] {
		trend = "negative"
	}

	return Series{Points: points, Trend: trend, Min: min, Max: max}
}
