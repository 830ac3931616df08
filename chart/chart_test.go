package chart

import (
	"testing"
	"time"

	"github.com/wurong98/feature-hft-exchange/models"
)

func snap(at time.Time, pnl float64) models.PnLSnapshot {
	return models.PnLSnapshot{SnapshotAt: models.TS(at), TotalPnl: models.Num(pnl)}
}

func TestProjectSortsBeforeProjecting(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	// Fed out of order: t1, t3, t2.
	series := Project([]models.PnLSnapshot{snap(t1, 5), snap(t3, -2), snap(t2, 0)}, DefaultGeometry)

	if len(series.Points) != 3 {
		t.Fatalf("points: got %d", len(series.Points))
	}
	// After sorting, values run 5, 0, -2: strictly descending y-inverted, so
	// the first point is the highest (smallest y).
	if !(series.Points[0].Y < series.Points[1].Y && series.Points[1].Y < series.Points[2].Y) {
		t.Errorf("projection not sorted by time: %+v", series.Points)
	}
	if series.Trend != "negative" {
		t.Errorf("trend last(-2) vs first(5): got %s", series.Trend)
	}
	if series.Min != -2 || series.Max != 5 {
		t.Errorf("min/max: got %v/%v", series.Min, series.Max)
	}
}

func TestProjectXSpacing(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	geo := Geometry{Width: 100, Height: 100, Padding: 20}
	series := Project([]models.PnLSnapshot{snap(t0, 0), snap(t0.Add(time.Hour), 1), snap(t0.Add(2*time.Hour), 2)}, geo)

	wantX := []float64{20, 50, 80}
	for i, p := range series.Points {
		if p.X != wantX[i] {
			t.Errorf("point %d x: got %v want %v", i, p.X, wantX[i])
		}
	}
	// Extremes touch the padded edges.
	if series.Points[0].Y != 80 || series.Points[2].Y != 20 {
		t.Errorf("y extremes: got %v and %v", series.Points[0].Y, series.Points[2].Y)
	}
}

func TestProjectFlatSeries(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := Project([]models.PnLSnapshot{snap(t0, 7), snap(t0.Add(time.Hour), 7)}, DefaultGeometry)
	for _, p := range series.Points {
		if p.Y != DefaultGeometry.Height-DefaultGeometry.Padding {
			t.Errorf("flat series must project without dividing by zero: %+v", p)
		}
	}
	if series.Trend != "positive" {
		t.Errorf("flat trend counts as positive: got %s", series.Trend)
	}
}

func TestProjectSinglePoint(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := Project([]models.PnLSnapshot{snap(t0, 3)}, DefaultGeometry)
	if len(series.Points) != 1 {
		t.Fatalf("points: got %d", len(series.Points))
	}
	if series.Points[0].X != DefaultGeometry.Padding {
		t.Errorf("single point x: got %v", series.Points[0].X)
	}
}

func TestProjectEmpty(t *testing.T) {
	series := Project(nil, DefaultGeometry)
	if len(series.Points) != 0 {
		t.Errorf("empty series: got %d points", len(series.Points))
	}
}
