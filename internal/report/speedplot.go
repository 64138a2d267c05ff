package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ridership.report/internal/dataset"
	"github.com/banshee-data/ridership.report/internal/label"
)

// SpeedPlotter renders one PNG per vehicle: the speed timeline with the
// detected stop segments shaded and boarding/alighting rows marked. Purely a
// post-run diagnostic; failures here never affect the dataset outputs.
type SpeedPlotter struct {
	outputDir string
}

func NewSpeedPlotter(outputDir string) *SpeedPlotter {
	return &SpeedPlotter{outputDir: outputDir}
}

// PlotVehicle writes <dir>/speed_<vehicle>.png from the vehicle's base rows
// and stop segments. rows must be chronological and all for the same vehicle.
func (sp *SpeedPlotter) PlotVehicle(vehicleID string, rows []dataset.BaseRow, stops []label.StopSegment) error {
	if len(rows) == 0 {
		return fmt.Errorf("no rows for vehicle %s", vehicleID)
	}
	if err := os.MkdirAll(sp.outputDir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Vehicle %s speed profile", vehicleID)
	p.X.Label.Text = "seconds from sequence start"
	p.Y.Label.Text = "speed"

	t0 := rows[0].EpochMillis
	maxSpeed := 0.0
	pts := make(plotter.XYs, 0, len(rows))
	var events plotter.XYs
	for i := range rows {
		r := &rows[i]
		if math.IsNaN(r.Speed) {
			continue
		}
		x := float64(r.EpochMillis-t0) / 1000
		pts = append(pts, plotter.XY{X: x, Y: r.Speed})
		if r.Speed > maxSpeed {
			maxSpeed = r.Speed
		}
		if r.Label != label.LabelNone {
			events = append(events, plotter.XY{X: x, Y: r.Speed})
		}
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	// Shade stop segments behind the speed line.
	for _, seg := range stops {
		box := plotter.XYs{
			{X: float64(seg.StartMillis-t0) / 1000, Y: 0},
			{X: float64(seg.StartMillis-t0) / 1000, Y: maxSpeed},
			{X: float64(seg.EndMillis-t0) / 1000, Y: maxSpeed},
			{X: float64(seg.EndMillis-t0) / 1000, Y: 0},
		}
		poly, err := plotter.NewPolygon(box)
		if err != nil {
			return fmt.Errorf("stop segment shade: %w", err)
		}
		poly.Color = color.RGBA{R: 200, G: 200, B: 255, A: 120}
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("speed line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("speed", line)

	if len(events) > 0 {
		scatter, err := plotter.NewScatter(events)
		if err != nil {
			return fmt.Errorf("event markers: %w", err)
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("boarding/alighting", scatter)
	}

	out := filepath.Join(sp.outputDir, fmt.Sprintf("speed_%s.png", vehicleID))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}
