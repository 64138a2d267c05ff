package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ridership.report/internal/dataset"
	"github.com/banshee-data/ridership.report/internal/label"
)

var labelNames = []string{"no change", "boarding", "alighting"}

// WriteLabelDistribution renders a grouped bar chart of the per-vehicle label
// distribution to an HTML file.
func WriteLabelDistribution(path string, rows []dataset.BaseRow) error {
	counts := make(map[string]*[3]int)
	for i := range rows {
		r := &rows[i]
		c, ok := counts[r.VehicleID]
		if !ok {
			c = &[3]int{}
			counts[r.VehicleID] = c
		}
		if r.Label >= label.LabelNone && r.Label <= label.LabelAlight {
			c[r.Label]++
		}
	}

	vehicles := make([]string, 0, len(counts))
	for id := range counts {
		vehicles = append(vehicles, id)
	}
	sort.Strings(vehicles)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Label distribution by vehicle",
			Subtitle: fmt.Sprintf("%d vehicles, %d samples", len(vehicles), len(rows)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(vehicles)
	for lv, name := range labelNames {
		data := make([]opts.BarData, 0, len(vehicles))
		for _, id := range vehicles {
			data = append(data, opts.BarData{Value: counts[id][lv]})
		}
		bar.AddSeries(name, data)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := bar.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render label distribution: %w", err)
	}
	return f.Close()
}
