package stats

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"

	"helixsim/internal/model"
)

const (
	chartWidth  = 800
	chartHeight = 400
)

// RenderFitnessChart plots fitness per generation. Fewer than two points is
// not enough for a line and writes nothing.
func RenderFitnessChart(path string, stats []model.GenerationStats) error {
	if len(stats) < 2 {
		return nil
	}
	xs := make([]float64, len(stats))
	ys := make([]float64, len(stats))
	for i, s := range stats {
		xs[i] = float64(s.Generation)
		ys[i] = s.Fitness
	}
	graph := chart.Chart{
		Title:  "Fitness by generation",
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name:  "Generation",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Fitness",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "fitness",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 3.0},
			},
		},
	}
	return renderPNG(path, graph)
}

// RenderPopulationChart plots population over time.
func RenderPopulationChart(path string, history []model.GrowthPoint) error {
	if len(history) < 2 {
		return nil
	}
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	maxPop := 1.0
	for i, p := range history {
		xs[i] = float64(p.Time)
		ys[i] = float64(p.Population)
		if ys[i] > maxPop {
			maxPop = ys[i]
		}
	}
	graph := chart.Chart{
		Title:  "Population",
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name:  "Time step",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Population",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: maxPop * 1.05},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "population",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 3.0},
			},
		},
	}
	return renderPNG(path, graph)
}

func renderPNG(path string, graph chart.Chart) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		_ = file.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return file.Close()
}
