package charts

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"buyside-ai/models"
)

const (
	imageWidth  = 10 * vg.Inch
	imageHeight = 5 * vg.Inch

	// maxBarLabels caps the category labels drawn under a bar chart
	maxBarLabels = 12
)

// RenderPNG draws the series as a line or grouped bar chart and returns PNG bytes
func RenderPNG(series *models.ChartSeries, chartType models.ChartType, title string) ([]byte, error) {
	if series == nil || series.Len() == 0 || len(series.Tickers) == 0 {
		return nil, models.ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.Legend.Top = true
	if series.Mode == models.ModePercentChange {
		p.Y.Label.Text = "Change (%)"
	} else {
		p.Y.Label.Text = "Growth of 1"
	}

	var err error
	switch chartType {
	case models.ChartLine:
		err = addLines(p, series)
	case models.ChartBar:
		err = addBars(p, series)
	default:
		err = fmt.Errorf("%w: %q", models.ErrInvalidChartType, chartType)
	}
	if err != nil {
		return nil, err
	}

	canvas := vgimg.New(imageWidth, imageHeight)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func addLines(p *plot.Plot, series *models.ChartSeries) error {
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	for j, ticker := range series.Tickers {
		pts := make(plotter.XYs, series.Len())
		for i, d := range series.Dates {
			pts[i].X = float64(d.Unix())
			pts[i].Y = series.Values[i][j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line for %s: %w", ticker, err)
		}
		line.LineStyle.Color = plotutil.Color(j)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(ticker, line)
	}
	p.Add(plotter.NewGrid())
	return nil
}

func addBars(p *plot.Plot, series *models.ChartSeries) error {
	n := len(series.Tickers)
	width := vg.Points(48 / float64(n))
	if series.Len() > maxBarLabels {
		width = vg.Points(8 / float64(n))
	}

	for j, ticker := range series.Tickers {
		values := make(plotter.Values, series.Len())
		for i := range series.Dates {
			values[i] = series.Values[i][j]
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("failed to build bars for %s: %w", ticker, err)
		}
		bars.Color = plotutil.Color(j)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(j)-float64(n-1)/2) * width
		p.Add(bars)
		p.Legend.Add(ticker, bars)
	}

	step := 1
	if series.Len() > maxBarLabels {
		step = (series.Len() + maxBarLabels - 1) / maxBarLabels
	}
	labels := make([]string, series.Len())
	for i, d := range series.Dates {
		if i%step == 0 {
			labels[i] = d.Format("2006-01-02")
		}
	}
	p.NominalX(labels...)
	return nil
}
