package commands

import (
	"battery-status-bot/internal/types"
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	ChartWindow   = 24 * time.Hour
	chartCacheTTL = 5 * time.Minute
	chartCacheKey = "soc"
)

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	gridColor       = drawing.Color{R: 100, G: 100, B: 100, A: 128}
)

// ReadingsFunc loads stored samples for a device, oldest first.
type ReadingsFunc func(ctx context.Context, deviceRef string, since time.Time) ([]types.ReadingPoint, error)

// CommandChart renders the SoC history of all devices over the last day.
// A nil chart with a caption means there is nothing to draw yet.
func CommandChart(ctx context.Context, devices []types.MonitoredDevice, load ReadingsFunc, now time.Time) ([]byte, string, error) {
	log.Debug("processing command /chart")

	if cachedItem, found := cacheGet(chartCacheKey, now); found {
		log.Debug("returning cached chart")
		return cachedItem.ChartData, cachedItem.Caption, nil
	}

	since := now.Add(-ChartWindow)
	var series []chart.Series
	var summary []string
	for i, device := range devices {
		points, err := load(ctx, device.Ref, since)
		if err != nil {
			return nil, "", errors.Wrapf(err, "loading readings for %s", device.Ref)
		}
		if len(points) < 2 {
			continue
		}
		series = append(series, timeSeries(device.DisplayName(), points, chart.GetDefaultColor(i)))
		summary = append(summary, summarize(device.DisplayName(), points))
	}

	if len(series) == 0 {
		return nil, fmt.Sprintf("📉 %s", helpers.EscapeMarkdownV2(translation.Translate("Not enough data for a chart yet"))), nil
	}

	chartData, err := renderChart(series)
	if err != nil {
		return nil, "", err
	}

	caption := fmt.Sprintf("📈 *%s*\n%s",
		helpers.EscapeMarkdownV2(translation.Translate("Battery charge, last 24 hours")),
		strings.Join(summary, "\n"))

	cacheSet(chartCacheKey, chartData, caption, now.Add(chartCacheTTL))
	return chartData, caption, nil
}

func timeSeries(name string, points []types.ReadingPoint, color drawing.Color) chart.TimeSeries {
	xs := make([]time.Time, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, p.At)
		ys = append(ys, p.SoC)
	}
	return chart.TimeSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
			FillColor:   color.WithAlpha(40),
		},
		XValues: xs,
		YValues: ys,
	}
}

func summarize(name string, points []types.ReadingPoint) string {
	lo, hi := points[0].SoC, points[0].SoC
	for _, p := range points[1:] {
		lo = min(lo, p.SoC)
		hi = max(hi, p.SoC)
	}
	last := points[len(points)-1].SoC
	return fmt.Sprintf("📍 %s: %s%% \\(%s %s%%, %s %s%%\\)",
		helpers.EscapeMarkdownV2(name),
		helpers.FormatPercent(last),
		helpers.EscapeMarkdownV2(translation.Translate("min")), helpers.FormatPercent(lo),
		helpers.EscapeMarkdownV2(translation.Translate("max")), helpers.FormatPercent(hi))
}

func renderChart(series []chart.Series) ([]byte, error) {
	axisStyle := chart.Style{FontColor: textColor, StrokeColor: textColor, FontSize: 10}

	graph := chart.Chart{
		Title:      translation.Translate("Battery charge"),
		TitleStyle: chart.Style{FontColor: textColor, FontSize: 14},
		Width:      1200,
		Height:     500,
		Background: chart.Style{
			FillColor: backgroundColor,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: backgroundColor},
		XAxis: chart.XAxis{
			Style:          axisStyle,
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04"),
		},
		YAxis: chart.YAxis{
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: 0, Max: 100},
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatNumberUS(f, 0) + "%"
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph, chart.Style{FillColor: backgroundColor, FontColor: textColor})}

	buffer := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, errors.Wrap(err, "rendering chart")
	}
	return buffer.Bytes(), nil
}
