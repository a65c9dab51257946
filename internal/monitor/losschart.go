// Package monitor renders debugging views of training behavior: loss
// curves from a recorded run and spatial summaries of an assignment.
package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kestrel-vision/detcore/internal/trainlog"
)

// RenderLossChart writes an HTML line chart of a run's loss components
// to w. One series per component, x axis is the step index.
func RenderLossChart(w io.Writer, title string, steps []trainlog.StepRecord) error {
	if len(steps) == 0 {
		return fmt.Errorf("monitor: no steps to chart")
	}

	x := make([]int, len(steps))
	total := make([]opts.LineData, len(steps))
	iou := make([]opts.LineData, len(steps))
	dfl := make([]opts.LineData, len(steps))
	class := make([]opts.LineData, len(steps))
	var gating []opts.LineData
	for i, s := range steps {
		x[i] = s.Step
		total[i] = opts.LineData{Value: s.Total}
		iou[i] = opts.LineData{Value: s.IoU}
		dfl[i] = opts.LineData{Value: s.DFL}
		class[i] = opts.LineData{Value: s.Class}
		if s.Gating != nil {
			gating = append(gating, opts.LineData{Value: *s.Gating})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("steps=%d", len(steps))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "loss"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(x).
		AddSeries("total", total).
		AddSeries("iou", iou).
		AddSeries("dfl", dfl).
		AddSeries("class", class)
	if len(gating) == len(steps) {
		line.AddSeries("gating", gating)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("monitor: render loss chart: %w", err)
	}
	return nil
}
