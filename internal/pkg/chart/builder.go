package chart

import (
	"math"
	"slices"

	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/stacking"
)

// Default margins, before auto-margins kick in.
const (
	defaultMarginTop    = 20
	defaultMarginBottom = 50
	defaultMarginLeft   = 50
	defaultMarginRight  = 50
)

// Build converts series and options into a plot specification for a container of the given size.
//
// Build is deterministic: identical inputs always yield an identical [model.PlotSpec].
// It fails with a [model.InvalidSeriesError] if any point cannot be normalized,
// in which case nothing is rendered.
func Build(series []model.Series, opts model.ChartOptions, width, height int) (model.PlotSpec, error) {
	return build(series, opts, width, height, DefaultPalette(), nil)
}

func build(series []model.Series, opts model.ChartOptions, width, height int, palette Palette, overrides map[int]model.Visibility) (model.PlotSpec, error) {
	samples, err := model.NormalizeAll(series)
	if err != nil {
		return model.PlotSpec{}, err
	}

	opts = withDefaults(opts)
	traces := prepareTraces(series, samples, opts, palette)

	for i, v := range overrides {
		if i < len(traces) {
			traces[i].Visible = v
		}
	}

	restack(opts, traces)

	return model.PlotSpec{
		Traces: traces,
		Layout: prepareLayout(opts, traces, width, height),
		Config: model.DefaultRenderOptions(),
		Type:   opts.GlobalSeriesType,
		Stack:  opts.Series.Stacking,
	}, nil
}

func withDefaults(opts model.ChartOptions) model.ChartOptions {
	if opts.GlobalSeriesType == "" {
		opts.GlobalSeriesType = model.SeriesTypeLine
	}

	if opts.Series.Stacking == "" {
		opts.Series.Stacking = model.StackingNone
	}

	if opts.Legend == "" {
		opts.Legend = model.LegendPositionRight
	}

	return opts
}

func prepareTraces(series []model.Series, samples [][]model.Sample, opts model.ChartOptions, palette Palette) []model.Trace {
	traces := make([]model.Trace, 0, len(series))

	for i, s := range series {
		trace := model.Trace{
			Name:    s.Name,
			Visible: model.Visible,
			Color:   palette.Color(i),
		}

		for _, sample := range samples[i] {
			trace.OwnX = append(trace.OwnX, sample.X)
			trace.Unstacked = append(trace.Unstacked, sample.Y)
		}

		trace.X = slices.Clone(trace.OwnX)
		trace.Y = slices.Clone(trace.Unstacked)

		switch opts.GlobalSeriesType {
		case model.SeriesTypeLine:
			trace.Type = model.TraceScatter
			trace.Mode = "lines"
		case model.SeriesTypeArea:
			trace.Type = model.TraceScatter
			trace.Mode = "lines"
			trace.Fill = "tozeroy"
			if opts.Series.Stacking.IsStacked() && i > 0 {
				trace.Fill = "tonexty"
			}
		case model.SeriesTypeScatter:
			trace.Type = model.TraceScatter
			trace.Mode = "markers"
		case model.SeriesTypeColumn:
			trace.Type = model.TraceBar
		case model.SeriesTypeBar:
			trace.Type = model.TraceBar
			trace.Orientation = "h"
		case model.SeriesTypeHistogram:
			trace.Type = model.TraceHistogram
		case model.SeriesTypeBox:
			trace.Type = model.TraceBox
		case model.SeriesTypePie:
			trace.Type = model.TracePie
			trace.Labels = make([]string, 0, len(trace.OwnX))
			for _, x := range trace.OwnX {
				trace.Labels = append(trace.Labels, x.String())
			}
			trace.Values = slices.Clone(trace.Unstacked)
			trace.X = nil
			trace.Y = nil
		}

		traces = append(traces, trace)
	}

	return traces
}

// restack recomputes stacked values after the visibility of traces changed.
//
// Area traces are stacked here. Stacked bars are drawn stacked by the plotting library,
// but percent shares must be computed beforehand.
func restack(opts model.ChartOptions, traces []model.Trace) {
	switch {
	case opts.IsStackedArea():
		stacking.Apply(opts.Series.Stacking, traces)
	case opts.GlobalSeriesType.IsBar() && opts.Series.Stacking == model.StackingPercent:
		stacking.Shares(traces)
	}
}

func prepareLayout(opts model.ChartOptions, traces []model.Trace, width, height int) model.Layout {
	opts = withDefaults(opts)
	isPie := opts.GlobalSeriesType == model.SeriesTypePie

	layout := model.Layout{
		Width:      width,
		Height:     height,
		Title:      opts.Title,
		ShowLegend: opts.Legend != model.LegendPositionNone && (len(traces) > 1 || isPie),
		Legend:     prepareLegend(opts),
		Margin: model.Margin{
			Top:    defaultMarginTop,
			Bottom: defaultMarginBottom,
			Left:   defaultMarginLeft,
			Right:  defaultMarginRight,
		},
	}

	switch {
	case opts.GlobalSeriesType.IsBar() && opts.Series.Stacking.IsStacked():
		layout.BarMode = "stack"
	case opts.GlobalSeriesType.IsBar():
		layout.BarMode = "group"
	case opts.GlobalSeriesType == model.SeriesTypeHistogram:
		layout.BarMode = "overlay"
	}

	if isPie {
		return layout
	}

	layout.XAxis = prepareXAxis(opts, traces)
	layout.YAxis = prepareYAxis(opts, traces)

	return layout
}

func prepareLegend(opts model.ChartOptions) model.Legend {
	legend := model.Legend{Position: opts.Legend}

	switch opts.Legend {
	case model.LegendPositionBottom:
		legend.X, legend.Y, legend.Orientation = 0, -0.2, "h"
	case model.LegendPositionTop:
		legend.X, legend.Y, legend.Orientation = 0, 1.1, "h"
	default:
		legend.X, legend.Y, legend.Orientation = 1.02, 1, "v"
	}

	if opts.Series.Stacking.IsStacked() && (opts.GlobalSeriesType == model.SeriesTypeArea || opts.GlobalSeriesType.IsBar()) {
		legend.TraceOrder = "reversed"
	}

	return legend
}

func prepareXAxis(opts model.ChartOptions, traces []model.Trace) model.Axis {
	union := stacking.XUnion(traces)
	axis := model.Axis{
		Title:     opts.XAxisTitle,
		Visible:   true,
		AutoRange: true,
		Type:      axisType(union),
	}

	if opts.GlobalSeriesType == model.SeriesTypeHistogram || opts.GlobalSeriesType == model.SeriesTypeBox {
		axis.Type = model.AxisCategory
		axis.TickText = traceNames(traces)

		return axis
	}

	switch axis.Type {
	case model.AxisCategory:
		axis.TickText = make([]string, 0, len(union))
		for _, x := range union {
			axis.TickText = append(axis.TickText, x.String())
		}
	default:
		if len(union) > 0 {
			axis.AutoRange = false
			axis.Range = []model.Value{union[0], union[len(union)-1]}
		}
	}

	return axis
}

func prepareYAxis(opts model.ChartOptions, traces []model.Trace) model.Axis {
	axis := model.Axis{
		Title:     opts.YAxisTitle,
		Type:      model.AxisLinear,
		Visible:   true,
		AutoRange: true,
	}

	if opts.Series.Stacking == model.StackingPercent && (opts.IsStackedArea() || opts.GlobalSeriesType.IsBar()) {
		axis.AutoRange = false
		axis.Range = []model.Value{model.Number(0), model.Number(100)} //nolint:mnd // percent

		return axis
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, trace := range traces {
		if !trace.Visible.IsVisible() {
			continue
		}

		for _, y := range trace.Y {
			lo = min(lo, y)
			hi = max(hi, y)
		}
	}

	if math.IsInf(lo, 1) {
		return axis
	}

	if opts.GlobalSeriesType.IsBar() || opts.GlobalSeriesType == model.SeriesTypeArea {
		lo = min(lo, 0)
	}

	axis.AutoRange = false
	axis.Range = []model.Value{model.Number(lo), model.Number(hi)}

	return axis
}

func axisType(values []model.Value) model.AxisType {
	if len(values) == 0 {
		return model.AxisLinear
	}

	kind := values[0].Kind
	for _, v := range values[1:] {
		if v.Kind != kind {
			return model.AxisCategory
		}
	}

	switch kind {
	case model.KindNumber:
		return model.AxisLinear
	case model.KindTime:
		return model.AxisDate
	default:
		return model.AxisCategory
	}
}

func traceNames(traces []model.Trace) []string {
	names := make([]string, 0, len(traces))
	for _, t := range traces {
		names = append(names, t.Name)
	}

	return names
}
