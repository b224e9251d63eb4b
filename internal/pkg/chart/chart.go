package chart

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/stacking"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	echartsopts "github.com/go-echarts/go-echarts/v2/opts"
)

// ThemeRoma is the default go-echarts theme.
const ThemeRoma = "roma"

const (
	defaultFontSize = 12
	xAxisLabelAngle = 30
	areaOpacity     = 0.4
)

// EChartsDrawer is a [Drawer] producing go-echarts charts.
//
// The last drawn chart is available from [EChartsDrawer.Charter], e.g. to be added to a [Page].
type EChartsDrawer struct {
	mu      sync.Mutex
	theme   string
	spec    model.PlotSpec
	charter components.Charter
}

// NewEChartsDrawer builds a drawer with a go-echarts theme. An empty theme means [ThemeRoma].
func NewEChartsDrawer(theme string) *EChartsDrawer {
	if theme == "" {
		theme = ThemeRoma
	}

	return &EChartsDrawer{theme: theme}
}

// Draw converts the plot specification into a go-echarts chart.
func (d *EChartsDrawer) Draw(spec model.PlotSpec) error {
	charter, err := BuildECharts(spec, d.theme)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.spec = spec.Clone()
	d.charter = charter

	return nil
}

// Relayout draws the current traces again with a new layout.
func (d *EChartsDrawer) Relayout(layout model.Layout) error {
	d.mu.Lock()
	if d.charter == nil {
		d.mu.Unlock()

		return ErrNotRendered
	}

	spec := d.spec.Clone()
	d.mu.Unlock()

	spec.Layout = layout.Clone()

	return d.Draw(spec)
}

// Charter returns the last drawn chart, or nil.
func (d *EChartsDrawer) Charter() components.Charter {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.charter
}

// Spec returns the last drawn plot specification.
func (d *EChartsDrawer) Spec() model.PlotSpec {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.spec.Clone()
}

// BuildECharts converts a plot specification into a go-echarts chart.
//
// It rejects traces which are inconsistent or of an unknown type.
func BuildECharts(spec model.PlotSpec, theme string) (components.Charter, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	global := globalOptions(spec, theme)

	switch {
	case len(spec.Traces) == 0:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)

		return line, nil
	case spec.Traces[0].Type == model.TracePie:
		return buildPie(spec, global), nil
	case spec.Traces[0].Type == model.TraceBox:
		return buildBox(spec, global), nil
	case spec.Traces[0].Type == model.TraceHistogram:
		return buildHistogram(spec, global), nil
	case spec.Traces[0].Type == model.TraceBar:
		return buildBar(spec, global), nil
	case spec.Traces[0].Mode == "markers":
		return buildScatter(spec, global), nil
	default:
		return buildLine(spec, global), nil
	}
}

func validateSpec(spec model.PlotSpec) error {
	var errs []error

	for _, trace := range spec.Traces {
		switch trace.Type {
		case model.TraceScatter, model.TraceBar:
			if len(trace.X) != len(trace.Y) {
				errs = append(errs, fmt.Errorf("trace %q: %d x values for %d y values", trace.Name, len(trace.X), len(trace.Y)))
			}
		case model.TracePie:
			if len(trace.Labels) != len(trace.Values) {
				errs = append(errs, fmt.Errorf("trace %q: %d labels for %d values", trace.Name, len(trace.Labels), len(trace.Values)))
			}
		case model.TraceHistogram, model.TraceBox:
		default:
			errs = append(errs, fmt.Errorf("trace %q: unsupported trace type %q", trace.Name, trace.Type))
		}

		if len(spec.Traces) > 0 && (trace.Type == model.TracePie) != (spec.Traces[0].Type == model.TracePie) {
			errs = append(errs, fmt.Errorf("trace %q: pie traces cannot be mixed with other types", trace.Name))
		}
	}

	return errors.Join(errs...)
}

func globalOptions(spec model.PlotSpec, theme string) []charts.GlobalOpts {
	layout := spec.Layout

	titleOpts := echartsopts.Title{
		Title: layout.Title,
		TitleStyle: &echartsopts.TextStyle{
			FontSize: defaultFontSize,
		},
	}

	legendOpts := echartsopts.Legend{
		Show:     echartsopts.Bool(layout.ShowLegend),
		Selected: legendSelection(spec),
	}

	switch layout.Legend.Position {
	case model.LegendPositionBottom:
		legendOpts.X, legendOpts.Y = "left", "bottom"
	case model.LegendPositionTop:
		legendOpts.X, legendOpts.Y = "left", "top"
	default:
		legendOpts.X, legendOpts.Y, legendOpts.Orient = "right", "top", "vertical"
	}

	gridOpts := echartsopts.Grid{
		Top:    strconv.Itoa(layout.Margin.Top),
		Bottom: strconv.Itoa(layout.Margin.Bottom),
		Left:   strconv.Itoa(layout.Margin.Left),
		Right:  strconv.Itoa(layout.Margin.Right),
	}

	toolboxOpts := echartsopts.Toolbox{
		Left: "right",
		Feature: &echartsopts.ToolBoxFeature{
			SaveAsImage: &echartsopts.ToolBoxFeatureSaveAsImage{
				Title: "Save as image",
			},
		},
	}

	initOpts := echartsopts.Initialization{Theme: theme}
	if layout.Width > 0 {
		initOpts.Width = strconv.Itoa(layout.Width) + "px"
	}
	if layout.Height > 0 {
		initOpts.Height = strconv.Itoa(layout.Height) + "px"
	}

	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(initOpts),
		charts.WithToolboxOpts(toolboxOpts),
		charts.WithTitleOpts(titleOpts),
		charts.WithLegendOpts(legendOpts),
		charts.WithGridOpts(gridOpts),
		charts.WithTooltipOpts(echartsopts.Tooltip{
			Show:    echartsopts.Bool(true),
			Trigger: "axis",
		}),
	}

	if len(spec.Traces) > 0 && spec.Traces[0].Type != model.TracePie {
		global = append(global,
			charts.WithXAxisOpts(echartsopts.XAxis{
				Name: layout.XAxis.Title,
				Show: echartsopts.Bool(layout.XAxis.Visible),
				AxisLabel: &echartsopts.AxisLabel{
					Rotate: xAxisLabelAngle,
				},
			}),
			charts.WithYAxisOpts(echartsopts.YAxis{
				Name: layout.YAxis.Title,
				Show: echartsopts.Bool(layout.YAxis.Visible),
				Type: "value",
			}),
		)
	}

	return global
}

// legendSelection deselects legend-only traces.
func legendSelection(spec model.PlotSpec) map[string]bool {
	selected := make(map[string]bool, len(spec.Traces))
	for _, trace := range spec.Traces {
		selected[trace.Name] = trace.Visible.IsVisible()
	}

	return selected
}

// xLabels returns the labels of the x values of all traces, and the position of each x value.
func xLabels(traces []model.Trace) ([]string, map[model.Key]int) {
	aligned := make([]model.Trace, 0, len(traces))
	for _, trace := range traces {
		trace.OwnX = trace.X
		aligned = append(aligned, trace)
	}

	union := stacking.XUnion(aligned)
	labels := make([]string, 0, len(union))
	index := make(map[model.Key]int, len(union))

	for i, x := range union {
		labels = append(labels, x.String())
		index[x.Key()] = i
	}

	return labels, index
}

// alignY spreads the y values of a trace over the x labels. Missing values are nil.
func alignY(trace model.Trace, index map[model.Key]int, size int) []any {
	values := make([]any, size)
	for i, x := range trace.X {
		values[index[x.Key()]] = trace.Y[i]
	}

	return values
}

func buildLine(spec model.PlotSpec, global []charts.GlobalOpts) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(global...)

	labels, index := xLabels(spec.Traces)
	line.SetXAxis(labels)

	for _, trace := range spec.Traces {
		values := alignY(trace, index, len(labels))
		data := make([]echartsopts.LineData, 0, len(values))
		for _, v := range values {
			data = append(data, echartsopts.LineData{Value: v})
		}

		seriesOpts := []charts.SeriesOpts{
			charts.WithItemStyleOpts(echartsopts.ItemStyle{Color: trace.Color}),
			charts.WithLineStyleOpts(echartsopts.LineStyle{Color: trace.Color}),
		}

		if trace.Fill != "" {
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(echartsopts.AreaStyle{Opacity: echartsopts.Float(areaOpacity)}))
		}

		line.AddSeries(trace.Name, data, seriesOpts...)
	}

	return line
}

func buildScatter(spec model.PlotSpec, global []charts.GlobalOpts) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(global...)

	labels, index := xLabels(spec.Traces)
	scatter.SetXAxis(labels)

	for _, trace := range spec.Traces {
		values := alignY(trace, index, len(labels))
		data := make([]echartsopts.ScatterData, 0, len(values))
		for _, v := range values {
			data = append(data, echartsopts.ScatterData{Value: v})
		}

		scatter.AddSeries(trace.Name, data, charts.WithItemStyleOpts(echartsopts.ItemStyle{Color: trace.Color}))
	}

	return scatter
}

func buildBar(spec model.PlotSpec, global []charts.GlobalOpts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(global...)

	labels, index := xLabels(spec.Traces)
	bar.SetXAxis(labels)

	for _, trace := range spec.Traces {
		values := alignY(trace, index, len(labels))
		data := make([]echartsopts.BarData, 0, len(values))
		for i, v := range values {
			data = append(data, echartsopts.BarData{Name: labels[i], Value: v})
		}

		seriesOpts := []charts.SeriesOpts{
			charts.WithItemStyleOpts(echartsopts.ItemStyle{Color: trace.Color}),
		}

		if spec.Layout.BarMode == "stack" {
			seriesOpts = append(seriesOpts, charts.WithBarChartOpts(echartsopts.BarChart{Stack: "stack"}))
		}

		bar.AddSeries(trace.Name, data, seriesOpts...)
	}

	if len(spec.Traces) > 0 && spec.Traces[0].Orientation == "h" {
		return bar.XYReversal()
	}

	return bar
}

func buildPie(spec model.PlotSpec, global []charts.GlobalOpts) *charts.Pie {
	const full = 100

	pie := charts.NewPie()
	pie.SetGlobalOptions(global...)

	n := len(spec.Traces)
	for i, trace := range spec.Traces {
		data := make([]echartsopts.PieData, 0, len(trace.Values))
		for j, v := range trace.Values {
			data = append(data, echartsopts.PieData{Name: trace.Labels[j], Value: v})
		}

		center := []string{strconv.Itoa(full*(2*i+1)/(2*n)) + "%", "50%"}
		radius := strconv.Itoa(min(full/(n+1), 60)) + "%" //nolint:mnd // largest radius of a single pie

		pie.AddSeries(trace.Name, data, charts.WithPieChartOpts(echartsopts.PieChart{
			Center: center,
			Radius: radius,
		}))
	}

	return pie
}

func buildBox(spec model.PlotSpec, global []charts.GlobalOpts) *charts.BoxPlot {
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(global...)

	names := make([]string, 0, len(spec.Traces))
	data := make([]echartsopts.BoxPlotData, 0, len(spec.Traces))

	for _, trace := range spec.Traces {
		if !trace.Visible.IsVisible() || len(trace.Y) == 0 {
			continue
		}

		names = append(names, trace.Name)
		data = append(data, echartsopts.BoxPlotData{Name: trace.Name, Value: fiveNumbers(trace.Y)})
	}

	box.SetXAxis(names)
	box.AddSeries("box", data)

	return box
}

func buildHistogram(spec model.PlotSpec, global []charts.GlobalOpts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(global...)

	labels, counts := histogram(spec.Traces)
	bar.SetXAxis(labels)

	for i, trace := range spec.Traces {
		data := make([]echartsopts.BarData, 0, len(labels))
		for _, c := range counts[i] {
			data = append(data, echartsopts.BarData{Value: c})
		}

		bar.AddSeries(trace.Name, data, charts.WithItemStyleOpts(echartsopts.ItemStyle{Color: trace.Color, Opacity: echartsopts.Float(areaOpacity)}))
	}

	return bar
}

// histogram bins the values of all visible traces on shared bins. The number of bins is the square root
// of the largest number of values in a visible trace. Legend-only traces get empty bins.
func histogram(traces []model.Trace) ([]string, [][]int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	var largest int

	for _, trace := range traces {
		if !trace.Visible.IsVisible() {
			continue
		}

		largest = max(largest, len(trace.Y))
		for _, y := range trace.Y {
			lo = min(lo, y)
			hi = max(hi, y)
		}
	}

	counts := make([][]int, len(traces))
	if largest == 0 {
		return nil, counts
	}

	bins := max(1, int(math.Ceil(math.Sqrt(float64(largest)))))
	width := (hi - lo) / float64(bins)

	labels := make([]string, 0, bins)
	for b := range bins {
		from := lo + float64(b)*width
		labels = append(labels, strconv.FormatFloat(from, 'g', 4, 64)+"–"+strconv.FormatFloat(from+width, 'g', 4, 64)) //nolint:mnd // 4 significant digits
	}

	for i, trace := range traces {
		counts[i] = make([]int, bins)
		if !trace.Visible.IsVisible() {
			continue
		}

		for _, y := range trace.Y {
			b := bins - 1
			if width > 0 {
				b = min(bins-1, int((y-lo)/width))
			}
			counts[i][b]++
		}
	}

	return labels, counts
}

// fiveNumbers returns min, first quartile, median, third quartile and max.
func fiveNumbers(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return []float64{
		sorted[0],
		quantile(sorted, 0.25), //nolint:mnd // first quartile
		quantile(sorted, 0.5),  //nolint:mnd // median
		quantile(sorted, 0.75), //nolint:mnd // third quartile
		sorted[len(sorted)-1],
	}
}

// quantile interpolates linearly between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))

	return sorted[lower] + (sorted[upper]-sorted[lower])*(pos-float64(lower))
}
