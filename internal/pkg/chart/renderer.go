package chart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fredbi/chartspec/internal/pkg/custom"
	"github.com/fredbi/chartspec/internal/pkg/debounce"
	"github.com/fredbi/chartspec/internal/pkg/margin"
	"github.com/fredbi/chartspec/internal/pkg/model"
)

// Drawer is a plotting backend, which draws plot specifications.
type Drawer interface {
	// Draw replaces the current plot with a new one.
	Draw(spec model.PlotSpec) error

	// Relayout applies a new layout to the current plot, leaving traces untouched.
	Relayout(layout model.Layout) error
}

// Renderer keeps a plot specification consistent with its inputs: series, options and container size.
//
// Besides the current inputs, the only state owned by a [Renderer] is the legend visibility
// set by [Renderer.ToggleLegendSeries]. It is keyed by trace index, and reset whenever the
// order of series changes.
//
// A [Renderer] is safe for concurrent use. Debounced passes run on timer goroutines.
type Renderer struct {
	options

	mu        sync.Mutex
	series    []model.Series
	chartOpts model.ChartOptions
	container model.Container
	spec      model.PlotSpec
	rendered  bool
	names     []string
	overrides map[int]model.Visibility
	passes    int

	margins *debounce.Debouncer
	resize  *debounce.Debouncer
	canvas  *custom.Canvas
}

// New builds a [Renderer].
func New(opts ...Option) *Renderer {
	o := optionsWithDefaults(opts)

	return &Renderer{
		options:   o,
		overrides: make(map[int]model.Visibility),
		margins:   debounce.New(o.window),
		resize:    debounce.New(o.window),
		canvas:    custom.NewCanvas(),
	}
}

// Render builds the plot specification for the series and options, in the container.
//
// Legend visibility set by previous toggles is preserved as long as the series keep the same order.
// On error, the previous state of the renderer is kept.
func (r *Renderer) Render(series []model.Series, opts model.ChartOptions, container model.Container) (model.PlotSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := model.Names(series)
	overrides := r.overrides
	if !model.SameOrder(names, r.names) {
		overrides = make(map[int]model.Visibility)
	}

	width, height := container.Size()
	spec, err := build(series, opts, width, height, r.palette, overrides)
	if err != nil {
		return model.PlotSpec{}, err
	}

	r.series = series
	r.chartOpts = opts
	r.container = container
	r.names = names
	r.overrides = overrides
	r.spec = spec
	r.rendered = true
	r.passes = 0

	return spec.Clone(), nil
}

// Spec returns a copy of the current plot specification.
func (r *Renderer) Spec() (model.PlotSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.spec.Clone(), r.rendered
}

// ApplyAutoMargins measures the margins required by the current plot in the container.
//
// If they differ from the margins of layout, layout is updated in place and ApplyAutoMargins
// returns true: the plot must be laid out again. Otherwise layout is left untouched.
func (r *Renderer) ApplyAutoMargins(layout *model.Layout, container model.Container) bool {
	r.mu.Lock()
	spec := r.spec.Clone()
	r.mu.Unlock()

	spec.Layout = *layout

	return margin.Apply(&layout.Margin, r.measurer.Measure(spec, container))
}

// RequestAutoMargins schedules a debounced auto-margin pass on the current plot.
//
// Bursts of requests collapse into one pass. When margins change, the drawer lays the plot out
// again and another pass is requested, up to the configured number of passes per render or resize.
func (r *Renderer) RequestAutoMargins() {
	r.margins.Trigger(r.autoMarginPass)
}

func (r *Renderer) autoMarginPass() {
	r.mu.Lock()
	if !r.rendered || r.container == nil {
		r.mu.Unlock()

		return
	}

	if r.passes >= r.maxMarginPasses {
		r.mu.Unlock()
		r.logger.Debug("auto-margin passes exhausted", slog.Int("passes", r.maxMarginPasses))

		return
	}

	required := r.measurer.Measure(r.spec, r.container)
	if !margin.Apply(&r.spec.Layout.Margin, required) {
		r.mu.Unlock()

		return
	}

	r.passes++
	layout := r.spec.Layout.Clone()
	r.mu.Unlock()

	r.logger.Debug("margins adjusted",
		slog.Int("top", layout.Margin.Top),
		slog.Int("bottom", layout.Margin.Bottom),
		slog.Int("left", layout.Margin.Left),
		slog.Int("right", layout.Margin.Right),
	)

	if r.drawer != nil {
		if err := r.drawer.Relayout(layout); err != nil {
			r.logger.Error("relayout failed", slog.String("error", (&RenderFailure{Cause: err}).Error()))

			return
		}
	}

	// a new layout is a new render: measure again
	r.RequestAutoMargins()
}

// OnResize recomputes the layout of the current plot for a new container size.
//
// Traces are left unchanged.
func (r *Renderer) OnResize(container model.Container) (model.PlotSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.rendered {
		return model.PlotSpec{}, ErrNotRendered
	}

	width, height := container.Size()
	r.container = container
	r.spec.Layout = prepareLayout(r.chartOpts, r.spec.Traces, width, height)
	r.passes = 0

	return r.spec.Clone(), nil
}

// HandleResize is the debounced resize handler: it runs [Renderer.OnResize], lays the plot out
// again, then requests auto-margins.
//
// A newer resize supersedes a pending one.
func (r *Renderer) HandleResize(container model.Container) {
	r.resize.Trigger(func() {
		spec, err := r.OnResize(container)
		if err != nil {
			r.logger.Debug("resize ignored", slog.String("error", err.Error()))

			return
		}

		if r.drawer != nil {
			if err := r.drawer.Relayout(spec.Layout); err != nil {
				r.logger.Error("relayout failed", slog.String("error", (&RenderFailure{Cause: err}).Error()))

				return
			}
		}

		r.RequestAutoMargins()
	})
}

// ToggleLegendSeries flips the visibility of a trace between visible and legend-only.
//
// Stacked area traces (and percent-stacked bars) are stacked again over the visible traces.
// Without stacking, only the visibility changes. The updated traces are drawn again if a drawer is set.
func (r *Renderer) ToggleLegendSeries(traceIndex int) ([]model.Trace, error) {
	r.mu.Lock()

	if traceIndex < 0 || traceIndex >= len(r.spec.Traces) {
		r.mu.Unlock()

		return nil, fmt.Errorf("toggling trace %d of %d: %w", traceIndex, len(r.spec.Traces), ErrTraceIndex)
	}

	visibility := r.spec.Traces[traceIndex].Visible.Toggle()
	r.spec.Traces[traceIndex].Visible = visibility
	r.overrides[traceIndex] = visibility
	restack(withDefaults(r.chartOpts), r.spec.Traces)

	spec := r.spec.Clone()
	r.mu.Unlock()

	r.logger.Debug("legend toggled", slog.Int("trace", traceIndex), slog.String("visible", string(visibility)))

	if r.drawer != nil {
		if err := r.drawer.Draw(spec); err != nil {
			return spec.Traces, &RenderFailure{Cause: err}
		}
	}

	return spec.Traces, nil
}

// TraceForLegendItem maps the position of an entry in the displayed legend to a trace index.
//
// Stacked charts display their legend in reverse order, so that entries match the stack.
func (r *Renderer) TraceForLegendItem(item int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spec.Layout.Legend.TraceOrder == "reversed" {
		return len(r.spec.Traces) - 1 - item
	}

	return item
}

// Update renders the series and options, draws the result and requests auto-margins.
//
// When the options carry custom code and custom code is enabled, the custom code draws the plot instead.
// Drawer errors are reported as [RenderFailure], except for plots drawn by custom code: these failures
// are only logged when console logs are enabled.
func (r *Renderer) Update(ctx context.Context, series []model.Series, opts model.ChartOptions, container model.Container) error {
	if opts.CustomCode != "" && r.executor != nil && r.executor.Enabled() {
		return r.updateCustom(ctx, series, opts, container)
	}

	spec, err := r.Render(series, opts, container)
	if err != nil {
		return err
	}

	if r.drawer != nil {
		if err := r.drawer.Draw(spec); err != nil {
			return &RenderFailure{Cause: err}
		}
	}

	r.RequestAutoMargins()

	return nil
}

func (r *Renderer) updateCustom(ctx context.Context, series []model.Series, opts model.ChartOptions, container model.Container) error {
	r.executor.Render(ctx, opts, series, container, r.canvas)

	traces := r.canvas.Traces()
	for i := range traces {
		if traces[i].Color == "" {
			traces[i].Color = r.palette.Color(i)
		}
	}

	width, height := container.Size()
	opts = withDefaults(opts)
	spec := model.PlotSpec{
		Traces: traces,
		Layout: prepareLayout(opts, traces, width, height),
		Config: model.DefaultRenderOptions(),
		Type:   opts.GlobalSeriesType,
		Stack:  opts.Series.Stacking,
	}

	r.mu.Lock()
	r.series = series
	r.chartOpts = opts
	r.container = container
	r.names = model.Names(series)
	r.overrides = make(map[int]model.Visibility)
	r.spec = spec
	r.rendered = true
	r.passes = 0
	r.mu.Unlock()

	if r.drawer != nil {
		if err := r.drawer.Draw(spec.Clone()); err != nil {
			// a plot drawn by custom code is isolated like the custom code itself
			failure := &custom.CustomCodeFailure{Cause: &RenderFailure{Cause: err}}
			if opts.EnableConsoleLogs {
				r.logger.Error("error while drawing custom graph", slog.String("error", failure.Error()))
			}
		}
	}

	return nil
}

// Flush runs pending debounced passes immediately. It reports whether any pass ran.
func (r *Renderer) Flush() bool {
	resized := r.resize.Flush()
	adjusted := r.margins.Flush()

	return resized || adjusted
}

// Close cancels pending debounced passes.
func (r *Renderer) Close() {
	r.resize.Stop()
	r.margins.Stop()
}
