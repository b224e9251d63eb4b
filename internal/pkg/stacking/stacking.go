// Package stacking computes cumulative and percentage stacks over plot traces.
//
// All functions operate in place on the Y (and X) values of visible traces. Each trace keeps its own
// x values and unstacked y values, so stacks can be recomputed whenever trace visibility changes.
package stacking

import (
	"slices"

	"github.com/fredbi/chartspec/internal/pkg/model"
)

const percent = 100

// Apply the stacking mode to traces.
//
// With [model.StackingNone] (or the empty mode), traces are restored to their unstacked values.
func Apply(mode model.Stacking, traces []model.Trace) {
	switch mode {
	case model.StackingNormal:
		Normal(traces)
	case model.StackingPercent:
		Percent(traces)
	default:
		Reset(traces)
	}
}

// XUnion returns the deduplicated x values of all traces, legend-only traces included.
//
// Numeric or time values are sorted in ascending order. Mixed or categorical values
// keep their order of first appearance.
func XUnion(traces []model.Trace) []model.Value {
	seen := make(map[model.Key]struct{})
	var union []model.Value

	for _, trace := range traces {
		for _, x := range trace.OwnX {
			key := x.Key()
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			union = append(union, x)
		}
	}

	if sortable(union) {
		slices.SortStableFunc(union, model.Compare)
	}

	return union
}

// Normal stacks visible traces: each trace is drawn at the running sum of itself and all
// visible traces below it. Absent x values count as zero.
//
// Legend-only traces do not contribute, and keep their own unstacked values.
func Normal(traces []model.Trace) {
	union := XUnion(traces)
	cumulative := make([]float64, len(union))

	for i := range traces {
		trace := &traces[i]
		if !trace.Visible.IsVisible() {
			restore(trace)

			continue
		}

		own := valuesByX(*trace)
		y := make([]float64, len(union))
		for k, x := range union {
			cumulative[k] += own[x.Key()]
			y[k] = cumulative[k]
		}

		trace.X = slices.Clone(union)
		trace.Y = y
	}
}

// Percent stacks visible traces like [Normal], then rescales every x so that the topmost
// visible trace reaches 100.
//
// When visible traces sum to zero at some x (e.g. no visible trace has a value there),
// all stacked values at that x are zero.
func Percent(traces []model.Trace) {
	totals := visibleTotals(traces)
	Normal(traces)

	for i := range traces {
		trace := &traces[i]
		if !trace.Visible.IsVisible() {
			continue
		}

		for k := range trace.Y {
			trace.Y[k] = ratio(trace.Y[k], totals[k])
		}
	}
}

// Shares computes the non-cumulative percentage of each visible trace at every x.
//
// This suits bar charts, for which the drawing library stacks bars by itself.
func Shares(traces []model.Trace) {
	union := XUnion(traces)
	totals := visibleTotals(traces)

	for i := range traces {
		trace := &traces[i]
		if !trace.Visible.IsVisible() {
			restore(trace)

			continue
		}

		own := valuesByX(*trace)
		y := make([]float64, len(union))
		for k, x := range union {
			y[k] = ratio(own[x.Key()], totals[k])
		}

		trace.X = slices.Clone(union)
		trace.Y = y
	}
}

// Reset restores every trace to its own x values and unstacked y values.
func Reset(traces []model.Trace) {
	for i := range traces {
		restore(&traces[i])
	}
}

// visibleTotals sums the unstacked values of visible traces, aligned on [XUnion].
func visibleTotals(traces []model.Trace) []float64 {
	union := XUnion(traces)
	totals := make([]float64, len(union))

	for _, trace := range traces {
		if !trace.Visible.IsVisible() {
			continue
		}

		own := valuesByX(trace)
		for k, x := range union {
			totals[k] += own[x.Key()]
		}
	}

	return totals
}

// valuesByX indexes the unstacked values of a trace. Duplicate x values are summed.
func valuesByX(trace model.Trace) map[model.Key]float64 {
	own := make(map[model.Key]float64, len(trace.OwnX))
	for j, x := range trace.OwnX {
		if j >= len(trace.Unstacked) {
			break
		}

		own[x.Key()] += trace.Unstacked[j]
	}

	return own
}

func restore(trace *model.Trace) {
	trace.X = slices.Clone(trace.OwnX)
	trace.Y = slices.Clone(trace.Unstacked)
}

func ratio(value, total float64) float64 {
	if total == 0 {
		return 0
	}

	return value / total * percent
}

func sortable(values []model.Value) bool {
	if len(values) == 0 {
		return false
	}

	kind := values[0].Kind
	if kind == model.KindCategory {
		return false
	}

	for _, v := range values[1:] {
		if v.Kind != kind {
			return false
		}
	}

	return true
}
