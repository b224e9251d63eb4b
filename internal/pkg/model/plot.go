package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Visibility is the tri-state trace visibility understood by the plotting library.
//
// Only [Visible] and [LegendOnly] are produced by the renderer.
type Visibility string

// Trace visibility states.
const (
	Visible    Visibility = "true"
	LegendOnly Visibility = "legendonly"
)

// Toggle flips between [Visible] and [LegendOnly].
func (v Visibility) Toggle() Visibility {
	if v == LegendOnly {
		return Visible
	}

	return LegendOnly
}

// IsVisible is true unless the trace is excluded from the plotted data.
func (v Visibility) IsVisible() bool {
	return v != LegendOnly
}

// MarshalJSON renders a boolean true or the "legendonly" string.
func (v Visibility) MarshalJSON() ([]byte, error) {
	if v.IsVisible() {
		return []byte("true"), nil
	}

	return json.Marshal(string(v))
}

// UnmarshalJSON accepts a boolean or the "legendonly" string.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			return fmt.Errorf("unsupported trace visibility: %s", data)
		}
		*v = Visible

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if Visibility(s) != LegendOnly {
		return fmt.Errorf("unsupported trace visibility: %q", s)
	}
	*v = LegendOnly

	return nil
}

// TraceType is the trace type known to the plotting library.
type TraceType string

// Trace types.
const (
	TraceScatter   TraceType = "scatter"
	TraceBar       TraceType = "bar"
	TracePie       TraceType = "pie"
	TraceHistogram TraceType = "histogram"
	TraceBox       TraceType = "box"
)

// Trace is one renderable series within a plot.
//
// Y holds the plotted values, which differ from Unstacked when the trace is stacked.
// Pie traces use Labels and Values instead of X and Y.
type Trace struct {
	Name        string     `json:"name"`
	Type        TraceType  `json:"type"`
	Mode        string     `json:"mode,omitempty"`
	Fill        string     `json:"fill,omitempty"`
	Orientation string     `json:"orientation,omitempty"`
	Visible     Visibility `json:"visible"`
	Color       string     `json:"color"`
	X           []Value    `json:"x,omitempty"`
	Y           []float64  `json:"y,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Values      []float64  `json:"values,omitempty"`

	// Own x values and unstacked y values of the series, kept for restacking.
	OwnX      []Value   `json:"-"`
	Unstacked []float64 `json:"-"`
}

// Clone returns a deep copy of the trace.
func (t Trace) Clone() Trace {
	t.X = slices.Clone(t.X)
	t.Y = slices.Clone(t.Y)
	t.Labels = slices.Clone(t.Labels)
	t.Values = slices.Clone(t.Values)
	t.OwnX = slices.Clone(t.OwnX)
	t.Unstacked = slices.Clone(t.Unstacked)

	return t
}

// AxisType is the scale type of an axis.
type AxisType string

// Axis scale types.
const (
	AxisLinear   AxisType = "linear"
	AxisDate     AxisType = "date"
	AxisCategory AxisType = "category"
)

// Axis describes one axis of the layout.
type Axis struct {
	Type      AxisType `json:"type,omitempty"`
	Title     string   `json:"title,omitempty"`
	Visible   bool     `json:"visible"`
	AutoRange bool     `json:"autorange"`
	Range     []Value  `json:"range,omitempty"`
	TickText  []string `json:"ticktext,omitempty"`
}

// Legend describes the legend placement.
type Legend struct {
	Position    LegendPosition `json:"-"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Orientation string         `json:"orientation"`
	TraceOrder  string         `json:"traceorder,omitempty"`
}

// Margin holds the plot margins, in pixels.
type Margin struct {
	Top    int `json:"t"`
	Bottom int `json:"b"`
	Left   int `json:"l"`
	Right  int `json:"r"`
}

// Layout describes everything but the trace data.
type Layout struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Title      string `json:"title,omitempty"`
	ShowLegend bool   `json:"showlegend"`
	Legend     Legend `json:"legend"`
	XAxis      Axis   `json:"xaxis"`
	YAxis      Axis   `json:"yaxis"`
	BarMode    string `json:"barmode,omitempty"`
	Margin     Margin `json:"margin"`
}

// Clone returns a deep copy of the layout.
func (l Layout) Clone() Layout {
	l.XAxis.Range = slices.Clone(l.XAxis.Range)
	l.XAxis.TickText = slices.Clone(l.XAxis.TickText)
	l.YAxis.Range = slices.Clone(l.YAxis.Range)
	l.YAxis.TickText = slices.Clone(l.YAxis.TickText)

	return l
}

// RenderOptions are passed to the plotting library along with traces and layout.
type RenderOptions struct {
	ShowLink               bool     `json:"showLink"`
	DisplayLogo            bool     `json:"displaylogo"`
	ModeBarButtonsToRemove []string `json:"modeBarButtonsToRemove,omitempty"`
}

// DefaultRenderOptions hides the library link and logo and removes the cloud export button.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ModeBarButtonsToRemove: []string{"sendDataToCloud"},
	}
}

// PlotSpec is a renderable plot: ordered traces plus a layout.
//
// It is derived from series and options, and never persisted.
type PlotSpec struct {
	Traces []Trace       `json:"data"`
	Layout Layout        `json:"layout"`
	Config RenderOptions `json:"config"`
	Type   SeriesType    `json:"-"`
	Stack  Stacking      `json:"-"`
}

// Clone returns a deep copy of the plot specification.
func (p PlotSpec) Clone() PlotSpec {
	traces := make([]Trace, 0, len(p.Traces))
	for _, t := range p.Traces {
		traces = append(traces, t.Clone())
	}
	p.Traces = traces
	p.Layout = p.Layout.Clone()
	p.Config.ModeBarButtonsToRemove = slices.Clone(p.Config.ModeBarButtonsToRemove)

	return p
}
