package model

// SeriesType is the visual type requested for all series of a chart.
type SeriesType string

// Supported series types.
const (
	SeriesTypeLine      SeriesType = "line"
	SeriesTypeColumn    SeriesType = "column"
	SeriesTypeBar       SeriesType = "bar"
	SeriesTypeArea      SeriesType = "area"
	SeriesTypePie       SeriesType = "pie"
	SeriesTypeScatter   SeriesType = "scatter"
	SeriesTypeHistogram SeriesType = "histogram"
	SeriesTypeBox       SeriesType = "box"
)

// IsValid reports whether the series type is supported.
func (t SeriesType) IsValid() bool {
	switch t {
	case SeriesTypeLine, SeriesTypeColumn, SeriesTypeBar, SeriesTypeArea, SeriesTypePie,
		SeriesTypeScatter, SeriesTypeHistogram, SeriesTypeBox:
		return true
	default:
		return false
	}
}

// IsBar reports whether the series type is drawn as bars.
func (t SeriesType) IsBar() bool {
	return t == SeriesTypeBar || t == SeriesTypeColumn
}

// AllSeriesTypes returns all supported series types.
func AllSeriesTypes() []SeriesType {
	return []SeriesType{
		SeriesTypeLine,
		SeriesTypeColumn,
		SeriesTypeBar,
		SeriesTypeArea,
		SeriesTypePie,
		SeriesTypeScatter,
		SeriesTypeHistogram,
		SeriesTypeBox,
	}
}

// Stacking tells how values sharing an x coordinate are summed.
type Stacking string

// Supported stacking modes. The empty value is equivalent to [StackingNone].
const (
	StackingNone    Stacking = "none"
	StackingNormal  Stacking = "normal"
	StackingPercent Stacking = "percent"
)

// IsValid reports whether the stacking mode is supported.
func (s Stacking) IsValid() bool {
	switch s {
	case "", StackingNone, StackingNormal, StackingPercent:
		return true
	default:
		return false
	}
}

// IsStacked is true for normal and percent stacking.
func (s Stacking) IsStacked() bool {
	return s == StackingNormal || s == StackingPercent
}

// LegendPosition controls where the legend is displayed.
type LegendPosition string

// Supported legend positions. The empty value is equivalent to [LegendPositionRight].
const (
	LegendPositionNone   LegendPosition = "none"
	LegendPositionBottom LegendPosition = "bottom"
	LegendPositionTop    LegendPosition = "top"
	LegendPositionRight  LegendPosition = "right"
)

// IsValid reports whether the legend position is supported.
func (p LegendPosition) IsValid() bool {
	switch p {
	case "", LegendPositionNone, LegendPositionBottom, LegendPositionTop, LegendPositionRight:
		return true
	default:
		return false
	}
}

// SeriesOptions holds options applying to every series.
type SeriesOptions struct {
	Stacking Stacking `json:"stacking,omitempty" yaml:"stacking,omitempty"`
}

// ChartOptions configures how series are turned into a plot.
//
// A new value triggers a full recomputation of the plot.
type ChartOptions struct {
	GlobalSeriesType  SeriesType     `json:"globalSeriesType" yaml:"globalSeriesType"`
	Series            SeriesOptions  `json:"series" yaml:"series"`
	CustomCode        string         `json:"customCode,omitempty" yaml:"customCode,omitempty"`
	EnableConsoleLogs bool           `json:"enableConsoleLogs,omitempty" yaml:"enableConsoleLogs,omitempty"`
	AutoRedraw        bool           `json:"autoRedraw,omitempty" yaml:"autoRedraw,omitempty"`
	Title             string         `json:"title,omitempty" yaml:"title,omitempty"`
	XAxisTitle        string         `json:"xAxisTitle,omitempty" yaml:"xAxisTitle,omitempty"`
	YAxisTitle        string         `json:"yAxisTitle,omitempty" yaml:"yAxisTitle,omitempty"`
	Legend            LegendPosition `json:"legend,omitempty" yaml:"legend,omitempty"`
}

// IsStackedArea is true when area traces are stacked by the renderer.
func (o ChartOptions) IsStackedArea() bool {
	return o.GlobalSeriesType == SeriesTypeArea && o.Series.Stacking.IsStacked()
}
