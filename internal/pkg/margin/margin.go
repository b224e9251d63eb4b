// Package margin measures the room needed around a plot for its labels, title and legend.
package margin

import (
	"math"
	"strconv"

	"github.com/fredbi/chartspec/internal/pkg/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	padding       = 10
	tickLength    = 5
	legendSwatch  = 40
	legendSpacing = 20
	maxShare      = 0.4 // no margin may take more than this share of the container
	maxTickLabels = 200
)

// Measurer computes the margins required by a plot drawn into a container.
type Measurer interface {
	Measure(spec model.PlotSpec, container model.Container) model.Margin
}

// Apply sets current to required if they differ on any side. It reports whether current changed.
//
// Apply is idempotent: a second call with the same required margins returns false.
func Apply(current *model.Margin, required model.Margin) bool {
	if *current == required {
		return false
	}

	*current = required

	return true
}

// FontMeasurer measures label extents with a fixed font face.
type FontMeasurer struct {
	face font.Face
}

// NewFontMeasurer builds a [FontMeasurer]. A nil face defaults to [basicfont.Face7x13].
func NewFontMeasurer(face font.Face) *FontMeasurer {
	if face == nil {
		face = basicfont.Face7x13
	}

	return &FontMeasurer{face: face}
}

// Measure the margins required by the spec in the container.
//
// Axis tick labels are measured on the plotted values. X tick labels which do not fit
// side by side are assumed to be rotated, so they take their full width vertically.
func (m *FontMeasurer) Measure(spec model.PlotSpec, container model.Container) model.Margin {
	width, height := container.Size()
	layout := spec.Layout
	lineHeight := m.face.Metrics().Height.Ceil()

	required := model.Margin{
		Top:    padding,
		Bottom: padding,
		Left:   padding,
		Right:  padding,
	}

	if layout.Title != "" {
		required.Top += lineHeight + padding
	}

	if layout.ShowLegend {
		m.measureLegend(&required, spec, width, lineHeight)
	}

	if layout.YAxis.Visible {
		required.Left += m.maxWidth(yTickLabels(spec)) + tickLength
		if layout.YAxis.Title != "" {
			required.Left += lineHeight + padding
		}
	}

	if layout.XAxis.Visible {
		labels := xTickLabels(spec)
		plotWidth := width - required.Left - required.Right
		if m.totalWidth(labels) > plotWidth {
			required.Bottom += m.maxWidth(labels) + tickLength
		} else {
			required.Bottom += lineHeight + tickLength
		}

		if layout.XAxis.Title != "" {
			required.Bottom += lineHeight + padding
		}
	}

	return clamp(required, width, height)
}

func (m *FontMeasurer) measureLegend(required *model.Margin, spec model.PlotSpec, width, lineHeight int) {
	names := legendNames(spec)
	if len(names) == 0 {
		return
	}

	switch spec.Layout.Legend.Position {
	case model.LegendPositionTop, model.LegendPositionBottom:
		rows := 1
		rowWidth := 0
		for _, name := range names {
			entry := m.width(name) + legendSwatch
			if rowWidth > 0 && rowWidth+entry > width {
				rows++
				rowWidth = 0
			}
			rowWidth += entry + legendSpacing
		}

		legendHeight := rows*(lineHeight+tickLength) + padding
		if spec.Layout.Legend.Position == model.LegendPositionTop {
			required.Top += legendHeight
		} else {
			required.Bottom += legendHeight
		}
	default:
		required.Right += m.maxWidth(names) + legendSwatch
	}
}

func (m *FontMeasurer) width(s string) int {
	return font.MeasureString(m.face, s).Ceil()
}

func (m *FontMeasurer) maxWidth(labels []string) int {
	var widest int
	for _, label := range labels {
		widest = max(widest, m.width(label))
	}

	return widest
}

func (m *FontMeasurer) totalWidth(labels []string) int {
	var total int
	for _, label := range labels {
		total += m.width(label) + padding
	}

	return total
}

func legendNames(spec model.PlotSpec) []string {
	if spec.Type == model.SeriesTypePie && len(spec.Traces) > 0 {
		return spec.Traces[0].Labels
	}

	names := make([]string, 0, len(spec.Traces))
	for _, trace := range spec.Traces {
		names = append(names, trace.Name)
	}

	return names
}

func yTickLabels(spec model.PlotSpec) []string {
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, trace := range spec.Traces {
		if !trace.Visible.IsVisible() {
			continue
		}

		for _, y := range trace.Y {
			lo = min(lo, y)
			hi = max(hi, y)
		}
	}

	if math.IsInf(lo, 1) {
		return nil
	}

	return []string{formatTick(lo), formatTick(hi)}
}

func xTickLabels(spec model.PlotSpec) []string {
	if len(spec.Layout.XAxis.TickText) > 0 {
		return spec.Layout.XAxis.TickText
	}

	seen := make(map[model.Key]struct{})
	var labels []string

	for _, trace := range spec.Traces {
		for _, x := range trace.X {
			if len(labels) >= maxTickLabels {
				return labels
			}

			if _, ok := seen[x.Key()]; ok {
				continue
			}
			seen[x.Key()] = struct{}{}

			if x.Kind == model.KindNumber {
				labels = append(labels, formatTick(x.Num))

				continue
			}

			labels = append(labels, x.String())
		}
	}

	return labels
}

// formatTick rounds tick values to two decimals.
func formatTick(v float64) string {
	const hundredths = 100

	return strconv.FormatFloat(math.Round(v*hundredths)/hundredths, 'f', -1, 64)
}

func clamp(m model.Margin, width, height int) model.Margin {
	maxX := int(float64(width) * maxShare)
	maxY := int(float64(height) * maxShare)

	if maxX > 0 {
		m.Left = min(m.Left, maxX)
		m.Right = min(m.Right, maxX)
	}

	if maxY > 0 {
		m.Top = min(m.Top, maxY)
		m.Bottom = min(m.Bottom, maxY)
	}

	return m
}
