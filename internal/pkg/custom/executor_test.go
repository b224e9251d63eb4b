package custom

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/model"

	"github.com/go-openapi/testify/v2/assert"
	"github.com/go-openapi/testify/v2/require"
)

const doublingCode = `
import "strings"

func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	for _, name := range []string{"A", "B"} {
		values := ys[name]
		doubled := make([]interface{}, len(values))
		for i, v := range values {
			if f, ok := v.(float64); ok {
				doubled[i] = 2 * f
			}
		}
		draw(strings.ToLower(name), "bar", x, doubled)
	}
}
`

func TestProject(t *testing.T) {
	x, ys, err := Project(fixtureSeries())
	require.NoError(t, err)

	assert.Equal(t, []any{1.0, 2.0, 3.0}, x)
	assert.Equal(t, []any{10.0, 20.0, nil}, ys["A"])
	assert.Equal(t, []any{nil, 15.0, 5.0}, ys["B"])
}

func TestProjectInvalid(t *testing.T) {
	_, _, err := Project([]model.Series{{Name: "A", Data: []model.Point{{X: math.NaN(), Y: 1}}}})

	var invalid *model.InvalidSeriesError
	require.ErrorAs(t, err, &invalid)
}

func TestRenderDisabled(t *testing.T) {
	e := New()
	canvas := NewCanvas()
	canvas.Draw("previous", "scatter", []any{1}, []any{1})

	e.Render(context.Background(), model.ChartOptions{CustomCode: doublingCode}, fixtureSeries(), model.Box{Width: 100, Height: 100}, canvas)

	assert.False(t, e.Enabled())
	assert.Len(t, canvas.Traces(), 1, "a disabled executor leaves the canvas untouched")
}

func TestRenderDraws(t *testing.T) {
	e := New(WithEnabled(true))
	canvas := NewCanvas()

	err := e.run(context.Background(), doublingCode, fixtureSeries(), model.Box{Width: 100, Height: 100}, canvas)
	require.NoError(t, err)

	traces := canvas.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "a", traces[0].Name)
	assert.Equal(t, model.TraceBar, traces[0].Type)
	assert.InDeltaSlice(t, []float64{20, 40}, traces[0].Y, 1e-9, "nil values are skipped")
	assert.InDeltaSlice(t, []float64{30, 10}, traces[1].Y, 1e-9)
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		options []Option
		wantMsg string
	}{
		{
			name:    "syntax error",
			code:    `func Render(`,
			wantMsg: "custom code failure",
		},
		{
			name: "forbidden import",
			code: `import "os"

func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	os.Exit(1)
}`,
			wantMsg: "forbidden imports",
		},
		{
			name:    "missing entry point",
			code:    `func Draw() {}`,
			wantMsg: "render function not found",
		},
		{
			name:    "wrong signature",
			code:    `func Render(x []interface{}) {}`,
			wantMsg: "incorrect signature",
		},
		{
			name: "panic",
			code: `func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	panic("boom")
}`,
			wantMsg: "panic",
		},
		{
			name: "unsupported kind",
			code: `func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	draw("total", "heatmap", x, ys["A"])
}`,
			wantMsg: "unsupported kind",
		},
		{
			name: "timeout",
			code: `import "time"

func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	time.Sleep(300 * time.Millisecond)
}`,
			options: []Option{WithTimeout(20 * time.Millisecond)},
			wantMsg: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(append([]Option{WithEnabled(true)}, tt.options...)...)

			err := e.run(context.Background(), tt.code, fixtureSeries(), model.Box{Width: 10, Height: 10}, NewCanvas())
			require.Error(t, err)

			var failure *CustomCodeFailure
			require.ErrorAs(t, err, &failure)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRenderIsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := New(WithEnabled(true), WithLogger(logger))
	broken := `func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	var m map[string]int
	m["boom"] = 1
}`

	t.Run("silent without console logs", func(t *testing.T) {
		buf.Reset()
		require.NotPanics(t, func() {
			e.Render(context.Background(), model.ChartOptions{CustomCode: broken}, fixtureSeries(), model.Box{}, NewCanvas())
		})
		assert.Empty(t, buf.String())
	})

	t.Run("logged with console logs", func(t *testing.T) {
		buf.Reset()
		e.Render(context.Background(), model.ChartOptions{CustomCode: broken, EnableConsoleLogs: true}, fixtureSeries(), model.Box{}, NewCanvas())
		assert.Contains(t, buf.String(), "error while executing custom graph")
	})
}

func TestCanvasSkipsInvalid(t *testing.T) {
	canvas := NewCanvas()
	canvas.Draw("s", "", []any{1, "b", nil, 4}, []any{1, 2, 3, "x"})

	traces := canvas.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, model.TraceScatter, traces[0].Type)
	assert.InDeltaSlice(t, []float64{1, 2}, traces[0].Y, 1e-9)

	canvas.Clear()
	assert.Empty(t, canvas.Traces())
}

func fixtureSeries() []model.Series {
	return []model.Series{
		{Name: "A", Data: []model.Point{{X: 1, Y: 10}, {X: 2, Y: 20}}},
		{Name: "B", Data: []model.Point{{X: 2, Y: 15}, {X: 3, Y: 5}}},
	}
}

func TestRenderDropsDrawsAfterTimeout(t *testing.T) {
	const late = `import "time"

func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{})) {
	time.Sleep(100 * time.Millisecond)
	draw("late", "scatter", x, ys["A"])
}`

	canvas := NewCanvas()
	New(WithEnabled(true), WithTimeout(20*time.Millisecond)).
		Render(context.Background(), model.ChartOptions{CustomCode: late}, fixtureSeries(), model.Box{Width: 10, Height: 10}, canvas)
	assert.Empty(t, canvas.Traces())

	// the next chart is drawn while the timed out code is still running
	e := New(WithEnabled(true))
	e.Render(context.Background(), model.ChartOptions{CustomCode: doublingCode}, fixtureSeries(), model.Box{Width: 10, Height: 10}, canvas)

	time.Sleep(200 * time.Millisecond)

	traces := canvas.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "a", traces[0].Name)
	assert.Equal(t, "b", traces[1].Name)
}

func TestCanvasValidates(t *testing.T) {
	t.Run("pie takes labels from x", func(t *testing.T) {
		canvas := NewCanvas()
		canvas.Draw("share", "pie", []any{"north", "south"}, []any{1, 3})
		require.NoError(t, canvas.Err())

		traces := canvas.Traces()
		require.Len(t, traces, 1)
		assert.Equal(t, []string{"north", "south"}, traces[0].Labels)
		assert.Equal(t, []float64{1, 3}, traces[0].Values)
		assert.Empty(t, traces[0].Y)
	})

	tests := []struct {
		name string
		draw func(*Canvas)
	}{
		{
			name: "unsupported kind",
			draw: func(c *Canvas) { c.Draw("s", "heatmap", []any{1}, []any{1}) },
		},
		{
			name: "pie without values",
			draw: func(c *Canvas) { c.Draw("s", "pie", []any{"a"}, []any{"none"}) },
		},
		{
			name: "pie mixed with bars",
			draw: func(c *Canvas) {
				c.Draw("s", "bar", []any{1}, []any{1})
				c.Draw("t", "pie", []any{"a"}, []any{1})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canvas := NewCanvas()
			tt.draw(canvas)

			require.ErrorIs(t, canvas.Err(), ErrInvalidTrace)
			assert.LessOrEqual(t, len(canvas.Traces()), 1)

			canvas.Clear()
			require.NoError(t, canvas.Err())
		})
	}
}
