package custom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fredbi/chartspec/internal/pkg/model"
)

// ErrInvalidTrace is reported when custom code draws a trace that cannot be plotted.
var ErrInvalidTrace = errors.New("invalid trace")

// Canvas is the drawing handle handed to custom code.
//
// Custom code adds traces with [Canvas.Draw]. Values which cannot be normalized are skipped.
// Traces which cannot be plotted are rejected and reported by [Canvas.Err].
type Canvas struct {
	mu     sync.Mutex
	traces []model.Trace
	err    error
}

// NewCanvas builds an empty [Canvas].
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Draw adds a trace of the given kind: "scatter" (the default), "bar", "pie", "histogram" or "box".
//
// Pie traces take their labels from x and their values from y.
func (c *Canvas) Draw(name, kind string, x, y []any) {
	trace := model.Trace{
		Name:    name,
		Type:    model.TraceType(kind),
		Visible: model.Visible,
	}

	if trace.Type == "" {
		trace.Type = model.TraceScatter
	}

	for i := 0; i < len(x) && i < len(y); i++ {
		xv, ok := model.Normalize(x[i])
		if !ok {
			continue
		}

		yv, ok := model.Normalize(y[i])
		if !ok || yv.Kind != model.KindNumber {
			continue
		}

		if trace.Type == model.TracePie {
			trace.Labels = append(trace.Labels, xv.String())
			trace.Values = append(trace.Values, yv.Num)

			continue
		}

		trace.X = append(trace.X, xv)
		trace.Y = append(trace.Y, yv.Num)
	}

	trace.OwnX = trace.X
	trace.Unstacked = trace.Y

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate(trace); err != nil {
		c.err = errors.Join(c.err, err)

		return
	}

	c.traces = append(c.traces, trace)
}

// Err reports the traces rejected so far.
func (c *Canvas) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Clear removes all traces drawn so far, and forgets rejected ones.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.traces = nil
	c.err = nil
}

// Traces returns a copy of the traces drawn so far.
func (c *Canvas) Traces() []model.Trace {
	c.mu.Lock()
	defer c.mu.Unlock()

	traces := make([]model.Trace, 0, len(c.traces))
	for _, t := range c.traces {
		traces = append(traces, t.Clone())
	}

	return traces
}

// replace swaps the traces of the canvas with those of another one.
func (c *Canvas) replace(from *Canvas) {
	traces := from.Traces()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.traces = traces
	c.err = nil
}

// validate must be called with the lock held.
func (c *Canvas) validate(trace model.Trace) error {
	switch trace.Type {
	case model.TraceScatter, model.TraceBar, model.TraceHistogram, model.TraceBox:
	case model.TracePie:
		if len(trace.Values) == 0 {
			return fmt.Errorf("trace %q: pie without values: %w", trace.Name, ErrInvalidTrace)
		}
	default:
		return fmt.Errorf("trace %q: unsupported kind %q: %w", trace.Name, trace.Type, ErrInvalidTrace)
	}

	if len(c.traces) > 0 && (trace.Type == model.TracePie) != (c.traces[0].Type == model.TracePie) {
		return fmt.Errorf("trace %q: pie traces cannot be mixed with other kinds: %w", trace.Name, ErrInvalidTrace)
	}

	return nil
}
