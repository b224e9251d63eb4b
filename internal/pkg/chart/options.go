package chart

import (
	"log/slog"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/custom"
	"github.com/fredbi/chartspec/internal/pkg/debounce"
	"github.com/fredbi/chartspec/internal/pkg/margin"
)

// DefaultMaxMarginPasses caps the number of margin adjustments following a render or a resize.
const DefaultMaxMarginPasses = 2

// Option configures a [Renderer].
type Option func(*options)

type options struct {
	drawer          Drawer
	measurer        margin.Measurer
	executor        *custom.Executor
	palette         Palette
	window          time.Duration
	maxMarginPasses int
	logger          *slog.Logger
}

// WithDrawer sets the backend which draws plot specifications.
//
// Without a drawer, the renderer only computes specifications.
func WithDrawer(d Drawer) Option {
	return func(o *options) {
		o.drawer = d
	}
}

// WithMeasurer sets how required margins are measured.
//
// Defaults to a [margin.FontMeasurer].
func WithMeasurer(m margin.Measurer) Option {
	return func(o *options) {
		if m == nil {
			return
		}

		o.measurer = m
	}
}

// WithCustomExecutor enables custom code rendering with the given executor.
func WithCustomExecutor(e *custom.Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithPalette overrides the trace colors.
func WithPalette(p Palette) Option {
	return func(o *options) {
		if len(p) == 0 {
			return
		}

		o.palette = p
	}
}

// WithDebounce sets the window coalescing auto-margin and resize bursts.
//
// Defaults to 100ms.
func WithDebounce(window time.Duration) Option {
	return func(o *options) {
		if window <= 0 {
			return
		}

		o.window = window
	}
}

// WithMaxMarginPasses caps the margin adjustments run after each render or resize.
//
// Defaults to 2.
func WithMaxMarginPasses(passes int) Option {
	return func(o *options) {
		if passes <= 0 {
			return
		}

		o.maxMarginPasses = passes
	}
}

// WithLogger injects a logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			return
		}

		o.logger = l
	}
}

func optionsWithDefaults(opts []Option) options {
	o := options{
		measurer:        margin.NewFontMeasurer(nil),
		palette:         DefaultPalette(),
		window:          debounce.DefaultWindow,
		maxMarginPasses: DefaultMaxMarginPasses,
		logger:          slog.Default().With(slog.String("module", "chart")),
	}

	for _, apply := range opts {
		apply(&o)
	}

	return o
}
