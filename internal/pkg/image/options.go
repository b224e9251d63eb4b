package image //nolint:revive // it's okay for an internal package to use this name

import (
	"log/slog"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/model"
)

// Option to tune image rendering.
type Option func(*options)

type options struct {
	Height        int64
	Width         int64
	SleepDuration time.Duration
	Timeout       time.Duration
	logger        *slog.Logger
}

const (
	defaultHeight  int64 = 1080
	defaultWidth   int64 = 1920
	defaultWait          = time.Second
	defaultTimeout       = 30 * time.Second
)

func optionsWithDefaults(opts []Option) options {
	o := options{
		Height:        defaultHeight,
		Width:         defaultWidth,
		SleepDuration: defaultWait,
		Timeout:       defaultTimeout,
		logger:        slog.Default().With(slog.String("module", "image")),
	}

	for _, apply := range opts {
		apply(&o)
	}

	return o
}

// WithHeight sets the height of the screenshot.
//
// Defaults to 1080.
func WithHeight(height int64) Option {
	return func(o *options) {
		if height <= 0 {
			return
		}

		o.Height = height
	}
}

// WithWidth sets the width of the screenshot.
//
// Defaults to 1920.
func WithWidth(width int64) Option {
	return func(o *options) {
		if width <= 0 {
			return
		}

		o.Width = width
	}
}

// WithContainer sizes the screenshot after the container charts are drawn into.
//
// The page stacks charts vertically, so the height is multiplied by the number of charts.
func WithContainer(container model.Container, charts int) Option {
	return func(o *options) {
		width, height := container.Size()
		if width <= 0 || height <= 0 {
			return
		}

		o.Width = int64(width)
		o.Height = int64(height * max(1, charts))
	}
}

// WithSleep sets the time to wait for the chrome headless engine to render the HTML page.
//
// Defaults to 1s.
func WithSleep(sleep time.Duration) Option {
	return func(o *options) {
		if sleep == 0 {
			return
		}

		o.SleepDuration = sleep
	}
}

// WithTimeout bounds the whole screenshot operation.
//
// Defaults to 30s.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout <= 0 {
			return
		}

		o.Timeout = timeout
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
