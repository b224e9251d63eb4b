package custom

import (
	"log/slog"
	"time"
)

// Option configures an [Executor].
type Option func(*options)

type options struct {
	enabled bool
	timeout time.Duration
	allowed []string
	logger  *slog.Logger
}

const defaultTimeout = 2 * time.Second

// defaultAllowedPackages are the only imports custom code may use.
//
// Packages with access to the file system, network, processes or unsafe memory are excluded.
var defaultAllowedPackages = []string{ //nolint:gochecknoglobals // read-only
	"fmt",
	"math",
	"sort",
	"strconv",
	"strings",
	"time",
}

// WithEnabled turns custom code execution on or off. It is off by default.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithTimeout bounds the time spent running custom code.
//
// Defaults to 2s. An interpreter stuck past the timeout is abandoned.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout <= 0 {
			return
		}

		o.timeout = timeout
	}
}

// WithAllowedPackages replaces the list of stdlib packages custom code may import.
func WithAllowedPackages(packages ...string) Option {
	return func(o *options) {
		o.allowed = packages
	}
}

// WithLogger injects the logger used to report failures.
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
		timeout: defaultTimeout,
		allowed: defaultAllowedPackages,
		logger:  slog.Default().With(slog.String("module", "custom")),
	}

	for _, apply := range opts {
		apply(&o)
	}

	return o
}
