package parser //nolint:revive // it's okay for an internal package to use this name

import "github.com/fredbi/chartspec/internal/pkg/config"

// Option configures a [SeriesParser].
type Option func(*options)

type options struct {
	format config.InputFormat
	isJSON bool
}

// WithFormat forces the format of all parsed inputs.
//
// By default, the format is inferred from the file extension, and standard input is JSON.
func WithFormat(format config.InputFormat) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithParseJSON enables reading Go benchmarks from the JSON output of "go test -json",
// instead of the default text format.
func WithParseJSON(enabled bool) Option {
	return func(o *options) {
		o.isJSON = enabled
	}
}

func optionsWithDefaults(opts []Option) options {
	var o options
	for _, apply := range opts {
		apply(&o)
	}

	return o
}
