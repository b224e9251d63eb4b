package config

import (
	"path/filepath"
	"strings"
)

// InputFormat identifies how a chart input file is encoded.
type InputFormat string

// Supported input formats.
const (
	FormatJSON    InputFormat = "json"
	FormatYAML    InputFormat = "yaml"
	FormatGoBench InputFormat = "gobench"
)

// String returns the format as a plain string.
func (f InputFormat) String() string {
	return string(f)
}

// IsValid reports whether the format is one of the supported input formats.
func (f InputFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatGoBench:
		return true
	default:
		return false
	}
}

// AllInputFormats returns all supported input formats.
func AllInputFormats() []InputFormat {
	return []InputFormat{
		FormatJSON,
		FormatYAML,
		FormatGoBench,
	}
}

// InferFormat guesses the format of an input file from its extension.
//
// Unknown extensions, as well as standard input ("-"), are assumed to be JSON.
func InferFormat(file string) InputFormat {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".txt", ".bench", ".out":
		return FormatGoBench
	default:
		return FormatJSON
	}
}
