// Package parser reads chart series from JSON, YAML or Go benchmark files.
package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/fredbi/chartspec/internal/pkg/config"
	"github.com/fredbi/chartspec/internal/pkg/model"
	"go.yaml.in/yaml/v3"
	"golang.org/x/tools/benchmark/parse"
)

// Metric series produced from Go benchmarks.
const (
	SeriesNsPerOp     = "ns/op"
	SeriesBytesPerOp  = "B/op"
	SeriesAllocsPerOp = "allocs/op"
	SeriesMBPerS      = "MB/s"
)

// Input holds the series parsed from one input file.
type Input struct {
	File        string
	Format      config.InputFormat
	Environment string
	Series      []model.Series
}

// ParsingReport allows to inspect the contents of parsed inputs.
type ParsingReport struct {
	NumberOfInputs int            `json:"inputs"`
	AnalyzedFiles  []string       `json:"analyzed_files"`
	Environments   []string       `json:"environments,omitempty"`
	Series         []SeriesReport `json:"series"`
}

// SeriesReport describes a series, possibly merged from several inputs.
type SeriesReport struct {
	Name    string      `json:"name"`
	Points  int         `json:"points_count"`
	Invalid int         `json:"invalid_points_count"`
	Range   MinMaxRange `json:"y_range"`
}

// MinMaxRange is the range of the valid y values of a series.
type MinMaxRange struct {
	Count   int      `json:"measurements_count"`
	Min     float64  `json:"min_value"`
	Max     float64  `json:"max_value"`
	Origins []string `json:"origin_files"`
}

// Report produces a [ParsingReport], which allows for closer inspection of the content
// of parsed input.
func (p *SeriesParser) Report() ParsingReport {
	r := ParsingReport{
		Series: make([]SeriesReport, 0, len(p.inputs)),
	}
	seenFiles := make(map[string]struct{})
	seenEnvironments := make(map[string]struct{})
	seenSeries := make(map[string]int)

	for _, input := range p.inputs {
		r.NumberOfInputs++
		if _, seenFile := seenFiles[input.File]; !seenFile {
			seenFiles[input.File] = struct{}{}
			r.AnalyzedFiles = append(r.AnalyzedFiles, input.File)
		}

		if input.Environment != "" {
			if _, seen := seenEnvironments[input.Environment]; !seen {
				seenEnvironments[input.Environment] = struct{}{}
				r.Environments = append(r.Environments, input.Environment)
			}
		}

		for _, s := range input.Series {
			current := extractRange(s, input.File)

			idx, seen := seenSeries[s.Name]
			if !seen {
				seenSeries[s.Name] = len(r.Series)
				r.Series = append(r.Series, current)

				continue
			}

			previous := r.Series[idx]
			previous.Points += current.Points
			previous.Invalid += current.Invalid
			previous.Range = mergeRanges(previous.Range, current.Range)
			r.Series[idx] = previous
		}
	}

	return r
}

func extractRange(s model.Series, file string) SeriesReport {
	report := SeriesReport{
		Name:   s.Name,
		Points: len(s.Data),
		Range: MinMaxRange{
			Min:     math.Inf(1),
			Max:     math.Inf(-1),
			Origins: []string{file},
		},
	}

	for _, point := range s.Data {
		_, okX := model.Normalize(point.X)
		y, okY := model.Normalize(point.Y)
		if !okX || !okY || y.Kind != model.KindNumber {
			report.Invalid++

			continue
		}

		report.Range.Count++
		report.Range.Min = min(report.Range.Min, y.Num)
		report.Range.Max = max(report.Range.Max, y.Num)
	}

	if report.Range.Count == 0 {
		report.Range.Min, report.Range.Max = 0, 0
	}

	return report
}

func mergeRanges(previous, current MinMaxRange) MinMaxRange {
	switch {
	case current.Count == 0:
	case previous.Count == 0:
		previous.Min, previous.Max = current.Min, current.Max
	default:
		previous.Min = min(previous.Min, current.Min)
		previous.Max = max(previous.Max, current.Max)
	}

	previous.Count += current.Count
	if len(current.Origins) > 0 && !slices.Contains(previous.Origins, current.Origins[0]) {
		previous.Origins = append(previous.Origins, current.Origins[0])
	}

	return previous
}

// SeriesParser reads the series of a chart from one or several input files.
type SeriesParser struct {
	options

	inputs []Input
	l      *slog.Logger
}

// New [SeriesParser] ready to parse input files.
func New(opts ...Option) *SeriesParser {
	return &SeriesParser{
		options: optionsWithDefaults(opts),
		l:       slog.Default().With(slog.String("module", "parser")),
	}
}

// ParseFiles parses input files. The file "-" stands for standard input.
func (p *SeriesParser) ParseFiles(files ...string) error {
	for _, file := range files {
		var (
			reader io.ReadCloser
			err    error
		)

		if file == "-" {
			reader = os.Stdin
		} else {
			reader, err = os.Open(file)
			if err != nil {
				return fmt.Errorf("input file %q: %w", file, err)
			}
		}

		input, err := p.parse(reader, p.formatFor(file))
		if file != "-" {
			_ = reader.Close()
		}
		if err != nil {
			return fmt.Errorf("input file %q: %w", file, err)
		}

		input.File = file
		p.inputs = append(p.inputs, input)
	}

	p.l.Info("series input parsed", slog.Int("parsed_files", len(files)))

	return nil
}

// ParseInput parses a single input stream, in the format set with [WithFormat] (defaults to JSON).
func (p *SeriesParser) ParseInput(r io.Reader) (Input, error) {
	return p.parse(r, p.formatFor("-"))
}

// Inputs returns the parsed inputs, in parsing order.
func (p *SeriesParser) Inputs() []Input {
	return p.inputs
}

// Series returns the series of all parsed inputs.
//
// Series with the same name in several inputs are merged: their points are appended in parsing order.
func (p *SeriesParser) Series() []model.Series {
	var series []model.Series
	index := make(map[string]int)

	for _, input := range p.inputs {
		for _, s := range input.Series {
			idx, seen := index[s.Name]
			if !seen {
				index[s.Name] = len(series)
				series = append(series, model.Series{Name: s.Name, Data: slices.Clone(s.Data)})

				continue
			}

			series[idx].Data = append(series[idx].Data, s.Data...)
		}
	}

	return series
}

func (p *SeriesParser) formatFor(file string) config.InputFormat {
	if p.format != "" {
		return p.format
	}

	return config.InferFormat(file)
}

func (p *SeriesParser) parse(r io.Reader, format config.InputFormat) (Input, error) {
	input := Input{Format: format}

	var err error
	switch format {
	case config.FormatJSON:
		input.Series, err = parseJSONSeries(r)
	case config.FormatYAML:
		input.Series, err = parseYAMLSeries(r)
	case config.FormatGoBench:
		input, err = p.parseBenchmarks(r)
	default:
		err = fmt.Errorf("unsupported input format %q", format)
	}

	if err != nil {
		return Input{}, err
	}

	return input, nil
}

func parseJSONSeries(r io.Reader) ([]model.Series, error) {
	var series []model.Series

	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(&series); err != nil {
		return nil, fmt.Errorf("decoding JSON series: %w", err)
	}

	return series, nil
}

func parseYAMLSeries(r io.Reader) ([]model.Series, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	var series []model.Series
	if err := yaml.Unmarshal(content, &series); err != nil {
		return nil, fmt.Errorf("decoding YAML series: %w", err)
	}

	return series, nil
}

func (p *SeriesParser) parseBenchmarks(r io.Reader) (Input, error) {
	var (
		text string
		err  error
	)

	if p.isJSON {
		text, err = collectTestOutput(r)
	} else {
		var content []byte
		content, err = io.ReadAll(r)
		text = string(content)
	}
	if err != nil {
		return Input{}, fmt.Errorf("reading input: %w", err)
	}

	set, err := parse.ParseSet(strings.NewReader(text))
	if err != nil {
		return Input{}, fmt.Errorf("parsing benchmark output: %w", err)
	}

	return Input{
		Format:      config.FormatGoBench,
		Environment: extractEnvironment(text),
		Series:      benchmarkSeries(set),
	}, nil
}

// benchmarkSeries builds one series per measured metric. Points are benchmarks, in the order they ran.
func benchmarkSeries(set parse.Set) []model.Series {
	var benchmarks []*parse.Benchmark
	for _, runs := range set {
		benchmarks = append(benchmarks, runs...)
	}

	slices.SortStableFunc(benchmarks, func(a, b *parse.Benchmark) int {
		return a.Ord - b.Ord
	})

	metrics := []struct {
		name     string
		measured int
		value    func(*parse.Benchmark) float64
	}{
		{name: SeriesNsPerOp, measured: parse.NsPerOp, value: func(b *parse.Benchmark) float64 { return b.NsPerOp }},
		{name: SeriesBytesPerOp, measured: parse.AllocedBytesPerOp, value: func(b *parse.Benchmark) float64 { return float64(b.AllocedBytesPerOp) }},
		{name: SeriesAllocsPerOp, measured: parse.AllocsPerOp, value: func(b *parse.Benchmark) float64 { return float64(b.AllocsPerOp) }},
		{name: SeriesMBPerS, measured: parse.MBPerS, value: func(b *parse.Benchmark) float64 { return b.MBPerS }},
	}

	var series []model.Series
	for _, metric := range metrics {
		s := model.Series{Name: metric.name}
		for _, bench := range benchmarks {
			if bench.Measured&metric.measured == 0 {
				continue
			}

			s.Data = append(s.Data, model.Point{X: bench.Name, Y: metric.value(bench)})
		}

		if len(s.Data) > 0 {
			series = append(series, s)
		}
	}

	return series
}

// collectTestOutput extracts the output of "go test -json" events.
func collectTestOutput(r io.Reader) (string, error) {
	var textOutput strings.Builder
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event testEvent
		if err := json.Unmarshal(line, &event); err != nil { //nolint:musttag // JSON produced uses titleized keys expected by std json/encoding
			continue
		}

		if event.Action == "output" && event.Output != "" {
			textOutput.WriteString(event.Output)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scanning input: %w", err)
	}

	return textOutput.String(), nil
}

// extractEnvironment extracts environment information from benchmark output.
// It looks for goos, goarch, and cpu lines and combines them.
func extractEnvironment(text string) string {
	var parts []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "goos: "):
			parts = append(parts, strings.TrimPrefix(line, "goos: "))
		case strings.HasPrefix(line, "goarch: "):
			parts = append(parts, strings.TrimPrefix(line, "goarch: "))
		case strings.HasPrefix(line, "cpu: "):
			cpu := strings.TrimSpace(strings.TrimPrefix(line, "cpu: "))
			parts = append(parts, "cpu: "+cpu)
		}
	}

	if len(parts) == 0 {
		return "unknown environment"
	}

	return strings.Join(parts, " ")
}

// testEvent represents a single JSON event from `go test -json` output.
// See: https://pkg.go.dev/cmd/test2json
type testEvent struct {
	Time    string
	Action  string
	Package string
	Test    string
	Output  string
	Elapsed float64
}
