// Package config loads the YAML configuration of chartspec.
package config

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/go-viper/mapstructure/v2"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed default_config.yaml
var efs embed.FS

// Config holds the configuration for chartspec.
type Config struct {
	Name     string
	Render   Rendering
	Features Features
	Charts   []Chart
	Outputs  Output `mapstructure:"-"`

	dir        string
	chartIndex map[string]Chart
}

// GetChart retrieves a chart definition by its ID.
func (c Config) GetChart(id string) (Chart, bool) {
	v, ok := c.chartIndex[id]

	return v, ok
}

// VisibleCharts returns the charts which are not hidden, in configuration order.
func (c Config) VisibleCharts() []Chart {
	visible := make([]Chart, 0, len(c.Charts))
	for _, v := range c.Charts {
		if v.Hidden {
			continue
		}

		visible = append(visible, v)
	}

	return visible
}

// InputPath resolves the input file of a chart.
//
// Relative paths are resolved against the directory of the configuration file.
func (c Config) InputPath(v Chart) string {
	if v.Input == "-" || filepath.IsAbs(v.Input) || c.dir == "" {
		return v.Input
	}

	return filepath.Join(c.dir, v.Input)
}

// EncodeYAML serializes a [Config] to YAML into the provided writer.
//
// Runtime-only fields (Outputs) are excluded from the output.
func (c *Config) EncodeYAML(w io.Writer) error {
	var raw map[string]any

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Squash: true,
		Deep:   true,
		Result: &raw,
	})
	if err != nil {
		return fmt.Errorf("creating mapstructure decoder: %w", err)
	}

	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decoding config to map: %w", err)
	}

	return yaml.NewEncoder(w).Encode(raw)
}

// Rendering holds chart rendering settings (container size, theme, legend, colors, timings).
type Rendering struct {
	Width             int
	Height            int
	Theme             string
	Legend            model.LegendPosition
	Palette           []string
	Debounce          string
	MarginPasses      int
	CustomCodeTimeout string
	Screenshot        Screenshot
}

// Size of the container charts are drawn into.
func (r Rendering) Size() (width, height int) {
	return r.Width, r.Height
}

// DebounceDuration parses the Debounce field as a [time.Duration].
func (r Rendering) DebounceDuration() time.Duration {
	return parseDuration(r.Debounce)
}

// CustomCodeTimeoutDuration parses the CustomCodeTimeout field as a [time.Duration].
func (r Rendering) CustomCodeTimeoutDuration() time.Duration {
	return parseDuration(r.CustomCodeTimeout)
}

// Screenshot configures the headless Chrome screenshot used for PNG rendering.
type Screenshot struct {
	Sleep string
}

// SleepDuration parses the Sleep field as a [time.Duration].
func (s Screenshot) SleepDuration() time.Duration {
	return parseDuration(s.Sleep)
}

// Features toggles optional capabilities.
type Features struct {
	// AllowCustomCode enables charts carrying custom code. It is off by default.
	AllowCustomCode bool
}

// Output holds the resolved output file paths for HTML, PNG and JSON rendering.
type Output struct {
	HTMLFile string
	PngFile  string
	SpecFile string
}

// Chart defines one chart: where its series come from and how they are plotted.
type Chart struct {
	ID      string
	Title   string
	Input   string
	Format  InputFormat
	Options ChartOptions
	Hidden  bool
}

// ChartOptions are the plotting options of a chart.
type ChartOptions struct {
	Type              model.SeriesType
	Stacking          model.Stacking
	CustomCode        string
	EnableConsoleLogs bool
	AutoRedraw        bool
	XAxisTitle        string
	YAxisTitle        string
	Legend            model.LegendPosition
}

// ChartOptions returns the options of the chart as understood by the renderer.
//
// The legend position defaults to the rendering setting.
func (v Chart) ChartOptions(render Rendering) model.ChartOptions {
	legend := v.Options.Legend
	if legend == "" {
		legend = render.Legend
	}

	return model.ChartOptions{
		GlobalSeriesType:  v.Options.Type,
		Series:            model.SeriesOptions{Stacking: v.Options.Stacking},
		CustomCode:        v.Options.CustomCode,
		EnableConsoleLogs: v.Options.EnableConsoleLogs,
		AutoRedraw:        v.Options.AutoRedraw,
		Title:             v.Title,
		XAxisTitle:        v.Options.XAxisTitle,
		YAxisTitle:        v.Options.YAxisTitle,
		Legend:            legend,
	}
}

// Load a configuration file from the local file system.
func Load(file string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	dir := filepath.Dir(file)
	fsys := os.DirFS(dir)
	pth := filepath.Join(".", filepath.Base(file))

	cfg, err = load(fsys, pth, cfg)
	if err != nil {
		return nil, err
	}

	cfg.dir = dir

	return cfg, nil
}

// LoadDefaults loads the default configuration from the embedded default_config.yaml.
func LoadDefaults() (*Config, error) {
	return loadDefaults()
}

// loadDefaults loads the default configuration from embedded FS.
func loadDefaults() (*Config, error) {
	return load(efs, "default_config.yaml", &Config{})
}

func load(fsys fs.FS, file string, cfg *Config) (*Config, error) {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, err
	}

	var raw any
	err = yaml.Unmarshal(content, &raw)
	if err != nil {
		return nil, err
	}

	err = mapstructure.Decode(raw, cfg)
	if err != nil {
		return nil, err
	}

	if err = cfg.validateRendering(); err != nil {
		return nil, err
	}

	if err = cfg.validateCharts(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateRendering() error {
	r := c.Render

	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid render: container size must be positive: %dx%d", r.Width, r.Height)
	}

	if !r.Legend.IsValid() {
		return fmt.Errorf("invalid render: unknown legend position: %q", r.Legend)
	}

	if r.MarginPasses < 0 {
		return fmt.Errorf("invalid render: marginPasses must not be negative: %d", r.MarginPasses)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{name: "debounce", value: r.Debounce},
		{name: "customCodeTimeout", value: r.CustomCodeTimeout},
		{name: "screenshot.sleep", value: r.Screenshot.Sleep},
	} {
		if field.value == "" {
			continue
		}

		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid render: %s: %w", field.name, err)
		}
	}

	for i, color := range r.Palette {
		if !strings.HasPrefix(color, "#") {
			return fmt.Errorf("invalid render: palette[%d] is not a hex color: %q", i, color)
		}
	}

	return nil
}

func (c *Config) validateCharts() error {
	c.chartIndex = make(map[string]Chart, len(c.Charts))

	for i, v := range c.Charts {
		if v.ID == "" {
			return fmt.Errorf("invalid charts: empty ID found: charts[%d]", i)
		}
		if _, ok := c.chartIndex[v.ID]; ok {
			return fmt.Errorf("invalid charts: duplicate ID key found: %s", v.ID)
		}
		if v.Input == "" {
			return fmt.Errorf("invalid charts: missing input for chart %s", v.ID)
		}
		if v.Title == "" {
			v.Title = titleize(v.ID)
		}
		if v.Format == "" {
			v.Format = InferFormat(v.Input)
		}
		if !v.Format.IsValid() {
			return fmt.Errorf("invalid charts: unknown format for chart %s: %q", v.ID, v.Format)
		}
		if v.Options.Type != "" && !v.Options.Type.IsValid() {
			return fmt.Errorf("invalid charts: unknown series type for chart %s: %q", v.ID, v.Options.Type)
		}
		if !v.Options.Stacking.IsValid() {
			return fmt.Errorf("invalid charts: unknown stacking for chart %s: %q", v.ID, v.Options.Stacking)
		}
		if !v.Options.Legend.IsValid() {
			return fmt.Errorf("invalid charts: unknown legend position for chart %s: %q", v.ID, v.Options.Legend)
		}
		if v.Options.CustomCode != "" && !c.Features.AllowCustomCode {
			return fmt.Errorf("invalid charts: chart %s carries custom code, but features.allowCustomCode is disabled", v.ID)
		}

		c.Charts[i] = v
		c.chartIndex[v.ID] = v
	}

	return nil
}

func parseDuration(in string) time.Duration {
	d, err := time.ParseDuration(in)
	if d <= 0 || err != nil {
		return 0
	}

	return d
}

type str interface {
	~string
}

func titleize[T str](in T) string {
	caser := cases.Title(language.English, cases.NoLower) // the case is stateful: cannot declare it globally

	return caser.String(strings.Map(func(r rune) rune {
		switch r {
		case '_', '-':
			return ' '
		default:
			return r
		}
	}, string(in),
	))
}

// Generate builds a [Config] with one line chart per input file, on top of the embedded defaults.
//
// Chart IDs are derived from the file names.
func Generate(inputs []string) *Config {
	defaults, err := loadDefaults()
	if err != nil {
		// embedded config must always parse
		panic(fmt.Sprintf("loading embedded defaults: %v", err))
	}

	cfg := &Config{
		Name:     "Generated Config",
		Render:   defaults.Render,
		Features: defaults.Features,
	}

	seen := make(map[string]int, len(inputs))
	for _, input := range inputs {
		id := fileToID(input)
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}

		cfg.Charts = append(cfg.Charts, Chart{
			ID:     id,
			Title:  titleize(id),
			Input:  input,
			Format: InferFormat(input),
		})
	}

	if err := cfg.validateCharts(); err != nil {
		// generated charts have unique IDs and inferred formats
		panic(fmt.Sprintf("validating generated config: %v", err))
	}

	return cfg
}

// fileToID converts a file name to a kebab-case ID. Standard input is named "stdin".
func fileToID(file string) string {
	if file == "-" {
		return "stdin"
	}

	base := filepath.Base(file)
	id, _ := strings.CutSuffix(base, filepath.Ext(base))

	id = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '_':
			return '-'
		default:
			return r
		}
	}, id)

	return strings.ToLower(id)
}
