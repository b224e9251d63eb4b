// Package cmd owns the implementation details of the CLI command.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/chart"
	"github.com/fredbi/chartspec/internal/pkg/config"
	"github.com/fredbi/chartspec/internal/pkg/custom"
	"github.com/fredbi/chartspec/internal/pkg/image"
	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/parser"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfig = "chartspec.yaml"

	// charts are drawn once: auto-margin passes are flushed, never left to timers
	flushedWindow = time.Hour
)

// Command holds command line flags and executes the chartspec command.
//
// It knows how to load a configuration file in a [config.Config] and manage CLI flag configuration overrides.
//
// The main purpose of this package is to deal with io's: opening and closing files.
//
// Input files given as arguments replace the charts of the configuration, with one line chart per file.
type Command struct {
	Config          string
	OutputFile      string
	Report          bool
	Png             bool
	Spec            bool
	Watch           bool
	Verbose         bool
	AllowCustomCode bool
	GenerateConfig  bool
	L               *slog.Logger

	stdout io.Writer
}

// NewCommand builds a CLI command with registered flags and an injected logger.
func NewCommand() *Command {
	// inject a structured logger
	cli := &Command{
		L:      slog.Default().With(slog.String("module", "main")),
		stdout: os.Stdout,
	}

	cli.registerFlags()

	return cli
}

// Parse command line flags and arguments, then installs the logger.
func (c *Command) Parse() error {
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return err
	}

	slog.SetDefault(newLogger(os.Stderr, c.Verbose))
	c.L = slog.Default().With(slog.String("module", "main"))

	return nil
}

// Fatalf logs an error message then exits. The output is spewed on both stderr and the structured logger output.
func (c *Command) Fatalf(err error) {
	c.L.Error(err.Error())
	log.Fatalf("%v", err)
}

// Execute the CLI with flags and extra arguments.
//
// If no argument is passed, command line arguments (i.e. [os.Args]) are used.
func (c *Command) Execute(args ...string) error {
	if args == nil { // passing explicit args allows for testing Execute without altering [os.Args]
		args = c.args()
	}

	if c.GenerateConfig {
		return c.generateConfig(args)
	}

	cfg, err := c.prepareConfig(args)
	if err != nil {
		return err
	}

	if c.Report {
		// just want to report about the content of the input files
		return c.report(cfg)
	}

	ctx := context.Background()

	if c.Watch {
		return c.watch(ctx, cfg, args)
	}

	return c.run(ctx, cfg)
}

func (*Command) args() []string {
	return flag.CommandLine.Args()
}

func (c *Command) registerFlags() {
	defaults := Command{
		Config:     defaultConfig,
		OutputFile: "-",
	}

	flag.StringVar(&c.Config, "config", defaults.Config, "config file")
	flag.StringVar(&c.Config, "c", defaults.Config, "config file (shorthand)")
	flag.StringVar(&c.OutputFile, "output", defaults.OutputFile, "file output or - for standard output")
	flag.StringVar(&c.OutputFile, "o", defaults.OutputFile, "file output or - for standard output (shorthand)")
	flag.BoolVar(&c.Report, "r", defaults.Report, "report input contents only, no rendering (shorthand)")
	flag.BoolVar(&c.Report, "report", defaults.Report, "report input contents only")
	flag.BoolVar(&c.Png, "png", defaults.Png, "enable PNG screenshot output")
	flag.BoolVar(&c.Spec, "spec", defaults.Spec, "write plot specifications as JSON instead of HTML")
	flag.BoolVar(&c.Watch, "w", defaults.Watch, "render again whenever an input or the config changes (shorthand)")
	flag.BoolVar(&c.Watch, "watch", defaults.Watch, "render again whenever an input or the config changes")
	flag.BoolVar(&c.Verbose, "v", defaults.Verbose, "verbose logging (shorthand)")
	flag.BoolVar(&c.Verbose, "verbose", defaults.Verbose, "verbose logging")
	flag.BoolVar(&c.AllowCustomCode, "allow-custom-code", defaults.AllowCustomCode, "allow charts to run custom code")
	flag.BoolVar(&c.GenerateConfig, "generate", defaults.GenerateConfig, "generate a config file with one chart per input file, written to the config path")
}

// generateConfig writes a configuration with one chart per input file.
//
// Input paths are made absolute, so the configuration may be written anywhere.
func (c *Command) generateConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("generating config: no input file given")
	}

	inputs := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			return errors.New("generating config: standard input cannot be referenced by a config")
		}

		if _, err := os.Stat(arg); err != nil {
			return fmt.Errorf("generating config: %w", err)
		}

		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("generating config: %w", err)
		}

		inputs = append(inputs, abs)
	}

	cfg := config.Generate(inputs)

	if err := c.writeFile(c.Config, "config", cfg.EncodeYAML); err != nil {
		return fmt.Errorf("generating config: %w", err)
	}

	c.L.Info("config generated", slog.String("config", c.Config), slog.Int("charts", len(cfg.Charts)))

	return nil
}

func (c *Command) prepareConfig(args []string) (*config.Config, error) {
	cfg, err := c.loadConfig(args)
	if err != nil {
		return nil, err
	}

	if err = c.setConfig(cfg); err != nil {
		return nil, fmt.Errorf("preparing config: %w", err)
	}

	return cfg, nil
}

// loadConfig loads the configuration file. Without arguments, the configuration must define charts.
//
// A missing default configuration file falls back to the embedded defaults.
func (c *Command) loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && c.Config == defaultConfig:
		c.L.Debug("no config file, using defaults", slog.String("config", c.Config))

		cfg, err = config.LoadDefaults()
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if len(args) > 0 {
		generated := config.Generate(args)
		generated.Name = cfg.Name
		generated.Render = cfg.Render
		generated.Features = cfg.Features
		cfg = generated
	}

	if len(cfg.VisibleCharts()) == 0 {
		return nil, errors.New("nothing to render: no input file given and no chart configured")
	}

	return cfg, nil
}

// apply CLI flags overrides to YAML config.
func (c *Command) setConfig(cfg *config.Config) error {
	if c.AllowCustomCode {
		cfg.Features.AllowCustomCode = true
	}

	if c.OutputFile != "" && c.OutputFile != "-" {
		if c.Spec {
			cfg.Outputs.SpecFile = c.OutputFile
		} else {
			// an outfile is defined: infer the PNG file from the HTML file provided
			cfg.Outputs.HTMLFile = inferHTMLFile(c.OutputFile)
			if cfg.Outputs.PngFile == "" && c.Png {
				cfg.Outputs.PngFile = inferImageFile(cfg.Outputs.HTMLFile)
			}
		}
	}

	if c.Report {
		return nil
	}

	if c.Watch && (c.OutputFile == "" || c.OutputFile == "-") {
		return errors.New("watch mode requires an output file")
	}

	switch {
	case c.Spec && cfg.Outputs.SpecFile == "":
		c.L.Info("plot specifications sent to standard output as JSON")
		cfg.Outputs.SpecFile = "-"
	case c.Spec:
	case cfg.Outputs.HTMLFile == "" && cfg.Outputs.PngFile == "":
		c.L.Info("output sent to standard output as HTML, no PNG image rendered")
		if c.Png {
			c.L.Info("set an output file to render a PNG image")
		}
		cfg.Outputs.HTMLFile = "-"
	}

	return nil
}

// report produces a report that explores the input files.
func (c *Command) report(cfg *config.Config) error {
	reports := make(map[string]parser.ParsingReport, len(cfg.Charts))

	t0 := time.Now()
	for _, v := range cfg.Charts {
		p := parser.New(parser.WithFormat(v.Format))
		if err := p.ParseFiles(cfg.InputPath(v)); err != nil {
			return fmt.Errorf("parsing input of chart %s: %w", v.ID, err)
		}

		reports[v.ID] = p.Report()
	}
	c.L.Info("parsed inputs", slog.Duration("duration", time.Since(t0)))

	return c.writeFile("-", "JSON", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", " ")

		return enc.Encode(reports)
	})
}

// run renders all visible charts once, then writes outputs.
func (c *Command) run(ctx context.Context, cfg *config.Config) error {
	t0 := time.Now()
	drawn, err := buildCharts(ctx, cfg)
	if err != nil {
		return err
	}
	c.L.Info("charts rendered", slog.Int("charts", len(drawn)), slog.Duration("duration", time.Since(t0)))

	if cfg.Outputs.SpecFile != "" {
		return c.writeSpecs(cfg, drawn)
	}

	// 1. render the page as HTML, possibly to stdout
	page := chart.NewPage(cfg.Name)
	for _, d := range drawn {
		page.AddChart(d.drawer)
	}

	if err := c.writeFile(cfg.Outputs.HTMLFile, "HTML", page.Render); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}

	if cfg.Outputs.PngFile == "" {
		// html only: we're done
		return nil
	}

	// 2. convert the HTML page to a PNG image
	htmlReader, htmlCloser, err := getReader(cfg.Outputs.HTMLFile, "HTML")
	if err != nil {
		return err
	}
	defer htmlCloser()

	r := image.New(
		image.WithContainer(cfg.Render, len(drawn)),
		image.WithSleep(cfg.Render.Screenshot.SleepDuration()),
	)

	if err := c.writeFile(cfg.Outputs.PngFile, "PNG", func(w io.Writer) error {
		return r.Render(ctx, w, htmlReader)
	}); err != nil {
		return fmt.Errorf("rendering image: %w", err)
	}

	return nil
}

type drawnChart struct {
	chart  config.Chart
	drawer *chart.EChartsDrawer
}

// buildCharts parses inputs and renders every visible chart, concurrently.
//
// Auto-margin passes are flushed before returning, so drawers hold final layouts.
func buildCharts(ctx context.Context, cfg *config.Config) ([]drawnChart, error) {
	charts := cfg.VisibleCharts()
	drawn := make([]drawnChart, len(charts))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, v := range charts {
		eg.Go(func() error {
			d, err := buildChart(egCtx, cfg, v)
			if err != nil {
				return fmt.Errorf("chart %s: %w", v.ID, err)
			}

			drawn[i] = d

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return drawn, nil
}

func buildChart(ctx context.Context, cfg *config.Config, v config.Chart) (drawnChart, error) {
	p := parser.New(parser.WithFormat(v.Format))
	if err := p.ParseFiles(cfg.InputPath(v)); err != nil {
		return drawnChart{}, err
	}

	logger := slog.Default().With(slog.String("module", "chart"), slog.String("chart", v.ID))
	drawer := chart.NewEChartsDrawer(cfg.Render.Theme)
	executor := custom.New(
		custom.WithEnabled(cfg.Features.AllowCustomCode),
		custom.WithTimeout(cfg.Render.CustomCodeTimeoutDuration()),
		custom.WithLogger(logger),
	)

	r := chart.New(
		chart.WithDrawer(drawer),
		chart.WithCustomExecutor(executor),
		chart.WithPalette(cfg.Render.Palette),
		chart.WithDebounce(flushedWindow),
		chart.WithMaxMarginPasses(cfg.Render.MarginPasses),
		chart.WithLogger(logger),
	)
	defer r.Close()

	if err := r.Update(ctx, p.Series(), v.ChartOptions(cfg.Render), cfg.Render); err != nil {
		return drawnChart{}, err
	}

	for r.Flush() {
	}

	return drawnChart{chart: v, drawer: drawer}, nil
}

func (c *Command) writeSpecs(cfg *config.Config, drawn []drawnChart) error {
	specs := make(map[string]model.PlotSpec, len(drawn))
	for _, d := range drawn {
		specs[d.chart.ID] = d.drawer.Spec()
	}

	return c.writeFile(cfg.Outputs.SpecFile, "JSON", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", " ")

		return enc.Encode(specs)
	})
}

// writeFile writes to a file, or to standard output for "-".
func (c *Command) writeFile(file, kind string, write func(io.Writer) error) error {
	if file == "-" {
		if c.stdout == nil {
			return write(os.Stdout)
		}

		return write(c.stdout)
	}

	w, closer, err := getWriter(file, kind)
	if err != nil {
		return err
	}
	defer closer()

	return write(w)
}

func getReader(file, kind string) (rdr *os.File, cleanup func(), err error) {
	rdr, err = os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s file: %q: %w", kind, file, err)
	}

	cleanup = func() {
		_ = rdr.Close()
	}

	return rdr, cleanup, nil
}

func getWriter(file, kind string) (wrt *os.File, cleanup func(), err error) {
	wrt, err = os.Create(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s file for writing: %q: %w", kind, file, err)
	}

	cleanup = func() {
		_ = wrt.Close()
	}

	return wrt, cleanup, nil
}

func inferHTMLFile(base string) string {
	ext := path.Ext(base)
	image, _ := strings.CutSuffix(base, ext)

	return image + ".html"
}

func inferImageFile(base string) string {
	ext := path.Ext(base)
	image, _ := strings.CutSuffix(base, ext)

	return image + ".png"
}
