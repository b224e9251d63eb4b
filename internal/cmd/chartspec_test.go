package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/config"
	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/parser"

	"github.com/go-openapi/testify/v2/assert"
	"github.com/go-openapi/testify/v2/require"
)

func TestNewCommand(t *testing.T) {
	cli := NewCommand()
	require.NotNil(t, cli)
	assert.NotNil(t, cli.L)
	// Verify defaults from registerFlags
	assert.Equal(t, "chartspec.yaml", cli.Config)
	assert.Equal(t, "-", cli.OutputFile)
	assert.False(t, cli.Watch)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, true).Debug("shown", slog.String("chart", "revenue"))
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "revenue")
}

func TestInferHTMLFile(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"output.png", "output.html"},
		{"output.html", "output.html"},
		{"output", "output.html"},
		{"path/to/output.png", "path/to/output.html"},
		{"output.svg", "output.html"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, inferHTMLFile(tt.input))
		})
	}
}

func TestInferImageFile(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"output.html", "output.png"},
		{"output.png", "output.png"},
		{"output", "output.png"},
		{"path/to/output.html", "path/to/output.png"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, inferImageFile(tt.input))
		})
	}
}

func TestSetConfig(t *testing.T) {
	t.Run("output to stdout", func(t *testing.T) {
		cfg := &config.Config{}
		cli := &Command{OutputFile: "-", L: newTestLogger()}

		require.NoError(t, cli.setConfig(cfg))
		assert.Equal(t, "-", cfg.Outputs.HTMLFile)
	})

	t.Run("output file", func(t *testing.T) {
		cfg := &config.Config{}
		cli := &Command{OutputFile: "results.png", L: newTestLogger()}

		require.NoError(t, cli.setConfig(cfg))
		assert.Equal(t, "results.html", cfg.Outputs.HTMLFile)
		assert.Empty(t, cfg.Outputs.PngFile)
	})

	t.Run("output file with PNG", func(t *testing.T) {
		cfg := &config.Config{}
		cli := &Command{OutputFile: "results.html", Png: true, L: newTestLogger()}

		require.NoError(t, cli.setConfig(cfg))
		assert.Equal(t, "results.html", cfg.Outputs.HTMLFile)
		assert.Equal(t, "results.png", cfg.Outputs.PngFile)
	})

	t.Run("plot specifications", func(t *testing.T) {
		cfg := &config.Config{}
		cli := &Command{OutputFile: "specs.json", Spec: true, L: newTestLogger()}

		require.NoError(t, cli.setConfig(cfg))
		assert.Equal(t, "specs.json", cfg.Outputs.SpecFile)
		assert.Empty(t, cfg.Outputs.HTMLFile)

		cfg = &config.Config{}
		cli.OutputFile = "-"
		require.NoError(t, cli.setConfig(cfg))
		assert.Equal(t, "-", cfg.Outputs.SpecFile)
	})

	t.Run("custom code override", func(t *testing.T) {
		cfg := &config.Config{}
		cli := &Command{AllowCustomCode: true, L: newTestLogger()}

		require.NoError(t, cli.setConfig(cfg))
		assert.True(t, cfg.Features.AllowCustomCode)
	})

	t.Run("watch requires an output file", func(t *testing.T) {
		cli := &Command{OutputFile: "-", Watch: true, L: newTestLogger()}

		require.Error(t, cli.setConfig(&config.Config{}))
	})
}

func TestPrepareConfig(t *testing.T) {
	t.Run("from config file", func(t *testing.T) {
		cli := &Command{Config: exampleConfigPath(), L: newTestLogger()}

		cfg, err := cli.prepareConfig(nil)
		require.NoError(t, err)
		assert.Len(t, cfg.VisibleCharts(), 4)
	})

	t.Run("arguments replace configured charts", func(t *testing.T) {
		cli := &Command{Config: exampleConfigPath(), L: newTestLogger()}

		cfg, err := cli.prepareConfig([]string{parserTestdataPath("series.json")})
		require.NoError(t, err)
		require.Len(t, cfg.Charts, 1)
		assert.Equal(t, "series", cfg.Charts[0].ID)
		assert.Equal(t, 1024, cfg.Render.Width, "rendering settings are kept")
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		cli := &Command{Config: "/nonexistent/config.yaml", L: newTestLogger()}

		_, err := cli.prepareConfig([]string{parserTestdataPath("series.json")})
		require.Error(t, err)
	})

	t.Run("missing default config file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cli := &Command{Config: defaultConfig, L: newTestLogger()}

		cfg, err := cli.prepareConfig([]string{"data.json"})
		require.NoError(t, err)
		assert.Equal(t, 900, cfg.Render.Width)

		_, err = cli.prepareConfig(nil)
		require.Error(t, err, "nothing to render")
	})
}

func TestExecuteHTMLOutput(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "output.html")

	cli := &Command{
		Config:     exampleConfigPath(),
		OutputFile: outFile,
		L:          newTestLogger(),
	}

	require.NoError(t, cli.Execute())

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Revenue by region")
	assert.NotContains(t, html, "Region Mix", "hidden charts are not rendered")
}

func TestExecuteStdout(t *testing.T) {
	var out bytes.Buffer
	cli := &Command{
		Config:     exampleConfigPath(),
		OutputFile: "-",
		L:          newTestLogger(),
		stdout:     &out,
	}

	require.NoError(t, cli.Execute(parserTestdataPath("series.yaml")))
	assert.Contains(t, out.String(), "Widgets")
}

func TestExecuteSpecOutput(t *testing.T) {
	var out bytes.Buffer
	cli := &Command{
		Config:     exampleConfigPath(),
		OutputFile: "-",
		Spec:       true,
		L:          newTestLogger(),
		stdout:     &out,
	}

	require.NoError(t, cli.Execute())

	var specs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out.Bytes(), &specs))
	require.Contains(t, specs, "revenue")

	var revenue struct {
		Data []struct {
			Name    string    `json:"name"`
			Y       []float64 `json:"y"`
			Visible any       `json:"visible"`
		} `json:"data"`
		Layout struct {
			Width  int          `json:"width"`
			Margin model.Margin `json:"margin"`
		} `json:"layout"`
	}
	require.NoError(t, json.Unmarshal(specs["revenue"], &revenue))

	require.Len(t, revenue.Data, 3)
	assert.Equal(t, "North", revenue.Data[0].Name)
	assert.Equal(t, []float64{200, 230, 240, 280}, revenue.Data[1].Y, "areas are stacked")
	assert.Equal(t, true, revenue.Data[0].Visible)
	assert.Equal(t, 1024, revenue.Layout.Width)
	assert.NotZero(t, revenue.Layout.Margin.Left)
}

func TestExecuteMissingInput(t *testing.T) {
	cli := &Command{
		Config:     exampleConfigPath(),
		OutputFile: filepath.Join(t.TempDir(), "output.html"),
		L:          newTestLogger(),
	}

	require.Error(t, cli.Execute("/nonexistent/file.json"))
}

func TestExecuteInvalidSeries(t *testing.T) {
	cli := &Command{
		Config:     exampleConfigPath(),
		OutputFile: filepath.Join(t.TempDir(), "output.html"),
		L:          newTestLogger(),
	}

	// series.json holds a non-numeric y value
	err := cli.Execute(parserTestdataPath("series.json"))

	var invalid *model.InvalidSeriesError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "B", invalid.Series)
}

func TestExecuteReport(t *testing.T) {
	var out bytes.Buffer
	cli := &Command{
		Config: exampleConfigPath(),
		Report: true,
		L:      newTestLogger(),
		stdout: &out,
	}

	require.NoError(t, cli.Execute())

	var reports map[string]parser.ParsingReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))

	require.Contains(t, reports, "encoding")
	assert.Len(t, reports["encoding"].Series, 4)
	assert.Len(t, reports, 5, "hidden charts are reported")
}

func TestGenerateConfig(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "generated.yaml")

	cli := &Command{
		Config:         outFile,
		GenerateConfig: true,
		L:              newTestLogger(),
	}

	require.NoError(t, cli.Execute(parserTestdataPath("series.yaml"), parserTestdataPath("run.txt")))

	cfg, err := config.Load(outFile)
	require.NoError(t, err)
	require.Len(t, cfg.Charts, 2)
	assert.Equal(t, config.FormatGoBench, cfg.Charts[1].Format)
	assert.True(t, filepath.IsAbs(cfg.Charts[0].Input))

	t.Run("renders from the generated config", func(t *testing.T) {
		var out bytes.Buffer
		cli := &Command{Config: outFile, OutputFile: "-", L: newTestLogger(), stdout: &out}

		require.NoError(t, cli.Execute())
		assert.Contains(t, out.String(), "BenchmarkNormal")
	})

	t.Run("missing input", func(t *testing.T) {
		cli.Config = filepath.Join(t.TempDir(), "other.yaml")
		require.Error(t, cli.Execute("/nonexistent/file.txt"))
	})

	t.Run("no input", func(t *testing.T) {
		require.Error(t, cli.Execute([]string{}...))
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "data.json")
	outFile := filepath.Join(dir, "out.json")
	cfgFile := filepath.Join(dir, "chartspec.yaml")

	require.NoError(t, os.WriteFile(cfgFile, []byte(`
render:
  debounce: 10ms
charts:
  - id: data
    input: data.json
`), 0o600))
	require.NoError(t, os.WriteFile(input, []byte(`[{"name": "first", "data": [{"x": 1, "y": 1}]}]`), 0o600))

	cli := &Command{
		Config:     cfgFile,
		OutputFile: outFile,
		Spec:       true,
		Watch:      true,
		L:          newTestLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cli.watchFromConfig(ctx)
	}()

	require.Eventually(t, func() bool {
		return fileContains(outFile, "first")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(input, []byte(`[{"name": "second", "data": [{"x": 1, "y": 2}]}]`), 0o600))

	require.Eventually(t, func() bool {
		return fileContains(outFile, "second")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchSet(t *testing.T) {
	w := &watchSet{files: map[string]struct{}{}}
	abs, err := filepath.Abs("data.json")
	require.NoError(t, err)
	w.files[abs] = struct{}{}

	assert.True(t, w.contains("data.json"))
	assert.False(t, w.contains("other.json"))
	assert.Equal(t, 1, w.len())
}

// helpers

func newTestLogger() *slog.Logger {
	return slog.Default().With(slog.String("module", "test"))
}

// watchFromConfig runs watch mode the way Execute does, with a cancellable context.
func (c *Command) watchFromConfig(ctx context.Context) error {
	cfg, err := c.prepareConfig(nil)
	if err != nil {
		return err
	}

	return c.watch(ctx, cfg, nil)
}

func fileContains(file, s string) bool {
	content, err := os.ReadFile(file)
	if err != nil {
		return false
	}

	return strings.Contains(string(content), s)
}

func exampleConfigPath() string {
	return filepath.Join("..", "..", "examples", "sales", "chartspec.yaml")
}

func parserTestdataPath(name string) string {
	return filepath.Join("..", "pkg", "parser", "testdata", name)
}
