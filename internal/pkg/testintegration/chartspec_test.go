package testintegration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fredbi/chartspec/internal/pkg/chart"
	"github.com/fredbi/chartspec/internal/pkg/config"
	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/parser"

	"github.com/go-openapi/testify/v2/assert"
	"github.com/go-openapi/testify/v2/require"
)

func TestChartspec(t *testing.T) {
	t.Run("with sales example", func(t *testing.T) {
		fixtureDir := filepath.Join("..", "..", "..", "examples", "sales")
		outputDir := t.TempDir()

		t.Run("should load config", func(t *testing.T) {
			cfg, err := config.Load(filepath.Join(fixtureDir, "chartspec.yaml"))
			require.NoError(t, err)
			require.NotNil(t, cfg)

			writeData(t, outputDir, "test_config.json", cfg)

			revenue, ok := cfg.GetChart("revenue")
			require.True(t, ok)

			t.Run("should parse series", func(t *testing.T) {
				p := parser.New(parser.WithFormat(revenue.Format))
				require.NoError(t, p.ParseFiles(cfg.InputPath(revenue)))
				series := p.Series()
				require.Len(t, series, 3)

				writeData(t, outputDir, "test_parsed.json", p.Report())

				t.Run("should draw stacked areas", func(t *testing.T) {
					drawer := chart.NewEChartsDrawer(cfg.Render.Theme)
					r := chart.New(
						chart.WithDrawer(drawer),
						chart.WithDebounce(time.Hour),
					)
					t.Cleanup(r.Close)

					require.NoError(t, r.Update(context.Background(), series, revenue.ChartOptions(cfg.Render), cfg.Render))
					for r.Flush() {
					}

					spec := drawer.Spec()
					writeData(t, outputDir, "test_spec.json", spec)

					require.Len(t, spec.Traces, 3)
					assert.Equal(t, []float64{200, 230, 240, 280}, spec.Traces[1].Y)
					assert.Equal(t, "reversed", spec.Layout.Legend.TraceOrder)

					t.Run("should restack when a legend entry is clicked", func(t *testing.T) {
						// the last legend entry is the first trace
						traces, err := r.ToggleLegendSeries(r.TraceForLegendItem(2))
						require.NoError(t, err)

						assert.Equal(t, model.LegendOnly, traces[0].Visible)
						assert.Equal(t, []float64{80, 95, 90, 110}, traces[1].Y)
						assert.Equal(t, model.LegendOnly, drawer.Spec().Traces[0].Visible)
					})

					t.Run("should render page", func(t *testing.T) {
						page := chart.NewPage(cfg.Name)
						page.AddChart(drawer)

						var buf bytes.Buffer
						require.NoError(t, page.Render(&buf))
						assert.Contains(t, buf.String(), "Revenue by region")

						writeResult(t, outputDir, "test_html.html", &buf)
					})
				})
			})
		})
	})
}

func writeData(t *testing.T, dir, name string, data any) {
	t.Helper()

	buf, err := json.MarshalIndent(data, "", "  ")
	require.NoError(t, err)

	rdr := bytes.NewReader(buf)
	writeResult(t, dir, name, rdr)
}

func writeResult(t *testing.T, dir, name string, rdr io.Reader) {
	t.Helper()

	file, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer func() {
		_ = file.Close()
	}()

	_, err = io.Copy(file, rdr)
	require.NoError(t, err)
}
