// Package image converts a HTML page of charts into a PNG screenshot.
package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

// Renderer knows how to take a screenshot from a HTML input and writes it as PNG.
type Renderer struct {
	options
}

// New builds an image [Renderer] from HTML.
func New(opts ...Option) *Renderer {
	return &Renderer{
		options: optionsWithDefaults(opts),
	}
}

// Render a PNG image as a screenshot from a HTML input [io.Reader].
func (r *Renderer) Render(ctx context.Context, dest io.Writer, source io.Reader) error {
	screenshot, err := r.screenshot(ctx, source)
	if err != nil {
		return fmt.Errorf("taking screenshot: %w", err)
	}

	_, err = dest.Write(screenshot)
	if err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}

	return nil
}

func (r *Renderer) screenshot(parent context.Context, reader io.Reader) ([]byte, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, r.Timeout)
	defer cancelTimeout()

	ctx, cancel := chromedp.NewContext(timeoutCtx)
	defer cancel()

	const qualityPNG = 100 // 100 to force PNG
	var screenshot []byte
	start := time.Now()

	// colors in the page contain '#': the page is passed base64-encoded
	err = chromedp.Run(ctx,
		chromedp.Emulate(device.Info{
			Height:    r.Height,
			Width:     r.Width,
			Landscape: true,
		}),
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString(content)),
		chromedp.Sleep(r.SleepDuration), // we need to wait some time to get the rendering done
		chromedp.FullScreenshot(&screenshot, qualityPNG),
	)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("screenshot taken",
		slog.Int64("width", r.Width),
		slog.Int64("height", r.Height),
		slog.Duration("duration", time.Since(start)),
	)

	return screenshot, nil
}
