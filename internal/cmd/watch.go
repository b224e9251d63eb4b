package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fredbi/chartspec/internal/pkg/config"
	"github.com/fredbi/chartspec/internal/pkg/debounce"
	"github.com/fsnotify/fsnotify"
)

// watch renders all charts, then renders them again whenever an input file or the config file changes.
//
// Bursts of file events are coalesced over the configured debounce window. Watching stops on
// interrupt, or when ctx is done.
func (c *Command) watch(ctx context.Context, cfg *config.Config, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	w := &watchSet{watcher: watcher, files: make(map[string]struct{})}
	if err := w.update(c.watchedFiles(cfg)); err != nil {
		return err
	}

	if err := c.run(ctx, cfg); err != nil {
		c.L.Error("rendering failed", slog.String("error", err.Error()))
	}

	d := debounce.New(cfg.Render.DebounceDuration())
	defer d.Stop()

	rerender := func() {
		next, err := c.prepareConfig(args)
		if err != nil {
			c.L.Error("reloading config failed", slog.String("error", err.Error()))

			return
		}

		if err := w.update(c.watchedFiles(next)); err != nil {
			c.L.Warn("watching inputs failed", slog.String("error", err.Error()))
		}

		if err := c.run(ctx, next); err != nil {
			c.L.Error("rendering failed", slog.String("error", err.Error()))
		}
	}

	c.L.Info("watching for changes", slog.Int("files", w.len()))

	for {
		select {
		case <-ctx.Done():
			c.L.Info("watch stopped")

			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isChange(event) || !w.contains(event.Name) {
				continue
			}

			c.L.Debug("change detected", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			d.Trigger(rerender)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			c.L.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// watchedFiles lists the files which trigger a new rendering: the inputs of visible charts,
// and the config file if any.
func (c *Command) watchedFiles(cfg *config.Config) []string {
	files := make([]string, 0, len(cfg.Charts)+1)
	if _, err := os.Stat(c.Config); err == nil {
		files = append(files, c.Config)
	}

	for _, v := range cfg.VisibleCharts() {
		if input := cfg.InputPath(v); input != "-" {
			files = append(files, input)
		}
	}

	return files
}

func isChange(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// watchSet tracks watched files. Their directories are watched, so that files replaced
// by editors are still seen.
type watchSet struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	files   map[string]struct{}
	dirs    map[string]struct{}
}

func (w *watchSet) update(files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs == nil {
		w.dirs = make(map[string]struct{})
	}

	w.files = make(map[string]struct{}, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("watching %q: %w", file, err)
		}

		w.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := w.dirs[dir]; ok {
			continue
		}

		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %q: %w", dir, err)
		}

		w.dirs[dir] = struct{}{}
	}

	return nil
}

func (w *watchSet) contains(file string) bool {
	abs, err := filepath.Abs(file)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.files[abs]

	return ok
}

func (w *watchSet) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.files)
}
