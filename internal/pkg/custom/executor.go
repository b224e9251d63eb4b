// Package custom runs user-supplied chart rendering code in a sandboxed Go interpreter.
//
// Custom code is Go source declaring:
//
//	func Render(x []interface{}, ys map[string][]interface{}, width, height int, draw func(name, kind string, x, y []interface{}))
//
// x is the union of the series x values, ys maps each series name to its y values aligned on x
// (nil where the series has no point), and draw adds a trace to the plot.
//
// Failures of custom code never propagate: they are logged when console logs are enabled.
package custom

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/fredbi/chartspec/internal/pkg/model"
	"github.com/fredbi/chartspec/internal/pkg/stacking"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const entryPoint = "main.Render"

// RenderFunc is the signature custom code must implement.
type RenderFunc = func(x []any, ys map[string][]any, width, height int, draw func(name, kind string, x, y []any))

// CustomCodeFailure reports a failure while evaluating or running custom code.
type CustomCodeFailure struct {
	Cause error
}

func (e *CustomCodeFailure) Error() string {
	return "custom code failure: " + e.Cause.Error()
}

func (e *CustomCodeFailure) Unwrap() error {
	return e.Cause
}

// Executor runs custom rendering code with yaegi.
type Executor struct {
	options
}

// New builds an [Executor]. Custom code execution is disabled unless [WithEnabled] is set.
func New(opts ...Option) *Executor {
	return &Executor{
		options: optionsWithDefaults(opts),
	}
}

// Enabled reports whether custom code execution is allowed.
func (e *Executor) Enabled() bool {
	return e.enabled
}

// Render runs the custom code of the options against the series, drawing onto the canvas.
//
// The canvas is cleared first. Failures are isolated: they are logged when
// [model.ChartOptions.EnableConsoleLogs] is set, and otherwise silently dropped.
// When the executor is disabled, Render does nothing.
func (e *Executor) Render(ctx context.Context, opts model.ChartOptions, series []model.Series, container model.Container, canvas *Canvas) {
	if !e.enabled {
		return
	}

	canvas.Clear()

	if err := e.run(ctx, opts.CustomCode, series, container, canvas); err != nil && opts.EnableConsoleLogs {
		e.logger.Error("error while executing custom graph", slog.String("error", err.Error()))
	}
}

func (e *Executor) run(ctx context.Context, code string, series []model.Series, container model.Container, canvas *Canvas) (err error) {
	x, ys, err := Project(series)
	if err != nil {
		return &CustomCodeFailure{Cause: err}
	}

	source := wrap(code)
	if err = e.validateImports(source); err != nil {
		return &CustomCodeFailure{Cause: err}
	}

	i := interp.New(interp.Options{})
	if err = i.Use(stdlib.Symbols); err != nil {
		return &CustomCodeFailure{Cause: fmt.Errorf("loading stdlib: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	fn, err := compile(ctx, i, source)
	if err != nil {
		return &CustomCodeFailure{Cause: err}
	}

	width, height := container.Size()
	done := make(chan error, 1)

	// an abandoned run keeps drawing on its own canvas only
	drawn := NewCanvas()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()

		fn(x, ys, width, height, drawn.Draw)
		done <- nil
	}()

	select {
	case err = <-done:
		if err != nil {
			return &CustomCodeFailure{Cause: err}
		}

		if err = drawn.Err(); err != nil {
			return &CustomCodeFailure{Cause: err}
		}

		canvas.replace(drawn)

		return nil
	case <-ctx.Done():
		return &CustomCodeFailure{Cause: fmt.Errorf("custom code timed out: %w", ctx.Err())}
	}
}

func compile(ctx context.Context, i *interp.Interpreter, source string) (fn RenderFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating code: panic: %v", r)
		}
	}()

	if _, err = i.EvalWithContext(ctx, source); err != nil {
		return nil, fmt.Errorf("evaluating code: %w", err)
	}

	v, err := i.EvalWithContext(ctx, entryPoint)
	if err != nil {
		return nil, fmt.Errorf("render function not found: %w", err)
	}

	fn, ok := v.Interface().(RenderFunc)
	if !ok {
		return nil, errors.New("render function has an incorrect signature")
	}

	return fn, nil
}

// validateImports rejects imports outside the allowed list.
func (e *Executor) validateImports(source string) error {
	file, err := parser.ParseFile(token.NewFileSet(), "custom.go", source, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parsing code: %w", err)
	}

	var forbidden []string
	for _, spec := range file.Imports {
		pkg, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return fmt.Errorf("parsing import %s: %w", spec.Path.Value, err)
		}

		if !slices.Contains(e.allowed, pkg) {
			forbidden = append(forbidden, pkg)
		}
	}

	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: %v)", forbidden, e.allowed)
	}

	return nil
}

// wrap adds a package clause to code that does not declare one.
func wrap(code string) string {
	if strings.HasPrefix(strings.TrimSpace(code), "package ") {
		return code
	}

	return "package main\n\n" + code
}

// Project flattens series into an x axis shared by all series and per-series y values aligned on it.
//
// Missing points are nil.
func Project(series []model.Series) (x []any, ys map[string][]any, err error) {
	samples, err := model.NormalizeAll(series)
	if err != nil {
		return nil, nil, err
	}

	traces := make([]model.Trace, 0, len(series))
	for i, s := range samples {
		trace := model.Trace{Name: series[i].Name}
		for _, sample := range s {
			trace.OwnX = append(trace.OwnX, sample.X)
			trace.Unstacked = append(trace.Unstacked, sample.Y)
		}
		traces = append(traces, trace)
	}

	union := stacking.XUnion(traces)
	index := make(map[model.Key]int, len(union))
	x = make([]any, 0, len(union))
	for k, v := range union {
		index[v.Key()] = k
		x = append(x, v.Interface())
	}

	ys = make(map[string][]any, len(traces))
	for _, trace := range traces {
		y := make([]any, len(union))
		for j, v := range trace.OwnX {
			y[index[v.Key()]] = trace.Unstacked[j]
		}
		ys[trace.Name] = y
	}

	return x, ys, nil
}
