// Package model defines the data exchanged between the chart input, the renderer and the drawing backends.
package model

import "slices"

// Series is a named sequence of points, as supplied by the caller.
//
// The renderer treats a [Series] as read-only input.
type Series struct {
	Name string  `json:"name" yaml:"name"`
	Data []Point `json:"data" yaml:"data"`
}

// Point is a raw data point. X and Y are normalized with [Normalize] when rendered.
type Point struct {
	X any `json:"x" yaml:"x"`
	Y any `json:"y" yaml:"y"`
}

// Sample is a normalized data point.
//
// The x coordinate may be a number, a time or a category. The y coordinate is always numeric.
type Sample struct {
	X Value
	Y float64
}

// Normalize the points of the series.
//
// It fails with an [InvalidSeriesError] on the first point that cannot be normalized.
func (s Series) Normalize() ([]Sample, error) {
	samples := make([]Sample, 0, len(s.Data))

	for i, point := range s.Data {
		x, ok := Normalize(point.X)
		if !ok {
			return nil, &InvalidSeriesError{Series: s.Name, Point: i, Axis: "x", Value: point.X, Reason: "not a comparable scalar"}
		}

		y, ok := Normalize(point.Y)
		if !ok || y.Kind != KindNumber {
			return nil, &InvalidSeriesError{Series: s.Name, Point: i, Axis: "y", Value: point.Y, Reason: "not a finite number"}
		}

		samples = append(samples, Sample{X: x, Y: y.Num})
	}

	return samples, nil
}

// NormalizeAll normalizes a list of series.
//
// Series names must be non-empty and unique within the list.
func NormalizeAll(series []Series) ([][]Sample, error) {
	seen := make(map[string]struct{}, len(series))
	all := make([][]Sample, 0, len(series))

	for _, s := range series {
		if s.Name == "" {
			return nil, &InvalidSeriesError{Point: -1, Reason: "empty series name"}
		}

		if _, dup := seen[s.Name]; dup {
			return nil, &InvalidSeriesError{Series: s.Name, Point: -1, Reason: "duplicate series name"}
		}
		seen[s.Name] = struct{}{}

		samples, err := s.Normalize()
		if err != nil {
			return nil, err
		}

		all = append(all, samples)
	}

	return all, nil
}

// Names returns the ordered series names.
func Names(series []Series) []string {
	names := make([]string, 0, len(series))
	for _, s := range series {
		names = append(names, s.Name)
	}

	return names
}

// SameOrder reports whether two lists of series names are identical, in the same order.
func SameOrder(a, b []string) bool {
	return slices.Equal(a, b)
}
