package model

import "fmt"

// InvalidSeriesError reports input data that cannot be normalized.
//
// Point is -1 when the error concerns the series as a whole (e.g. a duplicate name).
type InvalidSeriesError struct {
	Series string
	Point  int
	Axis   string
	Value  any
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	if e.Point < 0 {
		return fmt.Sprintf("invalid series %q: %s", e.Series, e.Reason)
	}

	return fmt.Sprintf("invalid series %q: point %d: %s=%v: %s", e.Series, e.Point, e.Axis, e.Value, e.Reason)
}
