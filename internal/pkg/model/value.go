package model

import (
	"cmp"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind tells which primitive a normalized [Value] holds.
type Kind uint8

// Kinds of normalized values, in comparison order.
const (
	KindNumber Kind = iota
	KindTime
	KindCategory
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Value is a normalized scalar, suitable for comparison and plotting.
type Value struct {
	Kind Kind
	Num  float64
	Time time.Time
	Str  string
}

// Number builds a numeric [Value].
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Time builds a time [Value]. The time is converted to UTC.
func Time(t time.Time) Value {
	return Value{Kind: KindTime, Time: t.UTC()}
}

// Category builds a categorical [Value].
func Category(s string) Value {
	return Value{Kind: KindCategory, Str: s}
}

// Interface returns the value as a plain Go value: float64, time.Time or string.
func (v Value) Interface() any {
	switch v.Kind {
	case KindTime:
		return v.Time
	case KindCategory:
		return v.Str
	default:
		return v.Num
	}
}

// String renders the value as a label.
func (v Value) String() string {
	switch v.Kind {
	case KindTime:
		return v.Time.Format(time.RFC3339)
	case KindCategory:
		return v.Str
	default:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
}

// MarshalJSON renders the value as the plotting library expects it.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Compare orders values by kind first, then by value.
func Compare(a, b Value) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}

	switch a.Kind {
	case KindTime:
		return a.Time.Compare(b.Time)
	case KindCategory:
		return cmp.Compare(a.Str, b.Str)
	default:
		return cmp.Compare(a.Num, b.Num)
	}
}

// Normalize coerces an input scalar into a comparable [Value].
//
// Numbers of any Go numeric kind and [json.Number] become [KindNumber], [time.Time] and RFC 3339 strings
// become [KindTime], other strings become [KindCategory].
//
// NaN, infinities, nil and non-scalar inputs cannot be normalized.
func Normalize(in any) (Value, bool) {
	switch v := in.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return Number(float64(v)), true
	case int8:
		return Number(float64(v)), true
	case int16:
		return Number(float64(v)), true
	case int32:
		return Number(float64(v)), true
	case int64:
		return Number(float64(v)), true
	case uint:
		return Number(float64(v)), true
	case uint8:
		return Number(float64(v)), true
	case uint16:
		return Number(float64(v)), true
	case uint32:
		return Number(float64(v)), true
	case uint64:
		return Number(float64(v)), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Value{}, false
		}

		return finite(f)
	case time.Time:
		if v.IsZero() {
			return Value{}, false
		}

		return Time(v), true
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return Time(t), true
		}

		return Category(v), true
	case Value:
		return v, true
	default:
		return Value{}, false
	}
}

func finite(f float64) (Value, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, false
	}

	return Number(f), true
}

// Key is a comparable identity for a [Value], usable as a map key.
type Key struct {
	kind  Kind
	num   float64
	nanos int64
	str   string
}

// Key returns the identity of the value.
func (v Value) Key() Key {
	switch v.Kind {
	case KindTime:
		return Key{kind: v.Kind, nanos: v.Time.UnixNano()}
	case KindCategory:
		return Key{kind: v.Kind, str: v.Str}
	default:
		return Key{kind: v.Kind, num: v.Num}
	}
}
