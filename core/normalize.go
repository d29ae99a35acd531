package core

import (
	"math"
	"reflect"

	"github.com/huangsam/ers/schema"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsReported reports whether a raw value counts as reported.
// Absent values are excluded from scoring instead of normalizing to 0.
func IsReported(raw any) bool {
	if raw == nil {
		return false
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Normalize maps a raw metric value of the given kind into [0,1].
// It is total: unrecognized values and kinds yield 0.
func Normalize(raw any, kind schema.MetricKind) float64 {
	v, _ := normalize(raw, kind)
	return v
}

// normalize is Normalize plus the peer decoding error, if any.
func normalize(raw any, kind schema.MetricKind) (float64, error) {
	switch kind {
	case schema.BooleanKind:
		if b, ok := raw.(bool); ok && b {
			return 1, nil
		}
		return 0, nil
	case schema.Bounded0to10Kind:
		f, ok := toFloat(raw)
		if !ok {
			return 0, nil
		}
		return clamp(f, 0, 10) / 10, nil
	case schema.PercentageKind:
		f, ok := toFloat(raw)
		if !ok {
			return 0, nil
		}
		return clamp(f, 0, 100) / 100, nil
	case schema.PeerRatedKind:
		in, err := DecodePeerInput(raw)
		if err != nil {
			return 0, err
		}
		return PeerRatingScore(in), nil
	case schema.StructuredListKind:
		if isNonEmptyList(raw) {
			return 1, nil
		}
		return 0, nil
	}
	return 0, nil
}

func isNonEmptyList(raw any) bool {
	if raw == nil {
		return false
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	}
	return false
}
