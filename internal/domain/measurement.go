package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FieldVariant records which spelling of a measurement value field a client used.
type FieldVariant int

const (
	VariantNone FieldVariant = iota
	// VariantCanonical is value_1_numeric / value_2_numeric.
	VariantCanonical
	// VariantLegacy is value1 / value2.
	VariantLegacy
)

func (v FieldVariant) String() string {
	switch v {
	case VariantCanonical:
		return "canonical"
	case VariantLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// RawMeasurement is a measurement slot as submitted, after the field spelling
// has been resolved at the API boundary.
type RawMeasurement struct {
	Type    *string
	Value   *float64
	Variant FieldVariant
}

// fieldVariants counts the measurement field spellings used across the
// submitted sets. Absent slots are not counted.
func fieldVariants(inputs []ExerciseInput) map[FieldVariant]int {
	counts := make(map[FieldVariant]int)
	for _, ex := range inputs {
		for _, set := range ex.Sets {
			for _, v := range []FieldVariant{set.Value1.Variant, set.Value2.Variant} {
				if v != VariantNone {
					counts[v]++
				}
			}
		}
	}
	return counts
}

// ParseNumeric accepts a decoded JSON number or a numeric string. Anything
// else, including NaN and infinities, is reported as absent.
func ParseNumeric(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case int:
		f = float64(v)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// NormalizeMeasurement collapses absent and zero values into the absent pair
// (nil, nil). A recorded value keeps the submitted type when it is non-blank.
func NormalizeMeasurement(raw RawMeasurement) Measurement {
	if raw.Value == nil || *raw.Value == 0 {
		return Measurement{}
	}
	value := *raw.Value
	out := Measurement{Value: &value}
	if raw.Type != nil {
		if t := strings.TrimSpace(*raw.Type); t != "" {
			out.Type = &t
		}
	}
	return out
}
