package scenario

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Data is a Stan data mapping: each named field holds either a scalar or a
// flat numeric sequence. It marshals directly into the fit request body.
type Data map[string]any

// maxExactInt is the largest float64 magnitude that still represents every
// integer exactly (2^53). Beyond it a value is kept as a real number.
const maxExactInt = float64(1 << 53)

// fromCty builds a Data mapping from a literal `values` object in a grid
// file, applying the replicate factor.
func fromCty(values cty.Value, replicate int) (Data, error) {
	ty := values.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("data values must be an object, got %s", ty.FriendlyName())
	}

	data := make(Data, values.LengthInt())
	for name, val := range values.AsValueMap() {
		switch {
		case val.Type() == cty.Number:
			scalar, err := numberFromCty(val)
			if err != nil {
				return nil, fmt.Errorf("data field %q: %w", name, err)
			}
			data[name] = scaleScalar(scalar, replicate)
		case val.Type().IsTupleType() || val.Type().IsListType():
			base := make([]float64, 0, val.LengthInt())
			for i, elem := range val.AsValueSlice() {
				if elem.Type() != cty.Number {
					return nil, fmt.Errorf("data field %q: element %d is %s, want a number", name, i, elem.Type().FriendlyName())
				}
				f, _ := elem.AsBigFloat().Float64()
				base = append(base, f)
			}
			data[name] = tileSequence(base, replicate)
		default:
			return nil, fmt.Errorf("data field %q: unsupported type %s, want a number or a flat numeric sequence", name, val.Type().FriendlyName())
		}
	}
	return data, nil
}

// fromFile builds a Data mapping from an external JSON or YAML dataset file,
// applying the replicate factor.
func fromFile(path string, replicate int) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var fields map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse JSON data file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse YAML data file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported data file extension %q (want .json, .yaml or .yml)", ext)
	}

	data := make(Data, len(fields))
	for name, val := range fields {
		converted, err := convertRawField(val, replicate)
		if err != nil {
			return nil, fmt.Errorf("data field %q: %w", name, err)
		}
		data[name] = converted
	}
	return data, nil
}

// convertRawField normalizes one decoded JSON/YAML value into the scalar or
// sequence form Data holds.
func convertRawField(val any, replicate int) (any, error) {
	switch v := val.(type) {
	case []any:
		base := make([]float64, 0, len(v))
		for i, elem := range v {
			f, ok := toFloat(elem)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want a number", i, elem)
			}
			base = append(base, f)
		}
		return tileSequence(base, replicate), nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("unsupported value of type %T, want a number or a flat numeric sequence", v)
		}
		return scaleScalar(normalizeScalar(f), replicate), nil
	}
}

// numberFromCty converts a cty number into int64 (when whole) or float64.
func numberFromCty(val cty.Value) (any, error) {
	bf := val.AsBigFloat()
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == 0 {
			return i, nil
		}
	}
	f, _ := bf.Float64()
	return f, nil
}

// normalizeScalar keeps whole numbers as int64 so size fields survive
// replication and marshal without a fractional part.
func normalizeScalar(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < maxExactInt {
		return int64(f)
	}
	return f
}

// scaleScalar multiplies whole-number scalars by the replicate factor; real
// scalars pass through unchanged.
func scaleScalar(scalar any, replicate int) any {
	if i, ok := scalar.(int64); ok {
		return i * int64(replicate)
	}
	return scalar
}

// tileSequence repeats the base sequence replicate times.
func tileSequence(base []float64, replicate int) []float64 {
	if replicate <= 1 {
		return base
	}
	tiled := make([]float64, 0, len(base)*replicate)
	for i := 0; i < replicate; i++ {
		tiled = append(tiled, base...)
	}
	return tiled
}

// toFloat widens the numeric types the JSON and YAML decoders produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
