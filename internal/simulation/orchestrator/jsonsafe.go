package orchestrator

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

const clampMagnitude = 1e15

// MarshalJSON renders the summary for transport. encoding/json refuses to
// encode a NaN or ±Inf float64 at all (json: unsupported value), and the
// Monte Carlo risk/waterfall/cashflow trees can carry either (zero-division
// ratios, undefined interest coverage before a leverage facility exists,
// degenerate IRR series). Every float64 anywhere under the summary -
// including nested LoanPortfolio, Cashflows, Waterfall and Metrics values -
// is rounded to 3 decimals and clamped to ±1e15; non-finite values become
// JSON null instead of failing the marshal.
func (s *RunSummary) MarshalJSON() ([]byte, error) {
	type alias RunSummary
	return json.Marshal(jsonSafe(reflect.ValueOf((*alias)(s))))
}

// jsonSafe walks v and rebuilds it as a map[string]any/[]any/scalar tree
// equivalent to what encoding/json would emit for v, except every float64
// leaf is clamped/rounded and NaN/±Inf become nil. It honors `json:"name"`,
// `json:"-"` and `,omitempty` tags the same way encoding/json does, so the
// rebuilt tree serializes identically for every already-finite field.
func jsonSafe(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	// Types with their own encoding (time.Time and similar) already produce
	// safe JSON and have no exported fields for jsonSafeStruct to walk, so
	// defer to them as-is rather than decomposing into {}.
	if v.CanInterface() {
		if _, ok := v.Interface().(json.Marshaler); ok {
			return v.Interface()
		}
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return jsonSafe(v.Elem())
	case reflect.Float32, reflect.Float64:
		return safeFloat(v.Float())
	case reflect.Struct:
		return jsonSafeStruct(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		return jsonSafeSequence(v)
	case reflect.Array:
		return jsonSafeSequence(v)
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = jsonSafe(iter.Value())
		}
		return out
	default:
		return v.Interface()
	}
}

func jsonSafeSequence(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = jsonSafe(v.Index(i))
	}
	return out
}

// safeFloat clamps a finite value to ±1e15 and rounds it to 3 decimals
// using shopspring/decimal rather than math.Round(f*1000)/1000, avoiding
// binary floating-point rounding artifacts (e.g. 1.0005 rounding down) at
// the transport boundary. NaN/±Inf return nil (JSON null) since
// encoding/json cannot represent them at all.
func safeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f > clampMagnitude {
		f = clampMagnitude
	} else if f < -clampMagnitude {
		f = -clampMagnitude
	}
	rounded, _ := decimal.NewFromFloat(f).Round(3).Float64()
	return rounded
}

func jsonSafeStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		name, omitempty, skip := jsonTag(field)
		if skip {
			continue
		}
		fv := v.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		out[name] = jsonSafe(fv)
	}
	return out
}

func jsonTag(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = field.Name
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}
