package polyglot

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// floatEpsilon is the tolerance for float comparisons. The two stores
// serialize numbers differently (CBOR floats vs SQL numerics), so exact
// equality would report spurious drift.
const floatEpsilon = 1e-9

// FieldDiff names one field whose values disagree between the stores.
type FieldDiff struct {
	Field     string `json:"field"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// diffFields compares two entities of the same type field by field and
// returns the fields that differ. Comparison is semantic rather than
// byte-level: times compare with time.Time.Equal so location does not
// matter, and floats compare within [floatEpsilon].
func diffFields[T any](primary, secondary *T) []FieldDiff {
	var diffs []FieldDiff
	pv := reflect.ValueOf(primary).Elem()
	sv := reflect.ValueOf(secondary).Elem()
	collectDiffs(pv, sv, "", &diffs)
	return diffs
}

func collectDiffs(pv, sv reflect.Value, prefix string, diffs *[]FieldDiff) {
	t := pv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		if !valuesEqual(pv.Field(i), sv.Field(i)) {
			*diffs = append(*diffs, FieldDiff{
				Field:     name,
				Primary:   formatValue(pv.Field(i)),
				Secondary: formatValue(sv.Field(i)),
			})
		}
	}
}

func valuesEqual(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		// Inside a JSONMap the same number decodes as int64 from CBOR but
		// float64 from JSONB. Equal values in different numeric types are
		// not drift.
		if an, ok := numericValue(a); ok {
			if bn, ok := numericValue(b); ok {
				return math.Abs(an-bn) < floatEpsilon
			}
		}
		return false
	}

	// time.Time compares by instant, not by wall-clock representation.
	if a.Type() == reflect.TypeOf(time.Time{}) {
		at := a.Interface().(time.Time)
		bt := b.Interface().(time.Time)
		return at.Equal(bt)
	}

	switch a.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.Abs(a.Float()-b.Float()) < floatEpsilon
	case reflect.Ptr:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return valuesEqual(a.Elem(), b.Elem())
	case reflect.Slice:
		if a.IsNil() != b.IsNil() {
			// A nil slice and an empty slice are the same data.
			return a.Len() == 0 && b.Len() == 0
		}
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !valuesEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		for _, key := range a.MapKeys() {
			av := a.MapIndex(key)
			bv := b.MapIndex(key)
			if !bv.IsValid() || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !a.Type().Field(i).IsExported() {
				continue
			}
			if !valuesEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return valuesEqual(a.Elem(), b.Elem())
	default:
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
}

func numericValue(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func formatValue(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "<nil>"
		}
		v = v.Elem()
	}
	return fmt.Sprintf("%v", v.Interface())
}
