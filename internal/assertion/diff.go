package assertion

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// deepEqual implements the deep-equality contract: scalar equality,
// pointwise-equal ordered containers, key-set-equal keyed containers,
// with cycle detection and optional epsilon tolerance for numbers.
func deepEqual(a, b any, epsilon float64) bool {
	seen := map[[2]uintptr]bool{}
	return deepEqualWalk(reflect.ValueOf(a), reflect.ValueOf(b), epsilon, seen)
}

// Equal exposes the deep-equality contract to other packages (notably
// internal/mocking's argument matchers) without duplicating it.
func Equal(a, b any, epsilon float64) bool {
	return deepEqual(a, b, epsilon)
}

func deepEqualWalk(a, b reflect.Value, epsilon float64, seen map[[2]uintptr]bool) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}

	if isNumeric(a) && isNumeric(b) {
		return numbersEqual(a, b, epsilon)
	}

	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if a.Kind() != reflect.Slice {
			if a.IsNil() || b.IsNil() {
				return a.IsNil() && b.IsNil()
			}
		}
		if a.Kind() == reflect.Ptr {
			pair := [2]uintptr{a.Pointer(), b.Pointer()}
			if seen[pair] {
				return true
			}
			seen[pair] = true
			return deepEqualWalk(a.Elem(), b.Elem(), epsilon, seen)
		}
	}

	switch a.Kind() {
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !deepEqualWalk(a.Index(i), b.Index(i), epsilon, seen) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		for _, k := range a.MapKeys() {
			bv := b.MapIndex(k)
			if !bv.IsValid() {
				return false
			}
			if !deepEqualWalk(a.MapIndex(k), bv, epsilon, seen) {
				return false
			}
		}
		return true
	case reflect.Struct:
		if a.NumField() != b.NumField() {
			return false
		}
		for i := 0; i < a.NumField(); i++ {
			if !deepEqualWalk(a.Field(i), b.Field(i), epsilon, seen) {
				return false
			}
		}
		return true
	case reflect.Interface:
		return deepEqualWalk(a.Elem(), b.Elem(), epsilon, seen)
	default:
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func asFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return math.NaN()
}

func numbersEqual(a, b reflect.Value, epsilon float64) bool {
	af, bf := asFloat(a), asFloat(b)
	if epsilon == 0 {
		return af == bf
	}
	return math.Abs(af-bf) <= epsilon
}

// describeDiff renders a mismatch between expected and actual the way
// the diagnostic contract requires: a one-liner for scalars, a tree of
// differences for containers.
func describeDiff(expected, actual any) string {
	ev, av := reflect.ValueOf(expected), reflect.ValueOf(actual)
	if ev.IsValid() && av.IsValid() && (ev.Kind() == reflect.Map || ev.Kind() == reflect.Struct) &&
		ev.Kind() == av.Kind() {
		return containerDiff(ev, av)
	}
	return fmt.Sprintf("expected %s got %s", formatValue(expected), formatValue(actual))
}

func containerDiff(expected, actual reflect.Value) string {
	var missing, extra, changed []string

	switch expected.Kind() {
	case reflect.Map:
		for _, k := range expected.MapKeys() {
			av := actual.MapIndex(k)
			if !av.IsValid() {
				missing = append(missing, fmt.Sprintf("%v", k.Interface()))
				continue
			}
			if !deepEqualWalk(expected.MapIndex(k), av, 0, map[[2]uintptr]bool{}) {
				changed = append(changed, fmt.Sprintf("%v: expected %s got %s", k.Interface(),
					formatValue(expected.MapIndex(k).Interface()), formatValue(av.Interface())))
			}
		}
		for _, k := range actual.MapKeys() {
			if !expected.MapIndex(k).IsValid() {
				extra = append(extra, fmt.Sprintf("%v", k.Interface()))
			}
		}
	case reflect.Struct:
		t := expected.Type()
		for i := 0; i < t.NumField(); i++ {
			name := t.Field(i).Name
			if !deepEqualWalk(expected.Field(i), actual.Field(i), 0, map[[2]uintptr]bool{}) {
				changed = append(changed, fmt.Sprintf("%s: expected %s got %s", name,
					formatValue(expected.Field(i).Interface()), formatValue(actual.Field(i).Interface())))
			}
		}
	}

	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(changed)

	var b strings.Builder
	b.WriteString("mismatch:")
	for _, m := range missing {
		fmt.Fprintf(&b, "\n  missing key: %s", m)
	}
	for _, m := range extra {
		fmt.Fprintf(&b, "\n  extra key: %s", m)
	}
	for _, m := range changed {
		fmt.Fprintf(&b, "\n  changed: %s", m)
	}
	return b.String()
}
