package mocking

import (
	"reflect"

	"bddhost/internal/assertion"
)

// Matcher is a predicate evaluated against a single call argument.
type Matcher interface {
	Match(arg any) bool
}

type matcherFunc func(any) bool

func (f matcherFunc) Match(arg any) bool { return f(arg) }

// Any matches every argument, including nil.
func Any() Matcher { return matcherFunc(func(any) bool { return true }) }

// IsString matches string-kinded arguments.
func IsString() Matcher { return kindMatcher(reflect.String) }

// IsNumber matches any numeric-kinded argument.
func IsNumber() Matcher {
	return matcherFunc(func(v any) bool {
		if v == nil {
			return false
		}
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	})
}

// IsTable matches map, struct, or slice arguments (the host's "table" type).
func IsTable() Matcher {
	return matcherFunc(func(v any) bool {
		if v == nil {
			return false
		}
		k := reflect.ValueOf(v).Kind()
		return k == reflect.Map || k == reflect.Struct || k == reflect.Slice
	})
}

// IsBoolean matches bool arguments.
func IsBoolean() Matcher { return kindMatcher(reflect.Bool) }

// IsFunction matches function-valued arguments.
func IsFunction() Matcher { return kindMatcher(reflect.Func) }

// IsCallable is an alias for IsFunction.
func IsCallable() Matcher { return IsFunction() }

func kindMatcher(kind reflect.Kind) Matcher {
	return matcherFunc(func(v any) bool {
		return v != nil && reflect.ValueOf(v).Kind() == kind
	})
}

// TableContaining matches a map argument that contains every key/value
// pair in partial (extra keys in the argument are allowed).
func TableContaining(partial map[string]any) Matcher {
	return matcherFunc(func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for k, want := range partial {
			got, present := m[k]
			if !present || !assertion.Equal(want, got, 0) {
				return false
			}
		}
		return true
	})
}

// DeepEqualMatcher matches an argument deeply equal to value.
func DeepEqualMatcher(value any) Matcher {
	return matcherFunc(func(v any) bool { return assertion.Equal(value, v, 0) })
}

// Custom wraps an arbitrary predicate as a Matcher.
func Custom(fn func(any) bool) Matcher { return matcherFunc(fn) }

type anyRestMatcher struct{}

func (anyRestMatcher) Match(any) bool { return true }

// AnyRest is a terminal matcher meaning "accept any number of
// additional trailing arguments". Using it anywhere but last in a
// matcher sequence passed to matchArgs has no special effect.
func AnyRest() Matcher { return anyRestMatcher{} }

func isAnyRest(m Matcher) bool {
	_, ok := m.(anyRestMatcher)
	return ok
}

// matchArgs compares a call's recorded args against a matcher
// sequence. Missing trailing args (call shorter than matchers) are
// treated as nil. Extra args beyond the matchers fail the match unless
// the last matcher is AnyRest.
func matchArgs(args []any, matchers []Matcher) bool {
	if len(matchers) > 0 && isAnyRest(matchers[len(matchers)-1]) {
		matchers = matchers[:len(matchers)-1]
		if len(args) < len(matchers) {
			args = padNil(args, len(matchers))
		}
		for i, m := range matchers {
			if !m.Match(args[i]) {
				return false
			}
		}
		return true
	}

	if len(args) > len(matchers) {
		return false
	}
	args = padNil(args, len(matchers))
	for i, m := range matchers {
		if !m.Match(args[i]) {
			return false
		}
	}
	return true
}

func padNil(args []any, n int) []any {
	if len(args) >= n {
		return args
	}
	out := make([]any, n)
	copy(out, args)
	return out
}
