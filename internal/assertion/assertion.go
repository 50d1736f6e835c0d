// Package assertion implements the fluent, chain-style expectation
// engine: expect(value).to.equal(x) and its "extended assertions"
// siblings, deep equality with cycle detection and epsilon tolerance,
// and the diagnostic formatting contract. A passing assertion signals
// internal/coverage via the deepest non-framework stack frame; a
// failing one panics with a *Failure the registry's case runner
// converts into a structured result.
//
// Grounded on the teacher's mock.Clock swappable-singleton shape for
// wiring a coverage sink in without a hard import cycle, and on
// testify/assert's chain-of-predicates style (itself a pack dependency)
// for the predicate-table design. Diagnostics render with
// davecgh/go-spew (value dumping) and pmezard/go-difflib (string
// diffing), both already indirect dependencies of testify and promoted
// here to direct, deliberate use.
package assertion

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"unicode"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

// Failure is panicked by a terminal assertion method on mismatch. The
// registry's case runner recovers it and records a FAILED result with
// Diagnostic as the message.
type Failure struct {
	Diagnostic string
	File       string
	Line       int
}

func (f *Failure) Error() string {
	if f.File == "" {
		return f.Diagnostic
	}
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Diagnostic)
}

// CoverageSink receives verified-line notifications. internal/registry
// wires internal/coverage's Default().MarkLineCovered in at startup;
// assertion itself has no dependency on the coverage package, avoiding
// an import cycle since coverage has no reason to import assertion.
type CoverageSink func(file string, line int)

// Expecter binds an assertion sequence to a running case: every
// Expect call it produces reports into onAssert and, on success,
// notifies coverage.
type Expecter struct {
	onAssert func(passed bool)
	coverage CoverageSink
}

// NewExpecter creates an Expecter. Either callback may be nil.
func NewExpecter(onAssert func(passed bool), coverage CoverageSink) *Expecter {
	return &Expecter{onAssert: onAssert, coverage: coverage}
}

// Expectation is the object returned by Expect(value); its terminal
// methods are the "extended assertions".
type Expectation struct {
	expecter *Expecter
	value    any
	negated  bool
	file     string
	line     int
}

// Expect begins an assertion chain against value, capturing the
// callsite two frames up (the caller of Expect).
func (x *Expecter) Expect(value any) *Expectation {
	_, file, line, _ := runtime.Caller(1)
	return &Expectation{expecter: x, value: value, file: file, line: line}
}

// To is a no-op chain word kept for readability: expect(v).To().Equal(x).
func (e *Expectation) To() *Expectation { return e }

// ToNot toggles negation, the Go rendition of the to_not path prefix.
func (e *Expectation) ToNot() *Expectation {
	e.negated = !e.negated
	return e
}

// Not is an alias for ToNot.
func (e *Expectation) Not() *Expectation { return e.ToNot() }

func (e *Expectation) pass() {
	if e.expecter == nil {
		return
	}
	if e.expecter.onAssert != nil {
		e.expecter.onAssert(true)
	}
	if e.expecter.coverage != nil {
		if file, line, ok := callerFrame(); ok {
			e.expecter.coverage(file, line)
		}
	}
}

func (e *Expectation) fail(diagnostic string) {
	if e.expecter != nil && e.expecter.onAssert != nil {
		e.expecter.onAssert(false)
	}
	panic(&Failure{Diagnostic: diagnostic, File: e.file, Line: e.line})
}

// evaluate is the single funnel every terminal predicate runs through:
// it applies negation, then either records a pass or panics a Failure
// built from diagnostic.
func (e *Expectation) evaluate(ok bool, diagnostic func() string) {
	if e.negated {
		ok = !ok
	}
	if ok {
		e.pass()
		return
	}
	e.fail(diagnostic())
}

// callerFrame returns the deepest stack frame, above the caller of
// this function, whose file is not part of the bddhost module itself
// — consistent with coverage.CallerFrame's "whole module prefix" rule
// rather than filtering only this package's own directory. A _test.go
// file is never framework code, so its frames always count as the
// caller's, even for the module's own tests.
func callerFrame() (string, int, bool) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return "", 0, false
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && (strings.HasSuffix(frame.File, "_test.go") || (!strings.Contains(frame.File, "/bddhost/") && !strings.HasPrefix(frame.Function, "bddhost/"))) {
			return frame.File, frame.Line, true
		}
		if !more {
			break
		}
	}
	return "", 0, false
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return strings.TrimSpace(spew.Sdump(v))
}

// --- Existence and truthiness ---

// Exist asserts the value is non-nil (including typed nils).
func (e *Expectation) Exist() {
	e.evaluate(!isNilish(e.value), func() string {
		return fmt.Sprintf("expected value to exist, got %s", formatValue(e.value))
	})
}

func isNilish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func truthy(v any) bool {
	if isNilish(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

// BeTruthy asserts the value is truthy under dynamic-language rules:
// nil, false, zero, and empty containers/strings are falsy.
func (e *Expectation) BeTruthy() {
	e.evaluate(truthy(e.value), func() string {
		return fmt.Sprintf("expected %s to be truthy", formatValue(e.value))
	})
}

// BeFalsy is the negation of BeTruthy.
func (e *Expectation) BeFalsy() {
	e.evaluate(!truthy(e.value), func() string {
		return fmt.Sprintf("expected %s to be falsy", formatValue(e.value))
	})
}

// --- Equality ---

// Be asserts reference equality: identical pointers, or for
// non-pointer comparable types, plain ==.
func (e *Expectation) Be(ref any) {
	ok := e.value == ref
	if rv, rr := reflect.ValueOf(e.value), reflect.ValueOf(ref); rv.Kind() == reflect.Ptr && rr.Kind() == reflect.Ptr {
		ok = rv.Pointer() == rr.Pointer()
	}
	e.evaluate(ok, func() string { return describeDiff(ref, e.value) })
}

// Equal asserts deep equality, with an optional epsilon tolerance for
// numeric comparisons.
func (e *Expectation) Equal(expected any, epsilon ...float64) {
	eps := 0.0
	if len(epsilon) > 0 {
		eps = epsilon[0]
	}
	e.evaluate(deepEqual(expected, e.value, eps), func() string { return describeDiff(expected, e.value) })
}

// DeepEqual is an alias for Equal, kept because the underlying
// language distinguishes reference equality (Be) from structural
// equality (equal/deep_equal) under two names for the same operation.
func (e *Expectation) DeepEqual(expected any, epsilon ...float64) { e.Equal(expected, epsilon...) }

// --- Type and structural assertions ---

// BeA asserts the value's dynamic type matches sample's (a zero value
// or instance of the expected type).
func (e *Expectation) BeA(sample any) {
	wantType := reflect.TypeOf(sample)
	gotType := reflect.TypeOf(e.value)
	e.evaluate(wantType != nil && gotType == wantType, func() string {
		return fmt.Sprintf("expected type %v got %v", wantType, gotType)
	})
}

// ImplementInterface asserts the value implements the interface named
// by ifacePtr, e.g. (*io.Reader)(nil).
func (e *Expectation) ImplementInterface(ifacePtr any) {
	ifaceType := reflect.TypeOf(ifacePtr).Elem()
	gotType := reflect.TypeOf(e.value)
	ok := gotType != nil && gotType.Implements(ifaceType)
	e.evaluate(ok, func() string {
		return fmt.Sprintf("expected %v to implement %v", gotType, ifaceType)
	})
}

// MatchSchema asserts the value has the same field/key set (not
// necessarily same values) as shape.
func (e *Expectation) MatchSchema(shape any) {
	sv, vv := reflect.ValueOf(shape), reflect.ValueOf(e.value)
	ok := sv.IsValid() && vv.IsValid() && sv.Kind() == vv.Kind()
	if ok {
		switch sv.Kind() {
		case reflect.Map:
			for _, k := range sv.MapKeys() {
				if !vv.MapIndex(k).IsValid() {
					ok = false
					break
				}
			}
		case reflect.Struct:
			ok = sv.Type() == vv.Type()
		}
	}
	e.evaluate(ok, func() string {
		return fmt.Sprintf("expected %s to match schema %s", formatValue(e.value), formatValue(shape))
	})
}

// --- String assertions ---

// Match asserts a string equals pattern literally (the non-regex
// sibling of MatchRegex).
func (e *Expectation) Match(pattern string) {
	s, ok := e.value.(string)
	e.evaluate(ok && s == pattern, func() string {
		return fmt.Sprintf("string %q did not match pattern %q", fmt.Sprint(e.value), pattern)
	})
}

// MatchRegexOptions configures MatchRegex.
type MatchRegexOptions struct {
	CaseInsensitive bool
}

// MatchRegex asserts a string matches the regular expression pattern.
func (e *Expectation) MatchRegex(pattern string, opts ...MatchRegexOptions) {
	s, isString := e.value.(string)
	expr := pattern
	if len(opts) > 0 && opts[0].CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, reErr := regexp.Compile(expr)
	ok := isString && reErr == nil && re.MatchString(s)
	e.evaluate(ok, func() string {
		return fmt.Sprintf("string %q did not match pattern %q", fmt.Sprint(e.value), pattern)
	})
}

// StartWith asserts a string has the given prefix.
func (e *Expectation) StartWith(prefix string) {
	s, ok := e.value.(string)
	e.evaluate(ok && strings.HasPrefix(s, prefix), func() string {
		return fmt.Sprintf("expected %q to start with %q", fmt.Sprint(e.value), prefix)
	})
}

// EndWith asserts a string has the given suffix.
func (e *Expectation) EndWith(suffix string) {
	s, ok := e.value.(string)
	e.evaluate(ok && strings.HasSuffix(s, suffix), func() string {
		return fmt.Sprintf("expected %q to end with %q", fmt.Sprint(e.value), suffix)
	})
}

// BeUppercase asserts a string has no lowercase letters and at least
// one cased character.
func (e *Expectation) BeUppercase() {
	s, ok := e.value.(string)
	e.evaluate(ok && s == strings.ToUpper(s) && hasCasedRune(s), func() string {
		return fmt.Sprintf("expected %q to be uppercase", fmt.Sprint(e.value))
	})
}

// BeLowercase asserts a string has no uppercase letters and at least
// one cased character.
func (e *Expectation) BeLowercase() {
	s, ok := e.value.(string)
	e.evaluate(ok && s == strings.ToLower(s) && hasCasedRune(s), func() string {
		return fmt.Sprintf("expected %q to be lowercase", fmt.Sprint(e.value))
	})
}

func hasCasedRune(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r) {
			return true
		}
	}
	return false
}

// --- Container assertions ---

// Contain asserts value (a slice, array, map, or string) contains the
// given element/substring.
func (e *Expectation) Contain(item any) {
	ok := false
	switch v := reflect.ValueOf(e.value); {
	case v.Kind() == reflect.String:
		s, _ := item.(string)
		ok = strings.Contains(v.String(), s)
	case v.Kind() == reflect.Slice || v.Kind() == reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if deepEqual(v.Index(i).Interface(), item, 0) {
				ok = true
				break
			}
		}
	case v.Kind() == reflect.Map:
		for _, k := range v.MapKeys() {
			if deepEqual(v.MapIndex(k).Interface(), item, 0) {
				ok = true
				break
			}
		}
	}
	e.evaluate(ok, func() string {
		return fmt.Sprintf("expected %s to contain %s", formatValue(e.value), formatValue(item))
	})
}

// HaveKey asserts value (a map or struct) has the given key/field.
func (e *Expectation) HaveKey(key any) {
	e.evaluate(hasKey(e.value, key), func() string {
		return fmt.Sprintf("expected %s to have key %s", formatValue(e.value), formatValue(key))
	})
}

// HaveKeys asserts value has every key in keys.
func (e *Expectation) HaveKeys(keys []any) {
	missing := []any{}
	for _, k := range keys {
		if !hasKey(e.value, k) {
			missing = append(missing, k)
		}
	}
	e.evaluate(len(missing) == 0, func() string {
		return fmt.Sprintf("expected %s to have keys %s, missing %s", formatValue(e.value), formatValue(keys), formatValue(missing))
	})
}

func hasKey(container, key any) bool {
	v := reflect.ValueOf(container)
	if v.Kind() == reflect.Map {
		kv := reflect.ValueOf(key)
		return v.MapIndex(kv).IsValid()
	}
	if v.Kind() == reflect.Struct {
		name, _ := key.(string)
		return v.FieldByName(name).IsValid()
	}
	return false
}

// HaveProperty asserts value has field/key name, and optionally that
// its value equals expectedValue.
func (e *Expectation) HaveProperty(name string, expectedValue ...any) {
	v := reflect.ValueOf(e.value)
	var field reflect.Value
	switch v.Kind() {
	case reflect.Struct:
		field = v.FieldByName(name)
	case reflect.Map:
		field = v.MapIndex(reflect.ValueOf(name))
	}
	if !field.IsValid() {
		e.evaluate(false, func() string { return fmt.Sprintf("expected %s to have property %q", formatValue(e.value), name) })
		return
	}
	if len(expectedValue) == 0 {
		e.evaluate(true, func() string { return "" })
		return
	}
	e.evaluate(deepEqual(expectedValue[0], field.Interface(), 0), func() string {
		return describeDiff(expectedValue[0], field.Interface())
	})
}

// HaveLength asserts len(value) == n; works on strings, slices, arrays,
// maps, and channels.
func (e *Expectation) HaveLength(n int) {
	v := reflect.ValueOf(e.value)
	length := -1
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		length = v.Len()
	}
	e.evaluate(length == n, func() string {
		return fmt.Sprintf("expected length %d got %d", n, length)
	})
}

// BeEmpty asserts value has zero length.
func (e *Expectation) BeEmpty() {
	v := reflect.ValueOf(e.value)
	empty := isNilish(e.value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		empty = v.Len() == 0
	}
	e.evaluate(empty, func() string {
		return fmt.Sprintf("expected %s to be empty", formatValue(e.value))
	})
}

// --- Numeric assertions ---

func compareNumeric(a, b any) (int, bool) {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !isNumeric(av) || !isNumeric(bv) {
		return 0, false
	}
	af, bf := asFloat(av), asFloat(bv)
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// BeGreaterThan asserts value > other.
func (e *Expectation) BeGreaterThan(other any) {
	cmp, ok := compareNumeric(e.value, other)
	e.evaluate(ok && cmp > 0, func() string {
		return fmt.Sprintf("expected %s to be greater than %s", formatValue(e.value), formatValue(other))
	})
}

// BeLessThan asserts value < other.
func (e *Expectation) BeLessThan(other any) {
	cmp, ok := compareNumeric(e.value, other)
	e.evaluate(ok && cmp < 0, func() string {
		return fmt.Sprintf("expected %s to be less than %s", formatValue(e.value), formatValue(other))
	})
}

// AtLeast asserts value >= other.
func (e *Expectation) AtLeast(other any) {
	cmp, ok := compareNumeric(e.value, other)
	e.evaluate(ok && cmp >= 0, func() string {
		return fmt.Sprintf("expected %s to be at least %s", formatValue(e.value), formatValue(other))
	})
}

// AtMost asserts value <= other.
func (e *Expectation) AtMost(other any) {
	cmp, ok := compareNumeric(e.value, other)
	e.evaluate(ok && cmp <= 0, func() string {
		return fmt.Sprintf("expected %s to be at most %s", formatValue(e.value), formatValue(other))
	})
}

// BeBetween asserts lo <= value <= hi.
func (e *Expectation) BeBetween(lo, hi any) {
	cmpLo, okLo := compareNumeric(e.value, lo)
	cmpHi, okHi := compareNumeric(e.value, hi)
	e.evaluate(okLo && okHi && cmpLo >= 0 && cmpHi <= 0, func() string {
		return fmt.Sprintf("expected %s to be between %s and %s", formatValue(e.value), formatValue(lo), formatValue(hi))
	})
}

// BePositive asserts value > 0.
func (e *Expectation) BePositive() {
	v := reflect.ValueOf(e.value)
	e.evaluate(isNumeric(v) && asFloat(v) > 0, func() string {
		return fmt.Sprintf("expected %s to be positive", formatValue(e.value))
	})
}

// BeNegative asserts value < 0.
func (e *Expectation) BeNegative() {
	v := reflect.ValueOf(e.value)
	e.evaluate(isNumeric(v) && asFloat(v) < 0, func() string {
		return fmt.Sprintf("expected %s to be negative", formatValue(e.value))
	})
}

// BeInteger asserts value is an integer type, or a float with no
// fractional part.
func (e *Expectation) BeInteger() {
	v := reflect.ValueOf(e.value)
	ok := false
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		ok = true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		ok = f == float64(int64(f))
	}
	e.evaluate(ok, func() string {
		return fmt.Sprintf("expected %s to be an integer", formatValue(e.value))
	})
}

// --- Error and behavioral assertions ---

// Fail asserts value is a func() error (or func()) that panics or
// returns a non-nil error, optionally matching message.
func (e *Expectation) Fail(message ...string) {
	msg, didFail := invoke(e.value)
	ok := didFail
	if ok && len(message) > 0 {
		ok = strings.Contains(msg, message[0])
	}
	e.evaluate(ok, func() string {
		if !didFail {
			return "expected function to fail, it did not"
		}
		return fmt.Sprintf("captured failure message: %s", msg)
	})
}

// FailWith asserts value is a func() that fails with a message
// matching the regular expression pattern.
func (e *Expectation) FailWith(pattern string) {
	msg, didFail := invoke(e.value)
	re, reErr := regexp.Compile(pattern)
	ok := didFail && reErr == nil && re.MatchString(msg)
	e.evaluate(ok, func() string {
		return fmt.Sprintf("string %q did not match pattern %q", msg, pattern)
	})
}

// ThrowErrorMatching is an alias for FailWith, named for callers
// modeling the action as a thrown exception rather than a returned
// error.
func (e *Expectation) ThrowErrorMatching(pattern string) { e.FailWith(pattern) }

func invoke(value any) (message string, failed bool) {
	fn, ok := value.(func() error)
	if ok {
		defer func() {
			if r := recover(); r != nil {
				message, failed = fmt.Sprint(r), true
			}
		}()
		if err := fn(); err != nil {
			return err.Error(), true
		}
		return "", false
	}

	voidFn, ok := value.(func())
	if !ok {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			message, failed = fmt.Sprint(r), true
		}
	}()
	voidFn()
	return "", false
}

// Satisfy asserts pred(value) is true.
func (e *Expectation) Satisfy(pred func(any) bool) {
	e.evaluate(pred(e.value), func() string {
		return fmt.Sprintf("expected %s to satisfy predicate", formatValue(e.value))
	})
}

// --- Change/Increase/Decrease ---

// Change asserts calling value (a func()) changes the result of
// getter, snapshotting before and after.
func (e *Expectation) Change(getter func() any) {
	before := getter()
	runAction(e.value)
	after := getter()
	e.evaluate(!deepEqual(before, after, 0), func() string {
		return diffSnapshot(before, after)
	})
}

// Increase asserts calling value increases getter's numeric result.
func (e *Expectation) Increase(getter func() any) {
	before := asFloat(reflect.ValueOf(getter()))
	runAction(e.value)
	after := asFloat(reflect.ValueOf(getter()))
	e.evaluate(after > before, func() string {
		return fmt.Sprintf("expected value to increase, went from %v to %v", before, after)
	})
}

// Decrease asserts calling value decreases getter's numeric result.
func (e *Expectation) Decrease(getter func() any) {
	before := asFloat(reflect.ValueOf(getter()))
	runAction(e.value)
	after := asFloat(reflect.ValueOf(getter()))
	e.evaluate(after < before, func() string {
		return fmt.Sprintf("expected value to decrease, went from %v to %v", before, after)
	})
}

func runAction(value any) {
	if fn, ok := value.(func()); ok {
		fn()
	}
}

func diffSnapshot(before, after any) string {
	bs, aok := before.(string)
	as, bok := after.(string)
	if aok && bok {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(bs),
			B:        difflib.SplitLines(as),
			FromFile: "before",
			ToFile:   "after",
			Context:  2,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		return text
	}
	return fmt.Sprintf("expected value to change, before %s after %s", formatValue(before), formatValue(after))
}
