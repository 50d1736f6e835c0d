package mocking

import (
	"fmt"
	"reflect"
	"sync"

	"bddhost/internal/assertion"
)

// Mock wraps a target struct (addressed by a pointer), letting callers
// stub individual function-typed fields, stub plain-value fields, and
// register call expectations — all restored together, in LIFO order,
// by Restore.
type Mock struct {
	mu           sync.Mutex
	target       reflect.Value
	restorers    []func()
	expectations []*Expectation
	verifyAll    bool
}

// Create wraps targetAddr (a pointer to a struct). When
// verifyAllExpectationsCalled is true, Restore panics with a
// *assertion.Failure if any registered expectation was not met.
func Create(targetAddr any, verifyAllExpectationsCalled bool) *Mock {
	return &Mock{
		target:    reflect.ValueOf(targetAddr).Elem(),
		verifyAll: verifyAllExpectationsCalled,
	}
}

func (m *Mock) field(name string) reflect.Value {
	f := m.target.FieldByName(name)
	if !f.IsValid() {
		panic(&assertion.Failure{Diagnostic: fmt.Sprintf("mock target has no field %q", name)})
	}
	return f
}

// Stub replaces the function-typed field name with replacement.
func (m *Mock) Stub(name string, replacement any) *Stub {
	addr := m.field(name).Addr().Interface()
	st := StubClosure(addr, replacement)

	m.mu.Lock()
	m.restorers = append(m.restorers, st.Restore)
	m.mu.Unlock()
	return st
}

// StubProperty replaces the plain-value field name with value,
// restoring the original on Restore.
func (m *Mock) StubProperty(name string, value any) {
	field := m.field(name)
	original := reflect.New(field.Type()).Elem()
	original.Set(field)
	field.Set(reflect.ValueOf(value))

	m.mu.Lock()
	m.restorers = append(m.restorers, func() { field.Set(original) })
	m.mu.Unlock()
}

// Expect installs a spy over the function-typed field name and returns
// a fluent Expectation describing how it must have been called by the
// time Restore runs.
func (m *Mock) Expect(name string) *Expectation {
	addr := m.field(name).Addr().Interface()
	spy := On(addr)

	exp := &Expectation{name: name, spy: spy}

	m.mu.Lock()
	m.restorers = append(m.restorers, spy.Restore)
	m.expectations = append(m.expectations, exp)
	m.mu.Unlock()
	return exp
}

// Restore reverts every stub and spy installed through this Mock, in
// LIFO order, then — if verify-all-expectations is enabled — checks
// every registered expectation, panicking with the first unmet one.
func (m *Mock) Restore() {
	m.mu.Lock()
	restorers := append([]func(){}, m.restorers...)
	expectations := append([]*Expectation{}, m.expectations...)
	m.mu.Unlock()

	for i := len(restorers) - 1; i >= 0; i-- {
		restorers[i]()
	}

	if !m.verifyAll {
		return
	}
	for _, exp := range expectations {
		exp.check()
	}
}

// Expectation is the fluent call-count/argument expectation returned
// by Mock.Expect.
type Expectation struct {
	name     string
	spy      *Spy
	wantExact *int
	wantAtLeast *int
	wantAtMost  *int
	wantNone  bool
	matchers []Matcher
	after     *Expectation
	before    *Expectation
}

// ToBeCalled asserts the spy was called exactly n times (or at least
// once, if n is omitted).
func (e *Expectation) ToBeCalled(n ...int) *Expectation {
	if len(n) > 0 {
		e.wantExact = &n[0]
	} else {
		one := 1
		e.wantAtLeast = &one
	}
	return e
}

// Times is an alias for ToBeCalled(n), read as called.times(n).
func (e *Expectation) Times(n int) *Expectation { return e.ToBeCalled(n) }

// AtLeast asserts the spy was called at least n times.
func (e *Expectation) AtLeast(n int) *Expectation {
	e.wantAtLeast = &n
	return e
}

// AtMost asserts the spy was called at most n times.
func (e *Expectation) AtMost(n int) *Expectation {
	e.wantAtMost = &n
	return e
}

// With asserts at least one recorded call matched the given matchers.
func (e *Expectation) With(matchers ...Matcher) *Expectation {
	e.matchers = matchers
	return e
}

// ToNotBeCalled asserts the spy was never called.
func (e *Expectation) ToNotBeCalled() *Expectation {
	e.wantNone = true
	return e
}

// After asserts this expectation's first call happened after other's.
func (e *Expectation) After(other *Expectation) *Expectation {
	e.after = other
	return e
}

// Before asserts this expectation's first call happened before other's.
func (e *Expectation) Before(other *Expectation) *Expectation {
	e.before = other
	return e
}

func (e *Expectation) check() {
	calls := e.spy.Calls()

	if e.wantNone {
		if len(calls) != 0 {
			e.fail(fmt.Sprintf("expected %q to not be called, was called %d time(s)", e.name, len(calls)))
		}
		return
	}
	if e.wantExact != nil && len(calls) != *e.wantExact {
		e.fail(fmt.Sprintf("expected %q to be called %d time(s), got %d", e.name, *e.wantExact, len(calls)))
	}
	if e.wantAtLeast != nil && len(calls) < *e.wantAtLeast {
		e.fail(fmt.Sprintf("expected %q to be called at least %d time(s), got %d", e.name, *e.wantAtLeast, len(calls)))
	}
	if e.wantAtMost != nil && len(calls) > *e.wantAtMost {
		e.fail(fmt.Sprintf("expected %q to be called at most %d time(s), got %d", e.name, *e.wantAtMost, len(calls)))
	}
	if len(e.matchers) > 0 && !e.spy.WasCalledWith(e.matchers...) {
		e.fail(fmt.Sprintf("expected %q to be called with matching arguments, no recorded call matched", e.name))
	}
	if e.after != nil && !e.spy.WasCalledAfter(e.after.spy) {
		e.fail(fmt.Sprintf("expected %q to be called after %q", e.name, e.after.name))
	}
	if e.before != nil && !e.spy.WasCalledBefore(e.before.spy) {
		e.fail(fmt.Sprintf("expected %q to be called before %q", e.name, e.before.name))
	}
}

func (e *Expectation) fail(diagnostic string) {
	panic(&assertion.Failure{Diagnostic: diagnostic})
}
