// Package mocking implements the dependency-isolation substrate: spies
// that record calls against a monotonic global sequence, stubs with
// exhaustion policies, mock objects with guaranteed LIFO restoration,
// argument matchers, and sequence verification.
//
// Go has no equivalent of replacing target[method] on an arbitrary
// object at runtime, so a "target" here is a pointer to a function-typed
// field or variable (the idiomatic Go seam for swappable behavior,
// exactly the shape of the teacher's package-level
// defaultClock/SetDefaultClock/ResetDefaultClock triple in
// internal/testing/mock/clock.go). On and the StubConstant/StubClosure/
// StubSequence constructors install a reflect.MakeFunc wrapper over
// that seam and return a *Spy or *Stub whose Restore reverts it; a
// plain value field is swapped directly by Mock.StubProperty.
package mocking

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var sequenceCounter int64

func nextSequence() int64 {
	return atomic.AddInt64(&sequenceCounter, 1)
}

// CallRecord is one recorded invocation of a spied or stubbed function.
type CallRecord struct {
	Args      []any
	Results   []any
	Sequence  int64
	Timestamp time.Time
}

// Spy records every call made through it. Construct with New (a
// standalone spy around an existing function value) or On (installed
// over a function-typed field/variable, forwarding to the original).
type Spy struct {
	mu       sync.Mutex
	id       uuid.UUID
	calls    []CallRecord
	restorer func()
}

// ID uniquely identifies this spy instance, for diagnostics that need
// to tell apart two spies installed over fields of the same name
// across different mocks.
func (s *Spy) ID() uuid.UUID { return s.id }

// New builds a standalone spy around fn and returns both the Spy and
// the callable function value the caller invokes in fn's place — the
// Go rendition of spy.new(fn), since Go has no way to make a Spy value
// itself directly callable.
func New(fn any) (*Spy, any) {
	s := &Spy{id: uuid.New()}
	fnVal := reflect.ValueOf(fn)
	wrapped := reflect.MakeFunc(fnVal.Type(), func(args []reflect.Value) []reflect.Value {
		return s.record(args, fnVal)
	})
	s.restorer = func() {}
	return s, wrapped.Interface()
}

// On installs a spy over the function-typed field or variable at
// fieldAddr (e.g. &service.DoThing), forwarding every call to the
// original implementation. Call Restore to revert.
func On(fieldAddr any) *Spy {
	s := &Spy{id: uuid.New()}
	fieldVal := reflect.ValueOf(fieldAddr).Elem()
	original := reflect.ValueOf(fieldVal.Interface())

	wrapped := reflect.MakeFunc(fieldVal.Type(), func(args []reflect.Value) []reflect.Value {
		return s.record(args, original)
	})

	fieldVal.Set(wrapped)
	s.restorer = func() { fieldVal.Set(original) }
	return s
}

func (s *Spy) record(args []reflect.Value, forward reflect.Value) []reflect.Value {
	argVals := make([]any, len(args))
	for i, a := range args {
		argVals[i] = a.Interface()
	}

	var results []reflect.Value
	if forward.IsValid() {
		results = forward.Call(args)
	}

	resultVals := make([]any, len(results))
	for i, r := range results {
		resultVals[i] = r.Interface()
	}

	s.mu.Lock()
	s.calls = append(s.calls, CallRecord{
		Args:      argVals,
		Results:   resultVals,
		Sequence:  nextSequence(),
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	return results
}

// Calls returns a copy of every recorded call, in order.
func (s *Spy) Calls() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.calls))
	copy(out, s.calls)
	return out
}

// WasCalled reports whether the spy was called at all, or exactly n
// times when n is given.
func (s *Spy) WasCalled(n ...int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(n) == 0 {
		return len(s.calls) > 0
	}
	return len(s.calls) == n[0]
}

// WasCalledWith reports whether any recorded call matches matchers.
func (s *Spy) WasCalledWith(matchers ...Matcher) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if matchArgs(c.Args, matchers) {
			return true
		}
	}
	return false
}

// WasCalledBefore reports whether this spy's first call happened
// (by global sequence number) before other's first call. Both spies
// must have at least one recorded call.
func (s *Spy) WasCalledBefore(other *Spy) bool {
	a, aok := s.firstSequence()
	b, bok := other.firstSequence()
	return aok && bok && a < b
}

// WasCalledAfter reports whether this spy's first call happened after
// other's first call.
func (s *Spy) WasCalledAfter(other *Spy) bool {
	a, aok := s.firstSequence()
	b, bok := other.firstSequence()
	return aok && bok && a > b
}

func (s *Spy) firstSequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return 0, false
	}
	return s.calls[0].Sequence, true
}

// Restore reverts an installed spy's field to its original value. A
// no-op for standalone spies built with New.
func (s *Spy) Restore() {
	if s.restorer != nil {
		s.restorer()
	}
}

// SequenceCall pairs a spy with an optional matcher sequence, the unit
// VerifySequence checks ordering over.
type SequenceCall struct {
	Spy     *Spy
	Matches []Matcher
}

// VerifySequence checks that the given spies were called in the order
// listed, by global sequence number. Calls need not be adjacent unless
// strict is true, in which case no other tracked call may fall between
// them.
func VerifySequence(strict bool, calls ...SequenceCall) bool {
	var lastSeq int64 = -1
	for _, c := range calls {
		seq, ok := findMatchingSequence(c, lastSeq)
		if !ok {
			return false
		}
		if strict && lastSeq >= 0 && seq != lastSeq+1 {
			return false
		}
		lastSeq = seq
	}
	return true
}

func findMatchingSequence(c SequenceCall, after int64) (int64, bool) {
	for _, rec := range c.Spy.Calls() {
		if rec.Sequence <= after {
			continue
		}
		if len(c.Matches) == 0 || matchArgs(rec.Args, c.Matches) {
			return rec.Sequence, true
		}
	}
	return 0, false
}
