package mocking

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExhaustionPolicy controls what a Stub returns once its programmed
// sequence of values has been exhausted.
type ExhaustionPolicy int

const (
	// PolicyNil returns the zero value of each return type.
	PolicyNil ExhaustionPolicy = iota
	// PolicyFallback returns a fixed fallback value.
	PolicyFallback
	// PolicyOriginal forwards to the function's original implementation.
	PolicyOriginal
	// PolicyCycle restarts the sequence from its first value.
	PolicyCycle
)

// Stub is a spy whose body is a programmable replacement rather than a
// forward-to-original wrapper: a constant return, a closure, or a
// returns_in_sequence policy.
type Stub struct {
	mu       sync.Mutex
	id       uuid.UUID
	calls    []CallRecord
	values   []any
	index    int
	policy   ExhaustionPolicy
	fallback any
	original reflect.Value
	restorer func()
}

// ID uniquely identifies this stub instance.
func (st *Stub) ID() uuid.UUID { return st.id }

// StubConstant installs a stub over the function-typed field at
// fieldAddr that always returns value (or the elements of value when
// it is a []any and the function has multiple return values).
func StubConstant(fieldAddr any, value any) *Stub {
	return StubSequence(fieldAddr, []any{value}, PolicyCycle, nil)
}

// StubClosure installs a stub whose body is replacement itself —
// replacement must have the same function type as the field.
func StubClosure(fieldAddr any, replacement any) *Stub {
	st := &Stub{id: uuid.New()}
	fieldVal := reflect.ValueOf(fieldAddr).Elem()
	original := reflect.ValueOf(fieldVal.Interface())
	replacementVal := reflect.ValueOf(replacement)

	wrapped := reflect.MakeFunc(fieldVal.Type(), func(args []reflect.Value) []reflect.Value {
		st.recordCall(args)
		return replacementVal.Call(args)
	})

	fieldVal.Set(wrapped)
	st.original = original
	st.restorer = func() { fieldVal.Set(original) }
	return st
}

// StubSequence installs a stub over fieldAddr that returns the next
// value in values on each call, applying policy once exhausted.
func StubSequence(fieldAddr any, values []any, policy ExhaustionPolicy, fallback any) *Stub {
	st := &Stub{id: uuid.New(), values: values, policy: policy, fallback: fallback}
	fieldVal := reflect.ValueOf(fieldAddr).Elem()
	fnType := fieldVal.Type()
	original := reflect.ValueOf(fieldVal.Interface())
	st.original = original

	wrapped := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		st.recordCall(args)
		return st.next(fnType, args)
	})

	fieldVal.Set(wrapped)
	st.restorer = func() { fieldVal.Set(original) }
	return st
}

func (st *Stub) recordCall(args []reflect.Value) {
	argVals := make([]any, len(args))
	for i, a := range args {
		argVals[i] = a.Interface()
	}
	st.mu.Lock()
	st.calls = append(st.calls, CallRecord{Args: argVals, Sequence: nextSequence(), Timestamp: time.Now()})
	st.mu.Unlock()
}

func (st *Stub) next(fnType reflect.Type, args []reflect.Value) []reflect.Value {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.index < len(st.values) {
		v := st.values[st.index]
		st.index++
		return toResults(fnType, v)
	}

	switch st.policy {
	case PolicyFallback:
		return toResults(fnType, st.fallback)
	case PolicyOriginal:
		if st.original.IsValid() {
			return st.original.Call(args)
		}
		return zeroResults(fnType)
	case PolicyCycle:
		if len(st.values) == 0 {
			return zeroResults(fnType)
		}
		st.index = 1
		return toResults(fnType, st.values[0])
	default: // PolicyNil
		return zeroResults(fnType)
	}
}

func zeroResults(fnType reflect.Type) []reflect.Value {
	out := make([]reflect.Value, fnType.NumOut())
	for i := range out {
		out[i] = reflect.Zero(fnType.Out(i))
	}
	return out
}

func toResults(fnType reflect.Type, value any) []reflect.Value {
	n := fnType.NumOut()
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []reflect.Value{valueOrZero(fnType.Out(0), value)}
	}
	tuple, ok := value.([]any)
	if !ok || len(tuple) != n {
		return zeroResultsFromValue(fnType, value)
	}
	out := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		out[i] = valueOrZero(fnType.Out(i), tuple[i])
	}
	return out
}

func zeroResultsFromValue(fnType reflect.Type, value any) []reflect.Value {
	out := make([]reflect.Value, fnType.NumOut())
	for i := range out {
		if i == 0 {
			out[i] = valueOrZero(fnType.Out(i), value)
			continue
		}
		out[i] = reflect.Zero(fnType.Out(i))
	}
	return out
}

func valueOrZero(outType reflect.Type, value any) reflect.Value {
	if value == nil {
		return reflect.Zero(outType)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(outType) {
		return v
	}
	if v.Type().ConvertibleTo(outType) {
		return v.Convert(outType)
	}
	return reflect.Zero(outType)
}

// ResetSequence restarts a PolicyCycle/sequence stub from its first
// programmed value.
func (st *Stub) ResetSequence() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.index = 0
}

// Calls returns a copy of every recorded call, in order.
func (st *Stub) Calls() []CallRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]CallRecord, len(st.calls))
	copy(out, st.calls)
	return out
}

// WasCalled reports whether the stub was invoked at all, or exactly n
// times when n is given.
func (st *Stub) WasCalled(n ...int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(n) == 0 {
		return len(st.calls) > 0
	}
	return len(st.calls) == n[0]
}

// Restore reverts the stubbed field to its original value.
func (st *Stub) Restore() {
	if st.restorer != nil {
		st.restorer()
	}
}
