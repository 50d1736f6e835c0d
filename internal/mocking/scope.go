package mocking

// Scope collects every spy, stub, mock, and property stub created
// through it so WithMocks can restore them all, in LIFO order, on any
// exit path — normal return or panic.
type Scope struct {
	restorers []func()
}

func (s *Scope) track(restore func()) {
	s.restorers = append(s.restorers, restore)
}

// Spy installs a forwarding spy over fieldAddr, scoped to s.
func (s *Scope) Spy(fieldAddr any) *Spy {
	spy := On(fieldAddr)
	s.track(spy.Restore)
	return spy
}

// StubConstant installs a constant-return stub over fieldAddr, scoped to s.
func (s *Scope) StubConstant(fieldAddr any, value any) *Stub {
	st := StubConstant(fieldAddr, value)
	s.track(st.Restore)
	return st
}

// StubClosure installs a closure-body stub over fieldAddr, scoped to s.
func (s *Scope) StubClosure(fieldAddr any, replacement any) *Stub {
	st := StubClosure(fieldAddr, replacement)
	s.track(st.Restore)
	return st
}

// StubSequence installs a returns_in_sequence stub over fieldAddr, scoped to s.
func (s *Scope) StubSequence(fieldAddr any, values []any, policy ExhaustionPolicy, fallback any) *Stub {
	st := StubSequence(fieldAddr, values, policy, fallback)
	s.track(st.Restore)
	return st
}

// Mock creates a Mock over targetAddr, scoped to s.
func (s *Scope) Mock(targetAddr any, verifyAllExpectationsCalled bool) *Mock {
	m := Create(targetAddr, verifyAllExpectationsCalled)
	s.track(m.Restore)
	return m
}

// WithMocks runs fn under a fresh Scope. Every spy, stub, mock, and
// property stub created through the scope is restored in LIFO order
// when fn returns or panics; a panic (including an unmet mock
// expectation surfacing from Mock.Restore) is re-raised after
// restoration completes.
func WithMocks(fn func(*Scope)) {
	scope := &Scope{}
	defer restoreAll(scope)
	fn(scope)
}

// restoreAll runs every restorer in LIFO order even if one panics (a
// mock with an unmet expectation panics from within its own Restore),
// so a single failed verification never skips restoring the rest of
// the scope. The first panic encountered is re-raised after every
// restorer has run.
func restoreAll(scope *Scope) {
	var firstPanic any

	for i := len(scope.restorers) - 1; i >= 0; i-- {
		restorer := scope.restorers[i]
		func() {
			defer func() {
				if r := recover(); r != nil && firstPanic == nil {
					firstPanic = r
				}
			}()
			restorer()
		}()
	}

	if firstPanic != nil {
		panic(firstPanic)
	}
}
