package mocking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	Greet func(name string) string
}

func TestSpyOnForwardsToOriginalAndRecords(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return "hello " + name }}

	spy := On(&g.Greet)
	defer spy.Restore()

	got := g.Greet("ada")

	assert.Equal(t, "hello ada", got)
	assert.True(t, spy.WasCalled(1))
	assert.True(t, spy.WasCalledWith(DeepEqualMatcher("ada")))
}

func TestSpyRestoreRevertsOriginal(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return "hi " + name }}
	original := g.Greet

	spy := On(&g.Greet)
	spy.Restore()

	assert.Equal(t, "hi bob", g.Greet("bob"))
	_ = original
}

func TestSpyNewRecordsStandaloneFunction(t *testing.T) {
	spy, fnAny := New(func(x int) int { return x * 2 })
	fn := fnAny.(func(int) int)

	assert.Equal(t, 10, fn(5))
	assert.True(t, spy.WasCalled(1))
}

func TestWasCalledBeforeAfter(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return name }}
	h := &struct{ Farewell func(string) string }{Farewell: func(name string) string { return name }}

	spyGreet := On(&g.Greet)
	defer spyGreet.Restore()
	spyFarewell := On(&h.Farewell)
	defer spyFarewell.Restore()

	g.Greet("a")
	h.Farewell("a")

	assert.True(t, spyGreet.WasCalledBefore(spyFarewell))
	assert.True(t, spyFarewell.WasCalledAfter(spyGreet))
}

func TestStubSequenceReturnsValuesThenAppliesPolicy(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	st := StubSequence(&g.Greet, []any{"first", "second"}, PolicyFallback, "fallback")
	defer st.Restore()

	assert.Equal(t, "first", g.Greet("x"))
	assert.Equal(t, "second", g.Greet("x"))
	assert.Equal(t, "fallback", g.Greet("x"))
	assert.Equal(t, "fallback", g.Greet("x"))
}

func TestStubSequenceCyclePolicyRestartsSequence(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	st := StubSequence(&g.Greet, []any{"a", "b"}, PolicyCycle, nil)
	defer st.Restore()

	assert.Equal(t, "a", g.Greet(""))
	assert.Equal(t, "b", g.Greet(""))
	assert.Equal(t, "a", g.Greet(""))
}

func TestStubSequenceOriginalPolicyForwardsAfterExhaustion(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return "original-" + name }}

	st := StubSequence(&g.Greet, []any{"stubbed"}, PolicyOriginal, nil)
	defer st.Restore()

	assert.Equal(t, "stubbed", g.Greet("x"))
	assert.Equal(t, "original-x", g.Greet("x"))
}

func TestResetSequenceRestartsIndex(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	st := StubSequence(&g.Greet, []any{"a", "b"}, PolicyNil, nil)
	defer st.Restore()

	g.Greet("")
	g.Greet("")
	st.ResetSequence()
	assert.Equal(t, "a", g.Greet(""))
}

func TestMockExpectToBeCalledPassesWhenMet(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return name }}

	m := Create(g, true)
	m.Expect("Greet").ToBeCalled(1)
	g.Greet("x")

	assert.NotPanics(t, func() { m.Restore() })
}

func TestMockExpectToBeCalledPanicsWhenUnmet(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return name }}

	m := Create(g, true)
	m.Expect("Greet").ToBeCalled(1)

	assert.Panics(t, func() { m.Restore() })
}

func TestMockExpectToNotBeCalled(t *testing.T) {
	g := &greeter{Greet: func(name string) string { return name }}

	m := Create(g, true)
	m.Expect("Greet").ToNotBeCalled()

	assert.NotPanics(t, func() { m.Restore() })
}

func TestMockStubProperty(t *testing.T) {
	type config struct{ Enabled bool }
	c := &config{Enabled: false}

	m := Create(c, false)
	m.StubProperty("Enabled", true)
	assert.True(t, c.Enabled)

	m.Restore()
	assert.False(t, c.Enabled)
}

func TestMatchersTableContainingAndTypeMatchers(t *testing.T) {
	assert.True(t, IsString().Match("x"))
	assert.False(t, IsString().Match(1))
	assert.True(t, IsNumber().Match(1))
	assert.True(t, TableContaining(map[string]any{"a": 1}).Match(map[string]any{"a": 1, "b": 2}))
	assert.False(t, TableContaining(map[string]any{"a": 1}).Match(map[string]any{"a": 2}))
}

func TestMatchArgsAnyRestAllowsExtraTrailingArgs(t *testing.T) {
	ok := matchArgs([]any{"a", 1, true, "extra"}, []Matcher{DeepEqualMatcher("a"), AnyRest()})
	assert.True(t, ok)
}

func TestMatchArgsFailsOnExtraArgsWithoutAnyRest(t *testing.T) {
	ok := matchArgs([]any{"a", "b"}, []Matcher{DeepEqualMatcher("a")})
	assert.False(t, ok)
}

func TestVerifySequenceNonAdjacentOrdering(t *testing.T) {
	a, aFn := New(func() error { return nil })
	b, bFn := New(func() error { return nil })
	fnA := aFn.(func() error)
	fnB := bFn.(func() error)

	_ = fnA()
	_ = fnB()
	_ = fnA()

	ok := VerifySequence(false, SequenceCall{Spy: a}, SequenceCall{Spy: b})
	assert.True(t, ok)
}

func TestWithMocksRestoresInLIFOOrderOnNormalExit(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	WithMocks(func(scope *Scope) {
		scope.StubConstant(&g.Greet, "stubbed")
		assert.Equal(t, "stubbed", g.Greet(""))
	})

	assert.Equal(t, "original", g.Greet(""))
}

func TestWithMocksRestoresOnPanic(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	func() {
		defer func() { recover() }()
		WithMocks(func(scope *Scope) {
			scope.StubConstant(&g.Greet, "stubbed")
			panic(errors.New("boom"))
		})
	}()

	assert.Equal(t, "original", g.Greet(""))
}

func TestWithMocksRepanicsOnUnmetExpectation(t *testing.T) {
	g := &greeter{Greet: func(string) string { return "original" }}

	require.Panics(t, func() {
		WithMocks(func(scope *Scope) {
			m := scope.Mock(g, true)
			m.Expect("Greet").ToBeCalled(1)
		})
	})
}
