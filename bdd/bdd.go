// Package bdd is the public façade spec.md §6 calls the Declaration
// API: describe/it-family tree building, expect/spy/stub/mock, tags
// and filters, and the async helpers, all exposed as package-level
// functions reading and writing the current declaration Registry (the
// process-wide one, or a file's own Registry while its File loader
// runs) so test files can call them exactly like process globals,
// without ever holding a handle themselves.
//
// Grounded on the Design Notes' "global singletons → explicit service
// container": every one of these functions is a one-line forward into
// a real, independently-testable package (internal/registry,
// internal/assertion, internal/mocking) — bdd itself holds no logic of
// its own, only the wiring.
package bdd

import (
	"runtime"
	"sync"

	"bddhost/internal/assertion"
	"bddhost/internal/mocking"
	"bddhost/internal/registry"
)

// Expectation is the fluent assertion handle Expect returns; it is an
// alias for internal/assertion.Expectation so every .To()/.Equal()/...
// method promotes through unchanged.
type Expectation = assertion.Expectation

var noopMu sync.Mutex
var noopExpecterValue *assertion.Expecter

func noopExpecter() *assertion.Expecter {
	noopMu.Lock()
	defer noopMu.Unlock()
	if noopExpecterValue == nil {
		noopExpecterValue = assertion.NewExpecter(nil, nil)
	}
	return noopExpecterValue
}

// File registers fn as the loader for the calling Go source file,
// keyed by that file's absolute path via runtime.Caller. This bridges
// spec.md's "discover a file path, then load/run it" model (built for
// a dynamically-scripted host) onto Go's compiled-and-linked test
// files: call bdd.File(func() { ... describe/it calls ... }) once, at
// package-init time, from every _test.go file that declares bdd cases,
// and Discover/RunDiscovered can then correlate a discovered path
// string back to the Go closure that builds its tree.
func File(fn func()) {
	_, path, _, ok := runtime.Caller(1)
	if !ok {
		panic("bdd.File: could not determine caller's source path")
	}
	registerLoader(path, func(r *registry.Registry) {
		withRegistry(r, fn)
	})
}

var (
	loaderMu sync.Mutex
	loaders  = map[string]registry.FileLoader{}
)

func registerLoader(path string, loader registry.FileLoader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaders[path] = loader
}

func snapshotLoaders() map[string]registry.FileLoader {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	out := make(map[string]registry.FileLoader, len(loaders))
	for k, v := range loaders {
		out[k] = v
	}
	return out
}

// KnownLoaderPaths returns the set of source file paths currently
// registered via File, for callers (e.g. the run CLI) that want to
// warn about discovered files this binary has no declarations for.
func KnownLoaderPaths() map[string]bool {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	out := make(map[string]bool, len(loaders))
	for k := range loaders {
		out[k] = true
	}
	return out
}

// withRegistry temporarily swaps the package-level "current declaration
// target" registry to r, runs fn (which calls Describe/It/etc. through
// the package-level functions below), and restores the previous
// target. This lets File's loader (invoked by the scheduler against a
// fresh per-worker Registry) reuse the exact same declaration closures
// a single-process run would call against registry.Default().
var (
	targetMu sync.Mutex
	target   = registry.Default()
)

func withRegistry(r *registry.Registry, fn func()) {
	targetMu.Lock()
	prev := target
	target = r
	targetMu.Unlock()

	defer func() {
		targetMu.Lock()
		target = prev
		targetMu.Unlock()
	}()
	fn()
}

func current() *registry.Registry {
	targetMu.Lock()
	defer targetMu.Unlock()
	return target
}

// Describe declares a suite.
func Describe(name string, fn func(), opts ...registry.Options) *registry.Node {
	return current().Describe(name, fn, opts...)
}

// FDescribe declares a focused suite.
func FDescribe(name string, fn func(), opts ...registry.Options) *registry.Node {
	return current().FDescribe(name, fn, opts...)
}

// XDescribe declares an excluded suite.
func XDescribe(name string, fn func(), opts ...registry.Options) *registry.Node {
	return current().XDescribe(name, fn, opts...)
}

// It declares a case.
func It(name string, body func(), opts ...registry.Options) *registry.Node {
	return current().It(name, body, opts...)
}

// FIt declares a focused case.
func FIt(name string, body func(), opts ...registry.Options) *registry.Node {
	return current().FIt(name, body, opts...)
}

// XIt declares an excluded case.
func XIt(name string, body func(), opts ...registry.Options) *registry.Node {
	return current().XIt(name, body, opts...)
}

// ItAsync declares a case whose body runs an asynchronous task to
// completion before the case is considered finished — spec.md §6's
// `it_async`, a thin sugar over It + Await.
func ItAsync(name string, body func() (any, error), opts ...registry.Options) *registry.Node {
	return It(name, func() {
		resume := registry.Async(body)
		if _, err := registry.Await(resume); err != nil {
			panic(err)
		}
	}, opts...)
}

// Before registers a before-hook at the current declaration depth.
func Before(fn func()) { current().Before(fn) }

// After registers an after-hook at the current declaration depth.
func After(fn func()) { current().After(fn) }

// Tags stages tags for the next Describe/It declaration.
func Tags(tags ...string) { current().Tags(tags...) }

// Pending marks the currently-executing case as skipped.
func Pending(message ...string) { current().Pending(message...) }

var (
	filterMu sync.Mutex
	filters  registry.Filters
)

// OnlyTags restricts subsequent runs to cases carrying at least one of
// the given tags.
func OnlyTags(tags ...string) {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	filterMu.Lock()
	filters.Tags = set
	filterMu.Unlock()
}

// Filter restricts subsequent runs to cases whose full name matches
// pattern (a regular expression).
func Filter(pattern string) error {
	re, err := registry.CompilePattern(pattern)
	if err != nil {
		return err
	}
	filterMu.Lock()
	filters.Pattern = re
	filterMu.Unlock()
	return nil
}

func currentFilters() registry.Filters {
	filterMu.Lock()
	defer filterMu.Unlock()
	return filters
}

// Expect begins a fluent assertion against value, using whichever
// case is currently executing. Calling it outside of case-body
// execution returns an Expectation bound to an uninstrumented
// expecter: a passing assertion is neither counted nor reported to
// coverage, and a failing one still panics with an
// *assertion.Failure.
func Expect(value any) *Expectation {
	exp := registry.ActiveExpecter()
	if exp == nil {
		exp = noopExpecter()
	}
	return exp.Expect(value)
}

// Spy installs a forwarding spy over fieldAddr, process-wide — callers
// needing scoped, auto-restored spies should use WithMocks instead.
func Spy(fieldAddr any) *mocking.Spy { return mocking.On(fieldAddr) }

// StubConstant installs a constant-return stub over fieldAddr.
func StubConstant(fieldAddr any, value any) *mocking.Stub {
	return mocking.StubConstant(fieldAddr, value)
}

// StubClosure installs a closure-body stub over fieldAddr.
func StubClosure(fieldAddr any, replacement any) *mocking.Stub {
	return mocking.StubClosure(fieldAddr, replacement)
}

// StubSequence installs a returns_in_sequence stub over fieldAddr.
func StubSequence(fieldAddr any, values []any, policy mocking.ExhaustionPolicy, fallback any) *mocking.Stub {
	return mocking.StubSequence(fieldAddr, values, policy, fallback)
}

// Mock wraps targetAddr for field-level stubbing and call expectations.
func Mock(targetAddr any, verifyAllExpectationsCalled bool) *mocking.Mock {
	return mocking.Create(targetAddr, verifyAllExpectationsCalled)
}

// WithMocks runs fn under a scope that restores every spy/stub/mock it
// creates, in LIFO order, on any exit path.
func WithMocks(fn func(*mocking.Scope)) { mocking.WithMocks(fn) }

// Async, Await, WaitUntil, AwaitMillis, ParallelAsync are re-exported
// directly from internal/registry/async.go; they carry no façade-level
// behavior of their own.
var (
	Async         = registry.Async
	Await         = registry.Await
	AwaitMillis   = registry.AwaitMillis
	WaitUntil     = registry.WaitUntil
	ParallelAsync = registry.ParallelAsync
)
