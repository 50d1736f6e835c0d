package bdd

import "bddhost/internal/mocking"

// matcherNamespace groups the mocking argument matchers under a single
// spec.md §6 "matchers namespace" value, Match.Any()/Match.IsString()/
// etc., rather than scattering them as bare package-level functions.
type matcherNamespace struct{}

func (matcherNamespace) Any() mocking.Matcher                         { return mocking.Any() }
func (matcherNamespace) IsString() mocking.Matcher                    { return mocking.IsString() }
func (matcherNamespace) IsNumber() mocking.Matcher                    { return mocking.IsNumber() }
func (matcherNamespace) IsTable() mocking.Matcher                     { return mocking.IsTable() }
func (matcherNamespace) IsBoolean() mocking.Matcher                   { return mocking.IsBoolean() }
func (matcherNamespace) IsFunction() mocking.Matcher                  { return mocking.IsFunction() }
func (matcherNamespace) IsCallable() mocking.Matcher                  { return mocking.IsCallable() }
func (matcherNamespace) TableContaining(partial map[string]any) mocking.Matcher {
	return mocking.TableContaining(partial)
}
func (matcherNamespace) DeepEqual(value any) mocking.Matcher { return mocking.DeepEqualMatcher(value) }
func (matcherNamespace) Custom(fn func(any) bool) mocking.Matcher { return mocking.Custom(fn) }
func (matcherNamespace) AnyRest() mocking.Matcher                 { return mocking.AnyRest() }

// Match is the matchers namespace exposed to test files, e.g.
// bdd.Match.IsString().
var Match = matcherNamespace{}
