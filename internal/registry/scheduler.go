package registry

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bddhost/internal/assertion"
	"bddhost/internal/coverage"
	"bddhost/internal/errs"
	"bddhost/internal/reporting"
	"bddhost/internal/vfs"
)

// Status is a case's final outcome, spec.md §3 "Execution record".
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusErrored Status = "errored"
)

// ExecutionRecord is the per-case outcome the scheduler produces.
type ExecutionRecord struct {
	Node           *Node
	Status         Status
	Failure        *errs.Error
	Diagnostic     string
	Duration       time.Duration
	AssertionCount int
	HookErrors     []*errs.Error
	SkipReason     string
}

// Filters configures which cases the scheduler actually executes:
// only_tags and filter(pattern), combined with AND per spec.md §4.H.
type Filters struct {
	Tags    map[string]bool
	Pattern *regexp.Regexp
}

// CompilePattern compiles a filter(pattern) argument, raising
// VALIDATION on an invalid regular expression per spec.md §4.H.
func CompilePattern(pattern string) (*regexp.Regexp, *errs.Error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.New(errs.Validation, errs.Err, fmt.Sprintf("invalid filter pattern %q", pattern), nil, err)
	}
	return re, nil
}

// execMu serializes case-body execution across every Scheduler and
// every worker: the active-expecter seam below is a process-wide
// singleton (spec.md §5 "the assertion path registry... are
// process-wide singletons"), so only one case's hooks+body may run at
// a time anywhere in the process, even when parallel mode has several
// files' schedulers live concurrently. Everything else a worker
// touches (its Registry, its coverage.Engine, its vfs.TempManager) is
// constructed per-worker and needs no such lock.
var execMu sync.Mutex

var activeExpecter *assertion.Expecter

// ActiveExpecter returns the Expecter bound to whichever case is
// currently executing, or nil outside of case-body execution. The bdd
// façade's Expect(value) calls through this so user test code can
// write expect(value) without threading a handle explicitly, the
// "thin façade restoring the ergonomic global-looking API" from
// spec.md's Design Notes.
func ActiveExpecter() *assertion.Expecter { return activeExpecter }

// Scheduler walks one Registry's declared tree and runs it, recording
// hook/body outcomes and reporting events.
//
// Grounded on the teacher's internal/testing.testRunner.Run (sequential
// vs. parallel branching, incremental counter updates, per-scenario
// reporting) generalized from a flat scenario list to hook-inheriting
// suite/case tree traversal.
type Scheduler struct {
	Registry *Registry
	Coverage *coverage.Engine
	Temp     *vfs.TempManager
	Reporter *reporting.Reporter
	Filters  Filters
}

// NewScheduler builds a Scheduler over reg, reporting through rep and
// recording coverage/temp-file lifecycle through cov/temp (either may
// be nil to disable that integration, e.g. in narrow unit tests).
func NewScheduler(reg *Registry, cov *coverage.Engine, temp *vfs.TempManager, rep *reporting.Reporter) *Scheduler {
	if rep == nil {
		rep = reporting.New()
	}
	return &Scheduler{Registry: reg, Coverage: cov, Temp: temp, Reporter: rep}
}

// Run executes every case in the Registry's tree, depth-first,
// left-to-right, and returns one ExecutionRecord per case. file tags
// the reporting events and per-file rollup.
func (s *Scheduler) Run(file string) []ExecutionRecord {
	root := s.Registry.Root()
	focusMode := root.AnyFocused()
	cases := root.Cases()

	records := make([]ExecutionRecord, 0, len(cases))
	for _, c := range cases {
		records = append(records, s.runCase(file, c, focusMode))
	}
	return records
}

func tagSlice(tags map[string]bool) []string {
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *Scheduler) decide(c *Node, focusMode bool) (run bool, reason string) {
	if c.PendingReason != "" {
		return false, c.PendingReason
	}
	if c.EffectiveExcluded() {
		return false, "excluded"
	}
	if focusMode && !c.EffectiveFocused() {
		return false, "not focused"
	}
	if len(s.Filters.Tags) > 0 {
		matched := false
		for t := range c.Tags {
			if s.Filters.Tags[t] {
				matched = true
				break
			}
		}
		if !matched {
			return false, "tag filter"
		}
	}
	if s.Filters.Pattern != nil && !s.Filters.Pattern.MatchString(c.FullName()) {
		return false, "name filter"
	}
	return true, ""
}

func (s *Scheduler) coverageSink() assertion.CoverageSink {
	if s.Coverage == nil {
		return nil
	}
	return func(file string, line int) {
		if s.Coverage.IsActive() {
			s.Coverage.MarkLineCovered(file, line)
		}
	}
}

// runCase implements spec.md §4.H's seven-step case execution.
func (s *Scheduler) runCase(file string, c *Node, focusMode bool) ExecutionRecord {
	info := reporting.CaseInfo{Name: c.Name, FullName: c.FullName(), File: file, Tags: tagSlice(c.Tags)}
	s.Reporter.TestStarted(info)

	if run, reason := s.decide(c, focusMode); !run {
		rec := ExecutionRecord{Node: c, Status: StatusSkipped, SkipReason: reason}
		s.Reporter.TestFinished(info, reporting.CaseResult{Case: info, Status: reporting.StatusSkipped, SkipReason: reason})
		return rec
	}

	execMu.Lock()
	defer execMu.Unlock()

	start := time.Now()
	if s.Temp != nil {
		s.Temp.PushContext() // step 1: push test context
	}
	s.Registry.SetActiveCase(c)

	assertionCount := 0
	expecter := assertion.NewExpecter(func(passed bool) {
		if passed {
			assertionCount++
		}
	}, s.coverageSink())
	prevExpecter := activeExpecter
	activeExpecter = expecter

	suiteChain := c.Ancestors()
	suiteChain = suiteChain[:len(suiteChain)-1] // drop c itself, suites only

	var hookErrors []*errs.Error
	for _, suite := range suiteChain { // step 2: before hooks root -> leaf
		for _, hook := range suite.BeforeHooks {
			if err := runProtected(hook); err != nil {
				hookErrors = append(hookErrors, err)
			}
		}
	}

	var bodyErr *errs.Error
	var pending *PendingSignal
	if len(hookErrors) == 0 || c.ExpectError { // step 3: body, if hooks ok or errors expected
		bodyErr, pending = runProtectedBody(c.Body)
	}

	for i := len(suiteChain) - 1; i >= 0; i-- { // step 4: after hooks leaf -> root
		suite := suiteChain[i]
		for j := len(suite.AfterHooks) - 1; j >= 0; j-- {
			if err := runProtected(suite.AfterHooks[j]); err != nil {
				hookErrors = append(hookErrors, err)
			}
		}
	}

	activeExpecter = prevExpecter
	s.Registry.SetActiveCase(nil)
	if s.Temp != nil {
		s.Temp.PopContext() // step 6: pop test context, cleans up temp files
	}
	duration := time.Since(start)

	rec := ExecutionRecord{Node: c, Duration: duration, AssertionCount: assertionCount, HookErrors: hookErrors}
	switch { // step 5: determine final status
	case pending != nil:
		rec.Status = StatusSkipped
		rec.SkipReason = pending.Reason
	case c.ExpectError:
		if bodyErr != nil || len(hookErrors) > 0 {
			rec.Status = StatusPassed
		} else {
			rec.Status = StatusFailed
			rec.Diagnostic = "expected an error, none occurred"
		}
	case len(hookErrors) > 0:
		rec.Status = StatusErrored
		rec.Failure = hookErrors[0]
		rec.Diagnostic = hookErrors[0].Error()
	case bodyErr != nil:
		rec.Status = StatusFailed
		rec.Failure = bodyErr
		rec.Diagnostic = bodyErr.Error()
	default:
		rec.Status = StatusPassed
	}

	s.Reporter.TestFinished(info, reporting.CaseResult{ // step 7: emit
		Case: info, Status: reporting.Status(rec.Status), Diagnostic: rec.Diagnostic,
		SkipReason: rec.SkipReason, Duration: rec.Duration, AssertionCount: rec.AssertionCount,
	})
	return rec
}

func runProtected(fn func()) (err *errs.Error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	if fn != nil {
		fn()
	}
	return nil
}

func runProtectedBody(fn func()) (err *errs.Error, pending *PendingSignal) {
	defer func() {
		if r := recover(); r != nil {
			if p, ok := r.(*PendingSignal); ok {
				pending = p
				return
			}
			err = panicToError(r)
		}
	}()
	if fn != nil {
		fn()
	}
	return nil, nil
}

func panicToError(r any) *errs.Error {
	switch v := r.(type) {
	case *assertion.Failure:
		return errs.New(errs.Runtime, errs.Err, v.Diagnostic, map[string]any{"file": v.File, "line": v.Line}, v)
	case *errs.Error:
		return v
	case error:
		return errs.New(errs.Runtime, errs.Err, v.Error(), nil, v)
	default:
		return errs.New(errs.Runtime, errs.Err, fmt.Sprintf("panic: %v", r), nil, nil)
	}
}

// FileLoader builds a fresh test tree by calling describe/it-style
// declarations against the Registry it's given. A "test file" in this
// compiled rendition is whatever registers one of these against a
// stable logical path (see the bdd façade's File function).
type FileLoader func(r *Registry)

// WorkerResult is what running one file produces: its case records
// plus the coverage delta it accumulated in isolation, for the caller
// to merge.
type WorkerResult struct {
	File     string
	Records  []ExecutionRecord
	Coverage map[string]map[int]coverage.Line
}

// RunFiles runs each of paths through its loader. With parallel <= 1,
// files run sequentially on the caller's goroutine. With parallel > 1,
// each file gets its own Registry, coverage.Engine, and TempManager —
// the Go rendition of spec.md §4.H "Parallelism"'s one-file-per-worker,
// no-shared-mutable-memory model, run across a golang.org/x/sync/errgroup
// pool of that size — and results are returned in the same order as
// paths regardless of completion order, so the caller can merge
// coverage (sum hit_count, OR verified) and concatenate results
// deterministically.
func RunFiles(paths []string, loaders map[string]FileLoader, parallel int, rep *reporting.Reporter, filters Filters, covCfg coverage.Config, tempBase string) []WorkerResult {
	results := make([]WorkerResult, len(paths))

	run := func(i int) {
		path := paths[i]
		results[i] = runOneFile(path, loaders[path], rep, filters, covCfg, tempBase)
	}

	if parallel <= 1 {
		for i := range paths {
			run(i)
		}
		return results
	}

	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i := range paths {
		i := i
		eg.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func runOneFile(path string, loader FileLoader, rep *reporting.Reporter, filters Filters, covCfg coverage.Config, tempBase string) WorkerResult {
	reg := New()
	cov := coverage.New()
	cov.Init(coverage.Config{
		SaveStepSize:    covCfg.SaveStepSize,
		IncludePatterns: covCfg.IncludePatterns,
		ExcludePatterns: covCfg.ExcludePatterns,
	}) // no StatsFile: this is a per-worker delta, merged centrally by the caller
	temp := vfs.NewTempManager(tempBase)

	sched := NewScheduler(reg, cov, temp, rep)
	sched.Filters = filters

	if loader != nil {
		loader(reg)
	}

	if rep != nil {
		rep.SetCurrentFile(path)
	}
	records := sched.Run(path)
	return WorkerResult{File: path, Records: records, Coverage: cov.GetData()}
}
