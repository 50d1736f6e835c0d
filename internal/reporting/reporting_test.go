package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReporterDispatchesEveryEventToFormatter(t *testing.T) {
	r := New()
	cf := &CountingFormatter{}
	r.Register(cf)

	r.RunStarted()
	r.SuiteStarted(SuiteInfo{Name: "outer"})
	r.TestStarted(CaseInfo{Name: "a", FullName: "outer a"})
	r.TestFinished(CaseInfo{Name: "a", FullName: "outer a", File: "f.go"}, CaseResult{Status: StatusPassed, Duration: time.Millisecond})
	r.TestStarted(CaseInfo{Name: "b", FullName: "outer b"})
	r.TestFinished(CaseInfo{Name: "b", FullName: "outer b", File: "f.go"}, CaseResult{Status: StatusFailed, Diagnostic: "boom"})
	r.SuiteFinished(SuiteInfo{Name: "outer"}, SuiteAggregate{Passed: 1, Failed: 1})
	summary := r.RunFinished()

	assert.Equal(t, 2, cf.Started)
	assert.Equal(t, 2, cf.Finished)
	assert.Equal(t, 1, cf.SuiteStarts)
	assert.Equal(t, 1, cf.SuiteFinishes)
	assert.Equal(t, 1, cf.Summary)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, cf.LastSummary.Passed)
}

func TestReporterPerFileRollup(t *testing.T) {
	r := New()
	r.RunStarted()
	r.TestFinished(CaseInfo{File: "a_test.go"}, CaseResult{Status: StatusPassed})
	r.TestFinished(CaseInfo{File: "a_test.go"}, CaseResult{Status: StatusFailed})
	r.TestFinished(CaseInfo{File: "b_test.go"}, CaseResult{Status: StatusSkipped})
	summary := r.RunFinished()

	assert.Equal(t, 1, summary.PerFile["a_test.go"].Passed)
	assert.Equal(t, 1, summary.PerFile["a_test.go"].Failed)
	assert.Equal(t, 1, summary.PerFile["b_test.go"].Skipped)
}

func TestReporterRunStartedResetsCounters(t *testing.T) {
	r := New()
	r.RunStarted()
	r.TestFinished(CaseInfo{File: "x"}, CaseResult{Status: StatusPassed})
	r.RunStarted()
	summary := r.RunFinished()
	assert.Equal(t, 0, summary.Passed)
}

func TestMultipleFormattersAllReceiveEvents(t *testing.T) {
	r := New()
	a, b := &CountingFormatter{}, &CountingFormatter{}
	r.Register(a)
	r.Register(b)
	r.RunStarted()
	r.TestFinished(CaseInfo{}, CaseResult{Status: StatusPassed})
	r.RunFinished()

	assert.Equal(t, 1, a.Finished)
	assert.Equal(t, 1, b.Finished)
}
