package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeItBuildsTree(t *testing.T) {
	r := New()
	r.Describe("outer", func() {
		r.It("case one", func() {})
		r.Describe("inner", func() {
			r.It("case two", func() {})
		})
	})

	root := r.Root()
	require.Len(t, root.Children, 1)
	outer := root.Children[0]
	assert.Equal(t, "outer", outer.Name)
	require.Len(t, outer.Children, 2)
	assert.Equal(t, "case one", outer.Children[0].Name)
	assert.Equal(t, "outer case two", outer.Children[1].Children[0].FullName())
}

func TestHookOrderingRootToLeafAndReverse(t *testing.T) {
	r := New()
	var order []string
	r.Describe("outer", func() {
		r.Before(func() { order = append(order, "outer-before") })
		r.After(func() { order = append(order, "outer-after") })
		r.Describe("inner", func() {
			r.Before(func() { order = append(order, "inner-before") })
			r.After(func() { order = append(order, "inner-after") })
			r.It("case", func() { order = append(order, "body") })
		})
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 1)
	assert.Equal(t, StatusPassed, records[0].Status)
	assert.Equal(t, []string{"outer-before", "inner-before", "body", "inner-after", "outer-after"}, order)
}

func TestFocusedCaseUnderExcludedSuiteIsExcluded(t *testing.T) {
	r := New()
	var ran bool
	r.XDescribe("outer", func() {
		r.FIt("case", func() { ran = true })
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 1)
	assert.Equal(t, StatusSkipped, records[0].Status)
	assert.False(t, ran)
}

func TestFocusModeSkipsUnfocusedSiblings(t *testing.T) {
	r := New()
	var ranFocused, ranOther bool
	r.Describe("outer", func() {
		r.FIt("focused", func() { ranFocused = true })
		r.It("other", func() { ranOther = true })
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 2)
	assert.True(t, ranFocused)
	assert.False(t, ranOther)
	assert.Equal(t, StatusPassed, records[0].Status)
	assert.Equal(t, StatusSkipped, records[1].Status)
}

func TestTagFilterOnlyRunsMatchingCases(t *testing.T) {
	r := New()
	r.Describe("outer", func() {
		r.Tags("smoke")
		r.It("tagged", func() {}, Options{Tags: []string{"smoke"}})
		r.It("untagged", func() {})
	})

	sched := NewScheduler(r, nil, nil, nil)
	sched.Filters = Filters{Tags: map[string]bool{"smoke": true}}
	records := sched.Run("f_test.go")
	require.Len(t, records, 2)
	assert.Equal(t, StatusPassed, records[0].Status)
	assert.Equal(t, StatusSkipped, records[1].Status)
	assert.Equal(t, "tag filter", records[1].SkipReason)
}

func TestPatternFilterMatchesFullName(t *testing.T) {
	r := New()
	r.Describe("math", func() {
		r.It("adds numbers", func() {})
		r.It("subtracts numbers", func() {})
	})

	pattern, err := CompilePattern("adds")
	require.Nil(t, err)

	sched := NewScheduler(r, nil, nil, nil)
	sched.Filters = Filters{Pattern: pattern}
	records := sched.Run("f_test.go")
	require.Len(t, records, 2)
	assert.Equal(t, StatusPassed, records[0].Status)
	assert.Equal(t, StatusSkipped, records[1].Status)
}

func TestPendingSkipsAndRecordsReason(t *testing.T) {
	r := New()
	r.Describe("outer", func() {
		r.It("todo", func() { r.Pending("not implemented yet") })
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 1)
	assert.Equal(t, StatusSkipped, records[0].Status)
	assert.Equal(t, "not implemented yet", records[0].SkipReason)
}

func TestExpectErrorInvertsPassFail(t *testing.T) {
	r := New()
	r.Describe("outer", func() {
		r.It("should blow up", func() { panic("boom") }, Options{ExpectError: true})
		r.It("should blow up but does not", func() {}, Options{ExpectError: true})
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 2)
	assert.Equal(t, StatusPassed, records[0].Status)
	assert.Equal(t, StatusFailed, records[1].Status)
}

func TestDescribeRejectsEmptyName(t *testing.T) {
	r := New()
	assert.Panics(t, func() {
		r.Describe("  ", func() {})
	})
}

func TestFocusedAndExcludedCaseRejected(t *testing.T) {
	r := New()
	assert.Panics(t, func() {
		r.it("bad", func() {}, true, true)
	})
}
