package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bddhost/internal/coverage"
	"bddhost/internal/vfs"
)

func TestRunCaseReportsAssertionCountAndCoverage(t *testing.T) {
	r := New()
	cov := coverage.New()
	cov.Init(coverage.Config{})

	r.Describe("outer", func() {
		r.It("case", func() {
			exp := ActiveExpecter()
			require.NotNil(t, exp)
			exp.Expect(1).To().Equal(1)
			exp.Expect(2).Equal(3) // fails the case
		})
	})

	sched := NewScheduler(r, cov, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, 1, records[0].AssertionCount)
	assert.NotEmpty(t, cov.GetData())
}

func TestRunFilesSequentialPreservesOrder(t *testing.T) {
	loaders := map[string]FileLoader{
		"a_test.go": func(r *Registry) { r.Describe("a", func() { r.It("case", func() {}) }) },
		"b_test.go": func(r *Registry) { r.Describe("b", func() { r.It("case", func() {}) }) },
	}
	results := RunFiles([]string{"a_test.go", "b_test.go"}, loaders, 1, nil, Filters{}, coverage.Config{}, t.TempDir())
	require.Len(t, results, 2)
	assert.Equal(t, "a_test.go", results[0].File)
	assert.Equal(t, "b_test.go", results[1].File)
	assert.Equal(t, StatusPassed, results[0].Records[0].Status)
}

func TestRunFilesParallelIsolatesWorkers(t *testing.T) {
	loaders := map[string]FileLoader{}
	paths := []string{"a_test.go", "b_test.go", "c_test.go"}
	for _, p := range paths {
		p := p
		loaders[p] = func(r *Registry) {
			r.Describe(p, func() {
				r.It("case", func() {
					tm := vfs.NewTempManager(t.TempDir())
					_ = tm
				})
			})
		}
	}
	results := RunFiles(paths, loaders, 2, nil, Filters{}, coverage.Config{}, t.TempDir())
	require.Len(t, results, 3)
	for i, p := range paths {
		assert.Equal(t, p, results[i].File)
		assert.Equal(t, StatusPassed, results[i].Records[0].Status)
	}
}

func TestHookErrorRecordsErroredStatus(t *testing.T) {
	r := New()
	r.Describe("outer", func() {
		r.Before(func() { panic("setup failed") })
		r.It("case", func() {})
	})

	sched := NewScheduler(r, nil, nil, nil)
	records := sched.Run("f_test.go")
	require.Len(t, records, 1)
	assert.Equal(t, StatusErrored, records[0].Status)
}
