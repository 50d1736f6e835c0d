package registry

import (
	"errors"
	"testing"
	"time"

	"bddhost/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncAwaitReturnsValue(t *testing.T) {
	resume := Async(func() (any, error) {
		time.Sleep(5 * time.Millisecond)
		return 42, nil
	})
	v, err := Await(resume)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestAsyncAwaitPropagatesError(t *testing.T) {
	resume := Async(func() (any, error) {
		return nil, errors.New("boom")
	})
	_, err := Await(resume)
	assert.EqualError(t, err, "boom")
}

func TestAsyncAwaitIsIdempotent(t *testing.T) {
	calls := 0
	resume := Async(func() (any, error) {
		calls++
		return calls, nil
	})
	v1, _ := Await(resume)
	v2, _ := Await(resume)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestWaitUntilSucceedsBeforeTimeout(t *testing.T) {
	ready := false
	go func() {
		time.Sleep(5 * time.Millisecond)
		ready = true
	}()
	err := WaitUntil(func() bool { return ready }, 200*time.Millisecond, time.Millisecond)
	assert.Nil(t, err)
}

func TestWaitUntilTimesOut(t *testing.T) {
	err := WaitUntil(func() bool { return false }, 20*time.Millisecond, time.Millisecond)
	require.NotNil(t, err)
	assert.Equal(t, "TIMEOUT", string(err.Category))
}

func TestParallelAsyncPreservesOrder(t *testing.T) {
	fns := make([]func() (any, error), 5)
	for i := 0; i < 5; i++ {
		i := i
		fns[i] = func() (any, error) {
			time.Sleep(time.Duration(5-i) * time.Millisecond)
			return i, nil
		}
	}
	vals, errs := ParallelAsync(fns, 0)
	require.Len(t, vals, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, vals[i])
		assert.NoError(t, errs[i])
	}
}

func TestParallelAsyncCapturesPanic(t *testing.T) {
	fns := []func() (any, error){
		func() (any, error) { panic("boom") },
		func() (any, error) { return 1, nil },
	}
	vals, errs := ParallelAsync(fns, 0)
	require.Error(t, errs[0])
	assert.Equal(t, 1, vals[1])
}

func TestParallelAsyncTimesOutPendingTasks(t *testing.T) {
	fns := []func() (any, error){
		func() (any, error) { return "fast", nil },
		func() (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow", nil
		},
	}
	vals, errsOut := ParallelAsync(fns, 5*time.Millisecond)
	assert.Equal(t, "fast", vals[0])
	assert.NoError(t, errsOut[0])
	require.Error(t, errsOut[1])
	var structured *errs.Error
	require.True(t, errors.As(errsOut[1], &structured))
	assert.Equal(t, "TIMEOUT", string(structured.Category))
}
