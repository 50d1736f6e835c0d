package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStringIncludesCategoryAndSeverity(t *testing.T) {
	e := New(Validation, Err, "bad argument", nil, nil)
	assert.Equal(t, "[VALIDATION/ERROR] bad argument", e.Error())
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	e := New(IO, Err, "write failed", nil, cause)

	assert.Contains(t, e.Error(), "disk full")
	assert.True(t, errors.Is(e, cause))
}

func TestTryRecoversPanicAsRuntimeError(t *testing.T) {
	_, err := Try(func() (int, error) {
		panic("boom")
	})

	require.NotNil(t, err)
	assert.Equal(t, Runtime, err.Category)
	assert.Contains(t, err.Message, "boom")
}

func TestTryPassesThroughSuccess(t *testing.T) {
	v, err := Try(func() (int, error) {
		return 42, nil
	})

	require.Nil(t, err)
	assert.Equal(t, 42, v)
}

func TestTryPassesThroughOrdinaryError(t *testing.T) {
	_, err := Try(func() (int, error) {
		return 0, errors.New("ordinary")
	})

	require.NotNil(t, err)
	assert.Equal(t, Runtime, err.Category)
}

func TestSafeIOTagsCategoryIO(t *testing.T) {
	err := SafeIO(func() error {
		return errors.New("no such file")
	}, "/tmp/missing", map[string]any{"op": "read"})

	require.NotNil(t, err)
	assert.Equal(t, IO, err.Category)
	assert.Equal(t, "/tmp/missing", err.Context["path"])
	assert.Equal(t, "read", err.Context["op"])
}

func TestSafeIOReturnsNilOnSuccess(t *testing.T) {
	err := SafeIO(func() error { return nil }, "/tmp/ok", nil)
	assert.Nil(t, err)
}

func TestDetailedErrorIncludesContext(t *testing.T) {
	e := New(Parse, Err, "unexpected token", map[string]any{"line": 12}, nil)
	detail := e.DetailedError()
	assert.Contains(t, detail, "line: 12")
}
