package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsDefaultWhenUnset(t *testing.T) {
	s := New()
	s.RegisterModule("coverage", nil, map[string]any{"enabled": true})

	v, ok := s.Get("coverage.enabled")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestSetOverridesDefault(t *testing.T) {
	s := New()
	s.RegisterModule("coverage", nil, map[string]any{"enabled": true})

	require.Nil(t, s.Set("coverage.enabled", false))

	v, ok := s.Get("coverage.enabled")
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestSetRejectsSchemaMismatch(t *testing.T) {
	s := New()
	s.RegisterModule("registry", map[string]Field{"parallel": {Type: TypeBool}}, nil)

	err := s.Set("registry.parallel", "yes")
	require.NotNil(t, err)
	assert.Equal(t, "VALIDATION", string(err.Category))
}

func TestRegisterModuleIsIdempotentAndNonDestructive(t *testing.T) {
	s := New()
	s.RegisterModule("discovery", nil, map[string]any{"pattern": "*_spec.js"})
	require.Nil(t, s.Set("discovery.pattern", "*_test.js"))

	s.RegisterModule("discovery", nil, map[string]any{"pattern": "*_spec.js", "recursive": true})

	v, _ := s.Get("discovery.pattern")
	assert.Equal(t, "*_test.js", v, "re-registration must not clobber a live value")

	v2, ok := s.Get("discovery.recursive")
	require.True(t, ok)
	assert.Equal(t, true, v2)
}

func TestOnChangeFiresForDescendantPaths(t *testing.T) {
	s := New()
	var gotPath string
	var gotOld, gotNew any

	s.OnChange("coverage", func(path string, oldValue, newValue any) {
		gotPath, gotOld, gotNew = path, oldValue, newValue
	})

	require.Nil(t, s.Set("coverage.threshold", 80))

	assert.Equal(t, "coverage.threshold", gotPath)
	assert.Nil(t, gotOld)
	assert.Equal(t, 80, gotNew)
}

func TestOnChangeIgnoresUnrelatedPrefix(t *testing.T) {
	s := New()
	fired := false
	s.OnChange("coverage", func(string, any, any) { fired = true })

	require.Nil(t, s.Set("discovery.pattern", "*_spec.js"))
	assert.False(t, fired)
}

func TestOnChangeUnregisterStopsFutureCalls(t *testing.T) {
	s := New()
	calls := 0
	unregister := s.OnChange("coverage", func(string, any, any) { calls++ })

	require.Nil(t, s.Set("coverage.threshold", 1))
	unregister()
	require.Nil(t, s.Set("coverage.threshold", 2))

	assert.Equal(t, 1, calls)
}

func TestListenerPanicDoesNotAbortWrite(t *testing.T) {
	s := New()
	s.OnChange("coverage", func(string, any, any) { panic("boom") })

	err := s.Set("coverage.threshold", 5)
	require.Nil(t, err)

	v, ok := s.Get("coverage.threshold")
	require.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := New()
	require.Nil(t, s.Set("coverage.threshold", 80))
	require.Nil(t, s.Set("discovery.pattern", "*_spec.js"))

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, s.SaveToFile(path))

	loaded := New()
	require.Nil(t, loaded.LoadFromFile(path))

	v, ok := loaded.Get("coverage.threshold")
	require.True(t, ok)
	assert.EqualValues(t, 80, v)

	v2, ok := loaded.Get("discovery.pattern")
	require.True(t, ok)
	assert.Equal(t, "*_spec.js", v2)
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	s := New()
	err := s.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Nil(t, err)
}

func TestResetSubtreeRestoresDefaults(t *testing.T) {
	s := New()
	s.RegisterModule("coverage", nil, map[string]any{"threshold": 50})
	require.Nil(t, s.Set("coverage.threshold", 99))
	require.Nil(t, s.Set("discovery.pattern", "*_spec.js"))

	s.Reset("coverage")

	v, ok := s.Get("coverage.threshold")
	require.True(t, ok)
	assert.Equal(t, 50, v)

	v2, ok := s.Get("discovery.pattern")
	require.True(t, ok)
	assert.Equal(t, "*_spec.js", v2)
}

func TestResetAllClearsEveryOverride(t *testing.T) {
	s := New()
	s.RegisterModule("coverage", nil, map[string]any{"threshold": 50})
	require.Nil(t, s.Set("coverage.threshold", 99))

	s.Reset("")

	v, _ := s.Get("coverage.threshold")
	assert.Equal(t, 50, v)
}
