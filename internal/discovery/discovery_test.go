package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverUsesDefaultPatternAndIgnoresNodeModules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget_test.go"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "vendored_test.go"), []byte(""), 0o644))

	result, err := Discover(root, "")
	require.Nil(t, err)
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0], "widget_test.go")
}

func TestDiscoverHonorsExplicitPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a_spec.js"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a_test.lua"), []byte(""), 0o644))

	result, err := Discover(root, "*_spec.js")
	require.Nil(t, err)
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0], "a_spec.js")
}

func TestDiscoverMissingRootReturnsError(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), "*_test.lua")
	require.NotNil(t, err)
	assert.Equal(t, "IO", string(err.Category))
}
