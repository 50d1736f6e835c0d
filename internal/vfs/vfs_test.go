package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicThenReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	err := WriteFileAtomic(path, []byte("hello"), 0o644)
	require.Nil(t, err)

	data, readErr := ReadFile(path)
	require.Nil(t, readErr)
	assert.Equal(t, "hello", string(data))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.Nil(t, WriteFileAtomic(path, []byte("v1"), 0o644))
	require.Nil(t, WriteFileAtomic(path, []byte("v2"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "out.txt", entries[0].Name())
}

func TestExistsAndIsDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, Exists(dir))
	assert.True(t, Exists(file))
	assert.False(t, Exists(filepath.Join(dir, "missing")))

	assert.True(t, IsDirectory(dir))
	assert.False(t, IsDirectory(file))
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.Nil(t, DeleteFile(path))
	assert.False(t, Exists(path))
	require.Nil(t, DeleteFile(path))
}

func TestDiscoverFilesRecursiveWithExtensionFilter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a_spec.js"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b_spec.js"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "c_spec.js"), []byte(""), 0o644))

	matches, err := DiscoverFiles(root, "*_spec.js", Options{
		Recursive:         true,
		Extensions:        map[string]bool{"js": true},
		IgnoreDirectories: map[string]bool{"node_modules": true},
	})

	require.Nil(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Contains(t, m, "_spec.js")
		assert.NotContains(t, m, "node_modules")
	}
}

func TestDiscoverFilesNonRecursiveSkipsSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a_spec.js"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b_spec.js"), []byte(""), 0o644))

	matches, err := DiscoverFiles(root, "*_spec.js", Options{Recursive: false})

	require.Nil(t, err)
	require.Len(t, matches, 1)
}

func TestDiscoverFilesMissingRootIsError(t *testing.T) {
	_, err := DiscoverFiles("/no/such/root/xyz", "*", Options{})
	require.NotNil(t, err)
	assert.Equal(t, "IO", string(err.Category))
}

func TestGetModifiedTimeReflectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ts, err := GetModifiedTime(path)
	require.Nil(t, err)
	assert.Greater(t, ts, int64(0))
}
