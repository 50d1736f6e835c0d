package vfs

import (
	"os"
	"sync"

	"bddhost/internal/errs"
)

// TempManager creates temp files and directories and tracks them under
// a stack of contexts so the scheduler can clean up everything a test
// case (or an enclosing suite) created, in one call, on exit.
//
// Grounded on the teacher's internal/config.Storage single-root,
// mutex-guarded bookkeeping, generalized from a config store to a
// scoped temp-resource ledger.
type TempManager struct {
	mu      sync.Mutex
	baseDir string
	stack   []*context
	counter int
}

type context struct {
	paths []string
}

// NewTempManager creates a manager rooted at baseDir. If baseDir is
// empty, os.TempDir is used.
func NewTempManager(baseDir string) *TempManager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &TempManager{baseDir: baseDir}
}

// PushContext opens a new nested scope. Paths registered after this
// call belong to it until the matching PopContext.
func (m *TempManager) PushContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, &context{})
}

// PopContext closes the innermost scope, deleting every path
// registered within it (recursively, for directories). A context with
// no open scope is a no-op.
func (m *TempManager) PopContext() *errs.Error {
	m.mu.Lock()
	if len(m.stack) == 0 {
		m.mu.Unlock()
		return nil
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	paths := top.paths
	m.mu.Unlock()

	var first *errs.Error
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil && first == nil {
			first = errs.IOErrorf(err, "cleanup %s", p)
		}
	}
	return first
}

// CreateTempFile creates a file under the manager's base directory
// with the given content and suffix, registers it under the current
// context (if any), and returns its path.
func (m *TempManager) CreateTempFile(content []byte, suffix string) (string, *errs.Error) {
	f, err := os.CreateTemp(m.baseDir, "bddhost-*"+suffix)
	if err != nil {
		return "", errs.IOErrorf(err, "create temp file in %s", m.baseDir)
	}
	path := f.Name()
	if len(content) > 0 {
		if _, werr := f.Write(content); werr != nil {
			f.Close()
			os.Remove(path)
			return "", errs.IOErrorf(werr, "write temp file %s", path)
		}
	}
	f.Close()
	m.Register(path)
	return path, nil
}

// CreateTempDirectory creates a directory under the manager's base
// directory, registers it, and returns its path.
func (m *TempManager) CreateTempDirectory() (string, *errs.Error) {
	path, err := os.MkdirTemp(m.baseDir, "bddhost-dir-*")
	if err != nil {
		return "", errs.IOErrorf(err, "create temp directory in %s", m.baseDir)
	}
	m.Register(path)
	return path, nil
}

// Register brings an externally created path under management of the
// current (innermost) context, so it is deleted on that context's
// PopContext. If no context is open, the path is never auto-cleaned.
func (m *TempManager) Register(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return
	}
	top := m.stack[len(m.stack)-1]
	top.paths = append(top.paths, path)
}

// Depth reports how many nested contexts are currently open.
func (m *TempManager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}
