// Package coverage implements three-state line coverage: a line is
// not-executed, executed (hit_count > 0), or verified (an assertion
// observed it pass). Verification is never promoted automatically —
// only internal/assertion calls MarkLineCovered.
//
// Grounded on the teacher's internal/testing/mock.Clock for the
// swappable-global, mutex-guarded singleton pattern, and on
// internal/config.Storage for the atomic-persistence-with-merge-on-load
// shape, generalized to a hit/verified accounting engine.
package coverage

import (
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"bddhost/internal/errs"
	"bddhost/internal/vfs"
	"bddhost/pkg/logging"
)

// Line is the per-line accounting datum.
type Line struct {
	HitCount int  `json:"hit_count"`
	Verified bool `json:"verified"`
}

const statsVersion = 1

type statsFile struct {
	Version int                     `json:"version"`
	Data    map[string]map[int]Line `json:"data"`
}

// Engine is a three-state line coverage tracker. The zero value is not
// usable; construct with New.
type Engine struct {
	mu sync.Mutex

	enabled bool
	paused  bool

	data map[string]map[int]Line

	includePatterns []string
	excludePatterns []string
	fileDecision    map[string]bool // normalized path -> included?

	statsPath        string
	saveStepSize     int
	bufferCount      int
	writeFailureSeen bool
}

// New creates an inactive Engine. Call Init to install it.
func New() *Engine {
	return &Engine{
		data:         map[string]map[int]Line{},
		fileDecision: map[string]bool{},
		saveStepSize: 100,
	}
}

// Config configures Init.
type Config struct {
	StatsFile       string
	SaveStepSize    int
	IncludePatterns []string
	ExcludePatterns []string
}

// Init loads any existing stats file (merging hit counts, OR-ing
// verified flags) and marks the engine active.
func (e *Engine) Init(cfg Config) *errs.Error {
	e.mu.Lock()
	e.statsPath = cfg.StatsFile
	if cfg.SaveStepSize > 0 {
		e.saveStepSize = cfg.SaveStepSize
	}
	e.includePatterns = append([]string(nil), cfg.IncludePatterns...)
	e.excludePatterns = append([]string(nil), cfg.ExcludePatterns...)
	e.enabled = true
	e.paused = false
	e.writeFailureSeen = false
	path := e.statsPath
	e.mu.Unlock()

	if path == "" {
		return nil
	}
	return e.LoadStats(path)
}

// Start (re)enables recording without touching persisted state.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

// Stop disables recording and hook evaluation short-circuits.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
}

// Pause gates recording without uninstalling the engine.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume undoes Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// IsActive reports whether the engine is enabled and not paused.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled && !e.paused
}

// Reset clears all recorded data and write-failure suppression,
// without disabling the engine.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = map[string]map[int]Line{}
	e.fileDecision = map[string]bool{}
	e.bufferCount = 0
	e.writeFailureSeen = false
}

// AddIncludePattern registers an additional include glob, invalidating
// any cached file decisions so they are re-evaluated.
func (e *Engine) AddIncludePattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.includePatterns = append(e.includePatterns, pattern)
	e.fileDecision = map[string]bool{}
}

// AddExcludePattern registers an additional exclude glob.
func (e *Engine) AddExcludePattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.excludePatterns = append(e.excludePatterns, pattern)
	e.fileDecision = map[string]bool{}
}

func matchGlob(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// included decides, with caching, whether file should be recorded.
// Must be called with e.mu held.
func (e *Engine) included(file string) bool {
	if decision, ok := e.fileDecision[file]; ok {
		return decision
	}

	decision := true
	if len(e.includePatterns) > 0 {
		decision = false
		for _, p := range e.includePatterns {
			if matchGlob(p, file) {
				decision = true
				break
			}
		}
	}
	if decision {
		for _, p := range e.excludePatterns {
			if matchGlob(p, file) {
				decision = false
				break
			}
		}
	}

	e.fileDecision[file] = decision
	return decision
}

// Track records a line execution event. Safe to call at high
// frequency; a no-op whenever the engine is inactive.
func (e *Engine) Track(file string, line int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || e.paused {
		return
	}
	if !e.included(file) {
		return
	}

	lines, ok := e.data[file]
	if !ok {
		lines = map[int]Line{}
		e.data[file] = lines
	}
	datum := lines[line]
	datum.HitCount++
	lines[line] = datum

	e.bufferCount++
	if e.bufferCount >= e.saveStepSize && e.statsPath != "" {
		path := e.statsPath
		e.bufferCount = 0
		go e.saveStatsAsync(path)
	}
}

func (e *Engine) saveStatsAsync(path string) {
	if err := e.SaveStats(path); err != nil {
		logging.Error("coverage", err, "buffered save failed")
	}
}

// MarkLineCovered sets the verified flag for (file, line). Idempotent.
// Called exclusively by internal/assertion after a predicate passes.
func (e *Engine) MarkLineCovered(file string, line int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}
	lines, ok := e.data[file]
	if !ok {
		lines = map[int]Line{}
		e.data[file] = lines
	}
	datum := lines[line]
	datum.Verified = true
	lines[line] = datum
}

// MergeFrom folds external data into this engine's in-memory state,
// summing hit counts and OR-ing verified flags — the same merge rule
// LoadStats applies to a stats file, used instead to fold a parallel
// worker's coverage delta (spec.md §4.H "Parallelism") into the
// process-wide engine without a round trip through disk.
func (e *Engine) MergeFrom(data map[string]map[int]Line) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for file, lines := range data {
		existing, ok := e.data[file]
		if !ok {
			existing = map[int]Line{}
			e.data[file] = existing
		}
		for line, datum := range lines {
			cur := existing[line]
			cur.HitCount += datum.HitCount
			cur.Verified = cur.Verified || datum.Verified
			existing[line] = cur
		}
	}
}

// GetData returns a deep copy of the current coverage data.
func (e *Engine) GetData() map[string]map[int]Line {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]map[int]Line, len(e.data))
	for file, lines := range e.data {
		copied := make(map[int]Line, len(lines))
		for line, datum := range lines {
			copied[line] = datum
		}
		out[file] = copied
	}
	return out
}

// SaveStats serializes the current data to path atomically. On failure
// it logs once and suppresses further write attempts until Reset.
func (e *Engine) SaveStats(path string) *errs.Error {
	e.mu.Lock()
	if e.writeFailureSeen {
		e.mu.Unlock()
		return nil
	}
	snapshot := statsFile{Version: statsVersion, Data: e.data}
	e.mu.Unlock()

	data, jsonErr := json.Marshal(snapshot)
	if jsonErr != nil {
		return errs.New(errs.Runtime, errs.Err, "serialize coverage stats", nil, jsonErr)
	}

	if err := vfs.WriteFileAtomic(path, data, 0o644); err != nil {
		e.mu.Lock()
		e.writeFailureSeen = true
		e.mu.Unlock()
		logging.Error("coverage", err, "stats write failed, suppressing further writes until reset")
		return err
	}
	return nil
}

// LoadStats merges hit counts (summed) and verified flags (OR-ed) from
// the stats file at path into the current data. A missing file is not
// an error.
func (e *Engine) LoadStats(path string) *errs.Error {
	if !vfs.Exists(path) {
		return nil
	}

	raw, err := vfs.ReadFile(path)
	if err != nil {
		logging.Error("coverage", err, "stats load failed, continuing with in-memory state")
		return nil
	}

	var loaded statsFile
	if jsonErr := json.Unmarshal(raw, &loaded); jsonErr != nil {
		wrapped := errs.New(errs.Parse, errs.Err, "parse coverage stats", map[string]any{"path": path}, jsonErr)
		logging.Error("coverage", wrapped, "stats load failed, continuing with in-memory state")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for file, lines := range loaded.Data {
		existing, ok := e.data[file]
		if !ok {
			existing = map[int]Line{}
			e.data[file] = existing
		}
		for line, datum := range lines {
			cur := existing[line]
			cur.HitCount += datum.HitCount
			cur.Verified = cur.Verified || datum.Verified
			existing[line] = cur
		}
	}
	return nil
}

// Shutdown flushes stats (if a path is configured) and marks the
// engine uninitialized.
func (e *Engine) Shutdown() *errs.Error {
	e.mu.Lock()
	path := e.statsPath
	e.mu.Unlock()

	var flushErr *errs.Error
	if path != "" {
		flushErr = e.SaveStats(path)
	}

	e.mu.Lock()
	e.enabled = false
	e.paused = false
	e.mu.Unlock()
	return flushErr
}

var (
	defaultMu     sync.Mutex
	defaultEngine = New()
)

// Default returns the process-wide Engine that the bdd façade merges
// each file run's coverage delta into.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultEngine
}

// CallerFrame returns the deepest stack frame, above the caller of
// this function, whose file is not part of the bddhost module itself
// — the frame attributed to a passing assertion. Frames in _test.go
// files always count as outside the framework.
func CallerFrame(skip int) (file string, line int, ok bool) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return "", 0, false
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && (strings.HasSuffix(frame.File, "_test.go") || (!strings.Contains(frame.File, "/bddhost/") && !strings.HasPrefix(frame.Function, "bddhost/"))) {
			return frame.File, frame.Line, true
		}
		if !more {
			break
		}
	}
	return "", 0, false
}
