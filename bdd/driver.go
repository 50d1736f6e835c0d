package bdd

import (
	"bddhost/internal/coverage"
	"bddhost/internal/discovery"
	"bddhost/internal/errs"
	"bddhost/internal/registry"
	"bddhost/internal/reporting"
	"bddhost/internal/settings"
	"bddhost/internal/vfs"
)

// RunResult is the Driver API's run_file(path) return shape, spec.md
// §6: "{passed, failed, skipped, errored, file}".
type RunResult struct {
	File    string
	Passed  int
	Failed  int
	Skipped int
	Errored int
}

var tempManager = newDriverTempManager()

// newDriverTempManager builds the Driver API's shared TempManager with
// one permanently-open context, so CreateFile/CreateDirectory/Register
// always have somewhere to attach a path — Cleanup pops that context
// (deleting everything registered since the last Cleanup) and opens a
// fresh one immediately after.
func newDriverTempManager() *vfs.TempManager {
	m := vfs.NewTempManager("")
	m.PushContext()
	return m
}

// Reset clears the process-wide Registry's declared tree and staged
// tags, and the tag and name filters, without touching coverage data,
// configuration, or the mocking substrate, per spec.md §4.H "Reset".
// RunFile/RunDiscovered build a fresh Registry per file, so of these
// only the filters affect them.
func Reset() {
	registry.Default().Reset()
	filterMu.Lock()
	filters = registry.Filters{}
	filterMu.Unlock()
}

// RunFile loads path's registered declarations (see File) into a
// fresh Registry of its own, runs them, merges its coverage delta into the
// process-wide coverage engine, and returns the aggregate counts.
func RunFile(path string) (RunResult, *errs.Error) {
	loader, ok := snapshotLoaders()[path]
	if !ok {
		return RunResult{File: path}, errs.New(errs.Validation, errs.Err, "no declarations registered for file", map[string]any{"path": path}, nil)
	}

	results := runAndMerge([]string{path}, map[string]registry.FileLoader{path: loader}, 1)
	return results[0], nil
}

// RunDiscovered discovers test files under dir (which has no default:
// an empty or missing dir is an IO error) matching pattern (defaulting
// to the configured discovery pattern when empty), runs every one that
// has a registered loader, and reports whether every case across every
// file passed — spec.md §6 "run_discovered(dir?, pattern?) → success".
func RunDiscovered(dir, pattern string) (bool, *errs.Error) {
	result, err := discovery.Discover(dir, pattern)
	if err != nil {
		return false, err
	}

	all := snapshotLoaders()
	loaders := map[string]registry.FileLoader{}
	var paths []string
	for _, f := range result.Files {
		if loader, ok := all[f]; ok {
			loaders[f] = loader
			paths = append(paths, f)
		}
	}

	parallel := 1
	if v, ok := settings.Default().Get("registry.parallel"); ok {
		if n, ok := v.(int); ok && n > 0 {
			parallel = n
		}
	}

	results := runAndMerge(paths, loaders, parallel)
	for _, r := range results {
		if r.Failed > 0 || r.Errored > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Discover finds candidate test files under dir using the discovery
// module's configured defaults, without running anything.
func Discover(dir, pattern string) ([]string, *errs.Error) {
	result, err := discovery.Discover(dir, pattern)
	if err != nil {
		return nil, err
	}
	return result.Files, nil
}

// runAndMerge runs paths through registry.RunFiles against the
// process-wide reporter and coverage engine, folding each worker's
// isolated coverage delta back centrally (spec.md §4.H "Parallelism"),
// and reduces each worker's ExecutionRecords to a RunResult.
func runAndMerge(paths []string, loaders map[string]registry.FileLoader, parallel int) []RunResult {
	cov := coverage.Default()
	covCfg := coverage.Config{}
	workers := registry.RunFiles(paths, loaders, parallel, reporting.Default(), currentFilters(), covCfg, "")

	out := make([]RunResult, len(workers))
	for i, w := range workers {
		cov.MergeFrom(w.Coverage)
		r := RunResult{File: w.File}
		for _, rec := range w.Records {
			switch rec.Status {
			case registry.StatusPassed:
				r.Passed++
			case registry.StatusFailed:
				r.Failed++
			case registry.StatusSkipped:
				r.Skipped++
			case registry.StatusErrored:
				r.Errored++
			}
		}
		out[i] = r
	}
	return out
}

// Coverage is the Driver API's coverage sub-surface, forwarding to the
// process-wide coverage.Engine.
var Coverage = coverageDriver{}

type coverageDriver struct{}

func (coverageDriver) Init(cfg coverage.Config) *errs.Error { return coverage.Default().Init(cfg) }
func (coverageDriver) Start()                               { coverage.Default().Start() }
func (coverageDriver) Stop()                                { coverage.Default().Stop() }
func (coverageDriver) Shutdown() *errs.Error                { return coverage.Default().Shutdown() }
func (coverageDriver) Save(path string) *errs.Error         { return coverage.Default().SaveStats(path) }
func (coverageDriver) Load(path string) *errs.Error         { return coverage.Default().LoadStats(path) }
func (coverageDriver) Reset()                               { coverage.Default().Reset() }
func (coverageDriver) GetData() map[string]map[int]coverage.Line {
	return coverage.Default().GetData()
}

// Config is the Driver API's configuration sub-surface, forwarding to
// the process-wide settings.Store.
var Config = configDriver{}

type configDriver struct{}

func (configDriver) Get(path string) (any, bool) { return settings.Default().Get(path) }
func (configDriver) Set(path string, value any) *errs.Error {
	return settings.Default().Set(path, value)
}
func (configDriver) LoadFromFile(path string) *errs.Error { return settings.Default().LoadFromFile(path) }
func (configDriver) SaveToFile(path string) *errs.Error   { return settings.Default().SaveToFile(path) }

// RegisterFormatter registers f to receive every reporting event from
// the process-wide Reporter.
func RegisterFormatter(f reporting.Formatter) { reporting.Default().Register(f) }

// Temp is the Driver API's temp-file sub-surface, forwarding to a
// single process-wide vfs.TempManager shared across driver-level
// operations (distinct from the per-case TempManager instances the
// scheduler stacks during RunFile/RunDiscovered).
var Temp = tempDriver{}

type tempDriver struct{}

func (tempDriver) CreateFile(content []byte, suffix string) (string, *errs.Error) {
	return tempManager.CreateTempFile(content, suffix)
}
func (tempDriver) CreateDirectory() (string, *errs.Error) { return tempManager.CreateTempDirectory() }
func (tempDriver) Register(path string)                   { tempManager.Register(path) }
func (tempDriver) Cleanup() *errs.Error {
	err := tempManager.PopContext()
	tempManager.PushContext()
	return err
}
