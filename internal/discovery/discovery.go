// Package discovery is a thin, opinionated wrapper over vfs.DiscoverFiles
// applying the project's default include pattern, ignore set, and
// recursion policy, all overridable through settings.
//
// Grounded on the teacher's internal/config.GetDefaultConfigPathOrPanic
// style of "sane default, explicit override" helpers layered over a
// lower-level primitive.
package discovery

import (
	"bddhost/internal/errs"
	"bddhost/internal/settings"
	"bddhost/internal/vfs"
)

const modulePrefix = "discovery"

func init() {
	settings.Default().RegisterModule(modulePrefix, map[string]settings.Field{
		"pattern":            {Type: settings.TypeString},
		"recursive":          {Type: settings.TypeBool},
		"ignore_directories": {Type: settings.TypeStringSlice},
	}, map[string]any{
		"pattern":            "*_test.go",
		"recursive":          true,
		"ignore_directories": []string{"node_modules", ".git"},
	})
}

// Result is the outcome of a Discover call.
type Result struct {
	Files []string
}

// Discover finds test files under root, applying the pattern and
// options currently configured. An empty pattern uses the configured
// default; root has no default, and an empty or missing root is an IO
// error.
func Discover(root, pattern string) (*Result, *errs.Error) {
	store := settings.Default()

	if pattern == "" {
		if v, ok := store.Get(modulePrefix + ".pattern"); ok {
			pattern, _ = v.(string)
		}
	}

	recursive := true
	if v, ok := store.Get(modulePrefix + ".recursive"); ok {
		if b, ok := v.(bool); ok {
			recursive = b
		}
	}

	ignore := map[string]bool{}
	if v, ok := store.Get(modulePrefix + ".ignore_directories"); ok {
		if names, ok := v.([]string); ok {
			for _, n := range names {
				ignore[n] = true
			}
		}
	}

	files, err := vfs.DiscoverFiles(root, pattern, vfs.Options{
		Recursive:         recursive,
		IgnoreDirectories: ignore,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Files: files}, nil
}
