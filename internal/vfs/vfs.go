// Package vfs is the filesystem abstraction used throughout bddhost:
// path normalization, directory traversal, atomic writes, and the
// temp-file lifecycle the scheduler scopes to test contexts.
//
// Grounded on the teacher's internal/config.Storage (sanitized paths,
// a single mutex-guarded root, glob-based listing) generalized to a
// standalone package and upgraded to atomic writes.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"bddhost/internal/errs"
)

// Normalize returns the absolute, slash-canonical form of path.
func Normalize(path string) (string, *errs.Error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.IOErrorf(err, "normalize %s", path)
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}

// Join joins path elements and normalizes separators.
func Join(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory reports whether path exists and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadFile reads the entire file at path.
func ReadFile(path string) ([]byte, *errs.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IOErrorf(err, "read %s", path)
	}
	return data, nil
}

// WriteFileAtomic writes data to path by writing to a sibling temp
// file and renaming it into place, so readers never observe a
// partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) *errs.Error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.IOErrorf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.IOErrorf(err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.IOErrorf(err, "write temp file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.IOErrorf(err, "close temp file %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return errs.IOErrorf(err, "chmod temp file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.IOErrorf(err, "rename %s to %s", tmpPath, path)
	}
	return nil
}

// AppendFile appends data to the file at path, creating it if absent.
func AppendFile(path string, data []byte) *errs.Error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.IOErrorf(err, "open %s for append", path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errs.IOErrorf(err, "append to %s", path)
	}
	return nil
}

// DeleteFile removes a single file. Missing files are not an error.
func DeleteFile(path string) *errs.Error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.IOErrorf(err, "delete %s", path)
	}
	return nil
}

// DeleteDirectory removes a directory and its contents. Missing
// directories are not an error.
func DeleteDirectory(path string) *errs.Error {
	if err := os.RemoveAll(path); err != nil {
		return errs.IOErrorf(err, "delete directory %s", path)
	}
	return nil
}

// CreateDirectory creates path and any missing parents.
func CreateDirectory(path string) *errs.Error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errs.IOErrorf(err, "create directory %s", path)
	}
	return nil
}

// GetModifiedTime returns the modification time of path as Unix nanos.
func GetModifiedTime(path string) (int64, *errs.Error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errs.IOErrorf(err, "stat %s", path)
	}
	return info.ModTime().UnixNano(), nil
}

// Options configures DiscoverFiles.
type Options struct {
	Recursive         bool
	Extensions        map[string]bool
	IgnoreDirectories map[string]bool
	ExtraFilter       string
}

// globToRegexp compiles a glob pattern where only '*' is a wildcard
// (compiling to ".*") into an anchored regexp, per spec.md §4.C.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '.', '+', '?', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteString(regexp.QuoteMeta(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// DiscoverFiles returns the deterministic (lexicographic,
// case-sensitive), absolute-path list of files under root matching
// pattern, honoring opts.
func DiscoverFiles(root, pattern string, opts Options) ([]string, *errs.Error) {
	if !Exists(root) {
		return nil, errs.IOErrorf(nil, "discovery root does not exist: %s", root)
	}

	re, reErr := globToRegexp(pattern)
	if reErr != nil {
		return nil, errs.New(errs.Validation, errs.Err, fmt.Sprintf("invalid pattern %q: %v", pattern, reErr), nil, reErr)
	}

	var extraRe *regexp.Regexp
	if opts.ExtraFilter != "" {
		var err error
		extraRe, err = globToRegexp(opts.ExtraFilter)
		if err != nil {
			return nil, errs.New(errs.Validation, errs.Err, fmt.Sprintf("invalid extra_filter %q: %v", opts.ExtraFilter, err), nil, err)
		}
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				if opts.IgnoreDirectories[d.Name()] {
					return filepath.SkipDir
				}
				if !opts.Recursive {
					return filepath.SkipDir
				}
			}
			return nil
		}

		name := d.Name()
		if len(opts.Extensions) > 0 {
			ext := strings.TrimPrefix(filepath.Ext(name), ".")
			if !opts.Extensions[ext] {
				return nil
			}
		}
		if !re.MatchString(name) {
			return nil
		}
		if extraRe != nil && !extraRe.MatchString(name) {
			return nil
		}

		abs, normErr := Normalize(path)
		if normErr != nil {
			return nil
		}
		matches = append(matches, abs)
		return nil
	})
	if walkErr != nil {
		return nil, errs.IOErrorf(walkErr, "walk %s", root)
	}

	sort.Strings(matches)
	return matches, nil
}
