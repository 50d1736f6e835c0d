// Package settings implements the single process-wide, dotted-path
// configuration tree shared by every bddhost subsystem. A subsystem
// registers its own schema under a prefix rather than keeping a private
// config struct; discovery is the only one that registers at init.
//
// Grounded on the teacher's internal/config.CommonManager[T] (a
// generic, mutex-guarded definition store) and ConfigurationLoader
// (YAML load with defaults substituted when the file is absent),
// generalized from a single typed definition store into a tree of
// arbitrary dotted keys shared across modules.
package settings

import (
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"bddhost/internal/errs"
	"bddhost/internal/vfs"
	"bddhost/pkg/logging"
)

// FieldType constrains the values a schema field accepts.
type FieldType int

const (
	TypeAny FieldType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeStringSlice
)

// Field describes the schema for a single dotted key.
type Field struct {
	Type FieldType
	// Validate, if set, runs after the type check and can reject a
	// value for range or shape reasons the Type alone can't express.
	Validate func(value any) error
}

type listener struct {
	prefix   string
	callback func(path string, oldValue, newValue any)
}

// Store is a single hierarchical key/value tree. The process keeps
// exactly one live Store (Default); tests construct their own with
// New for isolation.
type Store struct {
	mu        sync.RWMutex
	schema    map[string]Field
	defaults  map[string]any
	values    map[string]any
	listeners []listener
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		schema:   map[string]Field{},
		defaults: map[string]any{},
		values:   map[string]any{},
	}
}

var (
	defaultMu    sync.Mutex
	defaultStore = New()
)

// Default returns the process-wide Store.
func Default() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultStore
}

// RegisterModule declares the shape of keys under prefix. Calling it
// again for the same prefix merges schema and defaults non-destructively:
// existing entries are left untouched, new ones are added.
func (s *Store) RegisterModule(prefix string, schema map[string]Field, defaults map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, field := range schema {
		full := joinPath(prefix, key)
		if _, exists := s.schema[full]; !exists {
			s.schema[full] = field
		}
	}
	for key, value := range defaults {
		full := joinPath(prefix, key)
		if _, exists := s.defaults[full]; !exists {
			s.defaults[full] = value
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

// Get returns the value at path: the live value if set, otherwise the
// registered default, otherwise (nil, false).
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[path]; ok {
		return v, true
	}
	if v, ok := s.defaults[path]; ok {
		return v, true
	}
	return nil, false
}

// GetAll returns every key currently visible — live values layered
// over defaults — as a flat dotted-path map.
func (s *Store) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.defaults)+len(s.values))
	for k, v := range s.defaults {
		out[k] = v
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set writes value at path after validating it against any registered
// schema field, then runs every listener whose prefix matches path,
// in registration order. A listener panic is recovered, logged, and
// does not abort the write or the remaining listeners.
func (s *Store) Set(path string, value any) *errs.Error {
	s.mu.Lock()

	if field, ok := s.schema[path]; ok {
		if err := validate(field, value); err != nil {
			s.mu.Unlock()
			return errs.New(errs.Validation, errs.Err, err.Error(), map[string]any{"path": path}, nil)
		}
	}

	oldValue, hadOld := s.values[path]
	if !hadOld {
		oldValue, hadOld = s.defaults[path]
	}
	_ = hadOld
	s.values[path] = value

	matched := make([]listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		if isPrefixOf(l.prefix, path) {
			matched = append(matched, l)
		}
	}
	s.mu.Unlock()

	for _, l := range matched {
		runListener(l, path, oldValue, value)
	}
	return nil
}

func runListener(l listener, path string, oldValue, newValue any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("settings", errs.Validationf("listener panic: %v", r), "change listener for %s failed", l.prefix)
		}
	}()
	l.callback(path, oldValue, newValue)
}

func isPrefixOf(prefix, path string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+".")
}

func validate(field Field, value any) error {
	switch field.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return errs.Validationf("expected string")
		}
	case TypeInt:
		switch value.(type) {
		case int, int32, int64:
		default:
			return errs.Validationf("expected int")
		}
	case TypeFloat:
		switch value.(type) {
		case float32, float64:
		default:
			return errs.Validationf("expected float")
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return errs.Validationf("expected bool")
		}
	case TypeStringSlice:
		if _, ok := value.([]string); !ok {
			return errs.Validationf("expected []string")
		}
	}
	if field.Validate != nil {
		return field.Validate(value)
	}
	return nil
}

// OnChange registers callback to run after any successful Set whose
// path is prefix or a dotted descendant of it. Returns a function that
// removes the listener.
func (s *Store) OnChange(prefix string, callback func(path string, oldValue, newValue any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := listener{prefix: prefix, callback: callback}
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) && sameListener(s.listeners[idx], l) {
			s.listeners = append(s.listeners[:idx], s.listeners[idx+1:]...)
		}
	}
}

func sameListener(a, b listener) bool {
	return a.prefix == b.prefix
}

// LoadFromFile replaces live values from a YAML document at path. A
// missing file is not an error. The document is a flat dotted-path map;
// nested YAML maps are flattened automatically.
func (s *Store) LoadFromFile(path string) *errs.Error {
	if !vfs.Exists(path) {
		return nil
	}

	data, err := vfs.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]any
	if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
		return errs.New(errs.Parse, errs.Err, "parse configuration file", map[string]any{"path": path}, yerr)
	}

	flat := map[string]any{}
	flatten("", raw, flat)

	s.mu.Lock()
	s.values = map[string]any{}
	s.mu.Unlock()

	for k, v := range flat {
		if setErr := s.Set(k, v); setErr != nil {
			return setErr
		}
	}
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		full := joinPath(prefix, k)
		if nested, ok := v.(map[string]any); ok {
			flatten(full, nested, out)
			continue
		}
		out[full] = v
	}
}

// SaveToFile serializes every visible key to a nested YAML document at
// path and writes it atomically.
func (s *Store) SaveToFile(path string) *errs.Error {
	flat := s.GetAll()
	nested := unflatten(flat)

	data, yerr := yaml.Marshal(nested)
	if yerr != nil {
		return errs.New(errs.Runtime, errs.Err, "serialize configuration", nil, yerr)
	}
	return vfs.WriteFileAtomic(path, data, 0o644)
}

func unflatten(flat map[string]any) map[string]any {
	root := map[string]any{}
	for path, value := range flat {
		parts := strings.Split(path, ".")
		cursor := root
		for i, part := range parts {
			if i == len(parts)-1 {
				cursor[part] = value
				continue
			}
			next, ok := cursor[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cursor[part] = next
			}
			cursor = next
		}
	}
	return root
}

// Reset restores defaults for the subtree rooted at prefix (or the
// whole store, if prefix is empty), discarding any live overrides.
func (s *Store) Reset(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prefix == "" {
		s.values = map[string]any{}
		return
	}
	for k := range s.values {
		if isPrefixOf(prefix, k) {
			delete(s.values, k)
		}
	}
}

// Keys returns every key with a registered default or schema entry,
// sorted, for diagnostics and completion.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	for k := range s.schema {
		seen[k] = true
	}
	for k := range s.defaults {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
