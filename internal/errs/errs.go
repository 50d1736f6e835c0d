// Package errs provides the structured error model shared by every
// bddhost subsystem: a single Error type carrying a category,
// severity, free-form context, an optional cause chain, and a captured
// traceback, plus safe-execution wrappers that never let a panic
// escape to a caller.
package errs

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Category classifies the origin of an Error.
type Category string

const (
	Validation    Category = "VALIDATION"
	IO            Category = "IO"
	Parse         Category = "PARSE"
	Runtime       Category = "RUNTIME"
	Timeout       Category = "TIMEOUT"
	Configuration Category = "CONFIGURATION"
)

// Severity indicates how serious an Error is.
type Severity string

const (
	Fatal   Severity = "FATAL"
	Err     Severity = "ERROR"
	Warning Severity = "WARNING"
	Info    Severity = "INFO"
)

// Error is the structured error value every public bddhost operation
// returns in place of a bare error.
type Error struct {
	Category   Category
	Severity   Severity
	Message    string
	Context    map[string]any
	Cause      error
	Traceback  string
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s/%s] %s", e.Category, e.Severity, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}
	return b.String()
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.Cause }

// DetailedError renders the error with its full context and traceback,
// for diagnostics that want more than a one-line summary.
func (e *Error) DetailedError() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", e.Error())
	if len(e.Context) > 0 {
		b.WriteString("  context:\n")
		for k, v := range e.Context {
			fmt.Fprintf(&b, "    %s: %v\n", k, v)
		}
	}
	if e.Traceback != "" {
		fmt.Fprintf(&b, "  traceback:\n%s\n", indent(e.Traceback, "    "))
	}
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// New creates an Error with the given category, severity, message and
// optional context/cause.
func New(category Category, severity Severity, message string, context map[string]any, cause error) *Error {
	return &Error{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Context:   context,
		Cause:     cause,
		Traceback: string(debug.Stack()),
	}
}

// Validationf is a convenience constructor for VALIDATION/ERROR errors.
func Validationf(format string, args ...any) *Error {
	return New(Validation, Err, fmt.Sprintf(format, args...), nil, nil)
}

// IOErrorf is a convenience constructor for IO/ERROR errors.
func IOErrorf(cause error, format string, args ...any) *Error {
	return New(IO, Err, fmt.Sprintf(format, args...), nil, cause)
}

// Timeoutf is a convenience constructor for TIMEOUT/ERROR errors.
func Timeoutf(format string, args ...any) *Error {
	return New(Timeout, Err, fmt.Sprintf(format, args...), nil, nil)
}

// Format renders any error the way bddhost prints errors to users:
// structured errors get their detailed form, anything else its plain
// Error() string.
func Format(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := err.(*Error); ok {
		return se.DetailedError()
	}
	return err.Error()
}

// Try runs fn and converts any panic it raises into a RUNTIME *Error,
// so a panic from user-supplied test or hook code never escapes to the
// framework's own call stack.
func Try[T any](fn func() (T, error)) (result T, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = New(Runtime, Err, fmt.Sprintf("panic: %v", r), nil, nil)
		}
	}()
	v, e := fn()
	if e != nil {
		if se, ok := e.(*Error); ok {
			return v, se
		}
		return v, New(Runtime, Err, e.Error(), nil, e)
	}
	return v, nil
}

// TryVoid is Try for closures with no return value besides error/ok.
func TryVoid(fn func() error) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = New(Runtime, Err, fmt.Sprintf("panic: %v", r), nil, nil)
		}
	}()
	e := fn()
	if e == nil {
		return nil
	}
	if se, ok := e.(*Error); ok {
		return se
	}
	return New(Runtime, Err, e.Error(), nil, e)
}

// SafeIO wraps a filesystem operation, tagging any failure IO and
// attaching the path plus caller-supplied context.
func SafeIO(fn func() error, path string, context map[string]any) *Error {
	err := TryVoid(fn)
	if err == nil {
		return nil
	}
	err.Category = IO
	if context == nil {
		context = map[string]any{}
	}
	context["path"] = path
	err.Context = context
	return err
}
