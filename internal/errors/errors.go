// Package errors provides the typed, severity-tagged error used for ambient
// failures: configuration, storage, file system and generation. Recoverable
// parse problems also use it, at SeverityLow, before becoming diagnostics.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorTypeConfig     ErrorType = iota // missing or invalid configuration
	ErrorTypeValidation                  // invalid user input (flags, rule files)
	ErrorTypeDatabase                    // repository connection or query failures
	ErrorTypeFileSystem                  // reading inputs or writing generated files
	ErrorTypeParse                       // declaration text that could not be understood
	ErrorTypeGeneration                  // binding emission failures
	ErrorTypeExternal                    // collaborator failures (comment provider)
	ErrorTypeInternal                    // unexpected internal state
)

var typeNames = [...]string{"CONFIG", "VALIDATION", "DATABASE", "FILESYSTEM", "PARSE", "GENERATION", "EXTERNAL", "INTERNAL"}

func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}

// Severity represents how critical an error is
type Severity int

const (
	SeverityLow      Severity = iota // the pipeline degrades and continues
	SeverityMedium                   // should be addressed but not fatal
	SeverityHigh                     // output for a whole unit is affected
	SeverityCritical                 // stops execution
)

var severityNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// Error is a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same type, so errors.Is(err, &Error{Type: T})
// tests the category
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Type == t.Type
}

// WithContext adds a key/value pair shown by DetailedString
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString renders type, severity, cause, sorted context and stack
func (e *Error) DetailedString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s\n", e.Severity, e.Type, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, "Caused by: %v\n", e.Cause)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", k, e.Context[k])
		}
	}
	if e.StackTrace != "" {
		fmt.Fprintf(&sb, "Stack trace:\n%s", e.StackTrace)
	}
	return sb.String()
}

const maxFrames = 10

func captureStackTrace(skip int) string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "  %s:%d %s\n", f.File, f.Line, f.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

// New creates an error with the given type, severity and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps err. A nil err gives nil.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(2),
	}
}

// ConfigErrorf creates a critical configuration error
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

func DatabaseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, message)
}

func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, fmt.Sprintf(format, args...))
}

func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, fmt.Sprintf(format, args...))
}

// ParseErrorf creates a low-severity parse error; the parser records these as
// diagnostics and keeps going
func ParseErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeParse, SeverityLow, fmt.Sprintf(format, args...))
}

// GenerationErrorf wraps a generation failure for one output unit
func GenerationErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeGeneration, SeverityHigh, fmt.Sprintf(format, args...))
}

// ExternalError wraps a collaborator failure
func ExternalError(err error, message string) *Error {
	return Wrap(err, ErrorTypeExternal, SeverityMedium, message)
}

func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// As returns the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsFatal checks whether any *Error in the chain is critical
func IsFatal(err error) bool {
	e, ok := As(err)
	return ok && e.IsFatal()
}

// GetSeverity returns the severity of err; plain errors are SeverityMedium
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	if e, ok := As(err); ok {
		return e.Severity
	}
	return SeverityMedium
}

// GetType returns the type of err; plain errors are ErrorTypeInternal
func GetType(err error) ErrorType {
	if e, ok := As(err); ok {
		return e.Type
	}
	return ErrorTypeInternal
}
