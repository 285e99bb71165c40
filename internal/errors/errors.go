// Package errors provides a categorized, contextualized error type used
// throughout this engine instead of bare fmt.Errorf, so every fatal
// condition carries a component and category that show up in log lines.
//
// This is a trimmed port of the originating codebase's error builder: the
// fluent New(err).Component(...).Category(...).Build() chain and the
// EnhancedError it produces are kept; the telemetry/event-bus reporting
// hooks that chain used to trigger are not, since this engine has no
// telemetry system for them to report into.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrorCategory groups errors for log correlation and metrics labeling.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryModelLoad     ErrorCategory = "model-load"
	CategoryInference     ErrorCategory = "inference"
	CategoryCapture       ErrorCategory = "capture"
	CategoryQueue         ErrorCategory = "queue"
	CategoryAction        ErrorCategory = "action"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was supplied.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a component, category, and free-form
// context for structured logging.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// LogValue lets slog print an EnhancedError as a structured group instead
// of just its Error() string.
func (ee *EnhancedError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("component", ee.Component),
		slog.String("category", string(ee.Category)),
		slog.String("error", ee.Err.Error()),
		slog.Time("timestamp", ee.Timestamp),
	}
	for k, v := range ee.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}

// ErrorBuilder is the fluent construction chain for an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder wrapping a formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build produces the EnhancedError, defaulting an unset component/category.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Is, As and Unwrap passthroughs so callers can keep using the stdlib
// errors idiom against values returned by this package.
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error        { return stderrors.Unwrap(err) }
