// Package errors provides structured error handling for the schema compiler.
// It defines error codes, categories, and formatting for both human-readable
// terminal output and machine-parseable JSON.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code in the schema compiler
type ErrorCode string

// ErrorCategory represents the category of compiler error
type ErrorCategory string

const (
	// CategoryLoad represents database loading errors (LOD001-099)
	CategoryLoad ErrorCategory = "load"
	// CategoryType represents type resolution errors (TYP100-199)
	CategoryType ErrorCategory = "type"
	// CategoryService represents service resolution errors (SVC200-299)
	CategoryService ErrorCategory = "service"
	// CategoryOwnership represents nested type ownership errors (OWN300-399)
	CategoryOwnership ErrorCategory = "ownership"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	// SeverityError indicates an error that aborts the run
	SeverityError ErrorSeverity = "error"
)

// CompilerError represents a structured compiler error
type CompilerError struct {
	// Code is the unique error code (e.g., "TYP101", "SVC201")
	Code ErrorCode `json:"code"`
	// Type is a machine-readable error type identifier
	Type string `json:"type"`
	// Category is the error category
	Category ErrorCategory `json:"category"`
	// Severity is the error severity level
	Severity ErrorSeverity `json:"severity"`
	// Message is the primary error message
	Message string `json:"message"`
	// Subject names the record the error is about, e.g. "AWS::S3::Bucket.properties.Tags"
	Subject string `json:"subject,omitempty"`
	// Source is the database source the record came from (optional)
	Source string `json:"source,omitempty"`
	// Expected describes what was expected (optional)
	Expected string `json:"expected,omitempty"`
	// Actual describes what was actually found (optional)
	Actual string `json:"actual,omitempty"`
	// Suggestion provides a hint for fixing the error (optional)
	Suggestion string `json:"suggestion,omitempty"`

	cause error
}

// Error implements the error interface
func (e *CompilerError) Error() string {
	return FormatCompact(e)
}

// Unwrap returns the underlying cause, if any
func (e *CompilerError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CompilerError with the same code.
// A target without a code matches any CompilerError.
func (e *CompilerError) Is(target error) bool {
	t, ok := target.(*CompilerError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// ToJSON returns the error as a JSON string
func (e *CompilerError) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WithSubject sets the record the error is about
func (e *CompilerError) WithSubject(subject string) *CompilerError {
	e.Subject = subject
	return e
}

// WithSource sets the database source for the error
func (e *CompilerError) WithSource(source string) *CompilerError {
	e.Source = source
	return e
}

// WithExpected sets the expected value for the error
func (e *CompilerError) WithExpected(expected string) *CompilerError {
	e.Expected = expected
	return e
}

// WithActual sets the actual value for the error
func (e *CompilerError) WithActual(actual string) *CompilerError {
	e.Actual = actual
	return e
}

// WithSuggestion sets a suggestion for fixing the error
func (e *CompilerError) WithSuggestion(suggestion string) *CompilerError {
	e.Suggestion = suggestion
	return e
}

// WithCause attaches the underlying error
func (e *CompilerError) WithCause(cause error) *CompilerError {
	e.cause = cause
	return e
}

// Code returns a matcher for use with errors.Is, e.g.
// errors.Is(err, cerrors.Code(cerrors.ErrAmbiguousService)).
func Code(code ErrorCode) error {
	return &CompilerError{Code: code}
}

// HasCode reports whether err, or any error it wraps, is a CompilerError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, Code(code))
}

// AsCompilerError extracts the first CompilerError in err's chain.
func AsCompilerError(err error) (*CompilerError, bool) {
	var ce *CompilerError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// newError creates a new CompilerError with the given parameters
func newError(
	code ErrorCode,
	typ string,
	category ErrorCategory,
	severity ErrorSeverity,
	message string,
) *CompilerError {
	return &CompilerError{
		Code:     code,
		Type:     typ,
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

func errorf(code ErrorCode, typ string, category ErrorCategory, format string, args ...any) *CompilerError {
	return newError(code, typ, category, SeverityError, fmt.Sprintf(format, args...))
}
