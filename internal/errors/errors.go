// Package errors provides a lightweight structured error type (SiteBuilderError)
// for category-based classification across the scan/graph/build/publish pipeline.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory represents the category of a SiteBuilder error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Pipeline stage errors
	CategoryScan     ErrorCategory = "scan"
	CategoryGraph    ErrorCategory = "graph"
	CategoryAssemble ErrorCategory = "assemble"
	CategoryRender   ErrorCategory = "render"

	// External system and infrastructure errors
	CategoryPublish    ErrorCategory = "publish"
	CategoryHistory    ErrorCategory = "history"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// SiteBuilderError is a structured error with category, severity, and context
type SiteBuilderError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for SiteBuilderError
type ContextFields map[string]any

// Error implements the error interface
func (e *SiteBuilderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *SiteBuilderError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SiteBuilderError) WithContext(key string, value any) *SiteBuilderError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new SiteBuilderError
func New(category ErrorCategory, severity ErrorSeverity, message string) *SiteBuilderError {
	return &SiteBuilderError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new SiteBuilderError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *SiteBuilderError {
	return &SiteBuilderError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if sbe, ok := err.(*SiteBuilderError); ok {
		return sbe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a SiteBuilderError
func GetCategory(err error) ErrorCategory {
	if sbe, ok := err.(*SiteBuilderError); ok {
		return sbe.Category
	}
	return CategoryInternal
}

// ArtifactFailure records one artifact that failed to build along with its cause.
type ArtifactFailure struct {
	Path  string `json:"path"`
	Cause error  `json:"cause"`
}

// BuildError aggregates every artifact failure from a single build invocation.
// Returned by the executor so that nothing is silently swallowed: each stale
// artifact that failed to build appears exactly once.
type BuildError struct {
	Failures []ArtifactFailure
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if len(e.Failures) == 0 {
		return "build failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "build failed: %d artifact(s)", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Path, f.Cause)
	}
	return b.String()
}

// Add appends a failure for the given artifact path.
func (e *BuildError) Add(path string, cause error) {
	e.Failures = append(e.Failures, ArtifactFailure{Path: path, Cause: cause})
}

// HasFailures reports whether any artifact failed.
func (e *BuildError) HasFailures() bool {
	return len(e.Failures) > 0
}
