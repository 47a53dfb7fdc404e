// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNetwork       ErrorCategory = "network"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryDecode        ErrorCategory = "decode"
	CategoryUpload        ErrorCategory = "photo-upload"
	CategoryCleanup       ErrorCategory = "photo-cleanup"
	CategoryStorage       ErrorCategory = "preference-storage"
	CategoryNotification  ErrorCategory = "notification"
	CategoryState         ErrorCategory = "state"
	CategoryLimit         ErrorCategory = "limit"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when no component was given to the builder.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool           // Whether telemetry has been sent
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetMessage returns the error message
func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// NetworkContext adds request context; the URL is reduced to its scheme category
func (eb *ErrorBuilder) NetworkContext(method, url string) *ErrorBuilder {
	if method != "" {
		eb.Context("method", method)
	}
	if url != "" {
		eb.Context("url_category", categorizeURL(url))
	}
	return eb
}

// Timing records which operation failed and how long it ran
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError and triggers optional telemetry reporting
func (eb *ErrorBuilder) Build() *EnhancedError {
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	if hasActiveReporting.Load() {
		reportToTelemetry(ee)
	}

	return ee
}

// hasActiveReporting gates the telemetry path so Build stays cheap by default
var hasActiveReporting atomic.Bool

// detectCategory inherits the category of a wrapped error when one exists
func detectCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	return CategoryGeneric
}

// categorizeURL anonymizes URLs while preserving protocol
func categorizeURL(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "http://"):
		return "http-endpoint"
	case strings.HasPrefix(url, "https://"):
		return "https-endpoint"
	default:
		return "other-protocol"
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// FieldError is a local validation failure for one input field.
// It never reaches the network layer.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return e.Message
}

// ErrorCategory implements CategorizedError
func (e *FieldError) ErrorCategory() ErrorCategory {
	return CategoryValidation
}

// NewFieldError creates a validation error for field.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

// Callers import this package instead of the standard errors package, so the
// helpers below forward to it.

// NewStd returns a plain error with text.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is forwards to errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join forwards to errors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
// Errors that only implement CategorizedError are matched too.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	if As(err, &enhancedErr) {
		return enhancedErr.Category == category
	}
	var catErr CategorizedError
	return As(err, &catErr) && catErr.ErrorCategory() == category
}

// IsNotFound checks if an error is an EnhancedError with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
