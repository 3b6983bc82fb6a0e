package lib

import (
	"errors"
	"fmt"
	"strings"
)

// TrellisError represents a user-friendly error with context and guidance
type TrellisError struct {
	Category    ErrorCategory
	Message     string   // Short description of what went wrong
	Cause       error    // Underlying error
	Guidance    []string // What the user can do to fix it
	HTTPStatus  int      // HTTP status code if applicable
	IsRetryable bool     // Can this error be automatically retried?
}

// ErrorCategory classifies errors for better UX
type ErrorCategory string

const (
	CategoryNetwork       ErrorCategory = "network"
	CategoryOntology      ErrorCategory = "ontology"
	CategoryIngestion     ErrorCategory = "ingestion"
	CategoryValidation    ErrorCategory = "validation"
	CategoryAuth          ErrorCategory = "auth"
	CategoryService       ErrorCategory = "service"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryState         ErrorCategory = "state"
)

// Error implements the error interface
func (e *TrellisError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] ", strings.ToUpper(string(e.Category))))
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.HTTPStatus > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.HTTPStatus))
	}

	return sb.String()
}

// UserMessage returns a formatted message suitable for displaying to end users
func (e *TrellisError) UserMessage() string {
	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")

	if len(e.Guidance) > 0 {
		sb.WriteString("How to fix:\n")
		for i, guide := range e.Guidance {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, guide))
		}
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", e.Cause))
	}

	if e.IsRetryable {
		sb.WriteString("\nThis error is transient and will be automatically retried.\n")
	}

	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility
func (e *TrellisError) Unwrap() error {
	return e.Cause
}

// Ontology Errors

// MalformedOntologyError indicates an ontology source could not be parsed
// into concepts. Fatal at startup.
type MalformedOntologyError struct {
	Source string
	Line   int
	Cause  error
}

func (e *MalformedOntologyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed ontology source %s at line %d: %v", e.Source, e.Line, e.Cause)
	}
	return fmt.Sprintf("malformed ontology source %s: %v", e.Source, e.Cause)
}

func (e *MalformedOntologyError) Unwrap() error { return e.Cause }

// DuplicateConceptError indicates two sources assigned the same identifier to
// conflicting labels. Fatal at startup.
type DuplicateConceptError struct {
	ConceptID     string
	ExistingLabel string
	NewLabel      string
	Source        string
}

func (e *DuplicateConceptError) Error() string {
	return fmt.Sprintf("duplicate concept %s in %s: label %q conflicts with previously indexed %q",
		e.ConceptID, e.Source, e.NewLabel, e.ExistingLabel)
}

// Ingestion Errors

// SourceUnreadableError indicates the tabular source cannot be read at all
// (corrupt file, unsupported format, missing header columns). Fatal for the run.
type SourceUnreadableError struct {
	Source string
	Cause  error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("source %s is unreadable: %v", e.Source, e.Cause)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Cause }

// RowValidationError indicates a single row failed schema validation.
// Row-scoped; the stream continues with the next row.
type RowValidationError struct {
	Row          int64
	MissingField string
	Cause        error
}

func (e *RowValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("row %d: %v", e.Row, e.Cause)
	}
	return fmt.Sprintf("row %d: required field %q is missing or empty", e.Row, e.MissingField)
}

func (e *RowValidationError) Unwrap() error { return e.Cause }

// SchemaViolationError indicates a mandatory coded field could not be
// resolved, so the resource is dropped. Resource-scoped.
type SchemaViolationError struct {
	Row     int64
	Field   string
	RawText string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("row %d: mandatory field %q could not be resolved (raw value %q)", e.Row, e.Field, e.RawText)
}

// Auth Errors

// AuthenticationError indicates the identity provider rejected our
// credentials or could not be reached past the retry policy. Fatal for the run.
type AuthenticationError struct {
	StatusCode int
	Cause      error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication failed (HTTP %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("authentication failed: %v", e.Cause)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// IsAuthenticationError reports whether err wraps an AuthenticationError
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// Constructors in the TrellisError style

// ErrServiceUnavailable creates an error for 5xx service errors
func ErrServiceUnavailable(serviceName string, statusCode int, cause error) *TrellisError {
	return &TrellisError{
		Category:   CategoryService,
		Message:    fmt.Sprintf("%s service is temporarily unavailable", serviceName),
		Cause:      cause,
		HTTPStatus: statusCode,
		Guidance: []string{
			"The service may be experiencing issues",
			"Wait a moment - automatic retry is in progress",
			fmt.Sprintf("Check %s service logs for errors", serviceName),
		},
		IsRetryable: true,
	}
}

// ErrInvalidConfig creates an error for configuration validation failures
func ErrInvalidConfig(field string, reason string) *TrellisError {
	return &TrellisError{
		Category: CategoryConfiguration,
		Message:  fmt.Sprintf("Invalid configuration: %s", reason),
		Guidance: []string{
			fmt.Sprintf("Check the '%s' field in your config file", field),
			"Compare with config/trellis.example.yaml for correct format",
		},
		IsRetryable: false,
	}
}

// ErrRunNotFound creates an error for missing run state
func ErrRunNotFound(runID string) *TrellisError {
	return &TrellisError{
		Category: CategoryState,
		Message:  fmt.Sprintf("Run '%s' not found", runID),
		Guidance: []string{
			"Check the run ID is correct",
			"Use 'trellis run list' to see all available runs",
			"The run may have been deleted",
		},
		IsRetryable: false,
	}
}

// ErrCorruptedRunState creates an error for invalid run state files
func ErrCorruptedRunState(runID string, cause error) *TrellisError {
	return &TrellisError{
		Category: CategoryState,
		Message:  fmt.Sprintf("Run state file for '%s' is corrupted", runID),
		Cause:    cause,
		Guidance: []string{
			"The run state file may have been manually edited or corrupted",
			"Check runs/<run-id>/state.json for syntax errors",
			"You may need to delete this run and start over",
		},
		IsRetryable: false,
	}
}

// WrapError wraps a standard error with TrellisError context
func WrapError(category ErrorCategory, message string, cause error, guidance ...string) *TrellisError {
	return &TrellisError{
		Category:    category,
		Message:     message,
		Cause:       cause,
		Guidance:    guidance,
		IsRetryable: IsNetworkError(cause),
	}
}
