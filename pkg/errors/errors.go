// Package errors defines the error taxonomy for the payment import service.
//
// Errors carry a category, a specific code, an optional suggestion for the
// operator, and structured context. Categories map to process exit codes so
// the CLI can signal the failure class to calling scripts.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryImport        ErrorCategory = "import"
	CategoryStorage       ErrorCategory = "storage"
)

// ErrorCode represents specific error codes within categories.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeMissingField  ErrorCode = "missing_field"

	// Validation errors
	CodeInvalidAction   ErrorCode = "invalid_action"
	CodeInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Import errors
	CodeDuplicatePayment ErrorCode = "duplicate_payment"
	CodeInvoiceNotFound  ErrorCode = "invoice_not_found"
	CodeProcessingError  ErrorCode = "processing_error"

	// Storage errors
	CodeQueryFailed       ErrorCode = "query_failed"
	CodeTransactionFailed ErrorCode = "transaction_failed"
)

// ImporterError is the base error type for all application errors.
type ImporterError struct {
	Category   ErrorCategory `json:"category"`
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
	Context    Context       `json:"context,omitempty"`
	Cause      error         `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *ImporterError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *ImporterError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate process exit code for the error.
func (e *ImporterError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryImport, CategoryStorage:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *ImporterError) WithContext(key string, value interface{}) *ImporterError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *ImporterError) WithSuggestion(suggestion string) *ImporterError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ImporterError.
func New(category ErrorCategory, code ErrorCode, message string) *ImporterError {
	return &ImporterError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap wraps an existing error with ImporterError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ImporterError {
	if err == nil {
		return nil
	}

	return &ImporterError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    errors.WithStack(err),
	}
}

// Specific error constructors

// FileError creates a file-related error.
func FileError(code ErrorCode, path string, err error) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := New(CategoryFile, code, message)
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a CSV line.
func ParseError(code ErrorCode, line int, field, value string, err error) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount at line %d: '%s'", line, value)
		suggestion = "ensure amounts are numeric, optionally with currency symbols and separators"
	case CodeMissingField:
		message = fmt.Sprintf("missing required field '%s' at line %d", field, line)
		suggestion = "check that the selected bank format matches the file layout"
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format at line %d, field '%s': '%s'", line, field, value)
		suggestion = "check the data format and the configured bank format"
	default:
		message = fmt.Sprintf("parse error at line %d", line)
		suggestion = "check the file format and data integrity"
	}

	result := New(CategoryParse, code, message)
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("line", line).
		WithContext("field", field).
		WithContext("value", value)
}

// ValidationError creates a validation-related error.
func ValidationError(code ErrorCode, field string, value interface{}) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeInvalidAction:
		message = fmt.Sprintf("invalid action '%v' for field '%s'", value, field)
		suggestion = "use one of: skip, create_pending, refund"
	case CodeInvalidArgument:
		message = fmt.Sprintf("invalid value for '%s': %v", field, value)
		suggestion = "check the argument value and format"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value"
	}

	return New(CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := New(CategoryConfiguration, code, message)
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ImportError creates an import-related error.
func ImportError(code ErrorCode, operation string, err error) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeDuplicatePayment:
		message = fmt.Sprintf("a completed payment already exists during %s", operation)
		suggestion = "the invoice is already settled; no second payment will be created"
	case CodeInvoiceNotFound:
		message = fmt.Sprintf("invoice not found during %s", operation)
		suggestion = "verify the invoice ID and the selected year"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the import data and try again"
	default:
		message = fmt.Sprintf("import error during %s", operation)
		suggestion = "review the data and configuration"
	}

	result := New(CategoryImport, code, message)
	if err != nil {
		result = Wrap(err, CategoryImport, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// StorageError creates a persistence-related error.
func StorageError(code ErrorCode, operation string, err error) *ImporterError {
	var message, suggestion string

	switch code {
	case CodeQueryFailed:
		message = fmt.Sprintf("query failed during %s", operation)
		suggestion = "check database availability and schema"
	case CodeTransactionFailed:
		message = fmt.Sprintf("database transaction failed during %s", operation)
		suggestion = "the write was rolled back; re-running the import is safe"
	default:
		message = fmt.Sprintf("storage error during %s", operation)
		suggestion = "check the database and try again"
	}

	result := New(CategoryStorage, code, message)
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// Utility functions

// IsImporterError checks if an error is an ImporterError.
func IsImporterError(err error) bool {
	_, ok := err.(*ImporterError)
	return ok
}

// AsImporterError extracts an ImporterError from an error chain.
func AsImporterError(err error) (*ImporterError, bool) {
	var importerErr *ImporterError
	if errors.As(err, &importerErr) {
		return importerErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	if importerErr, ok := AsImporterError(err); ok {
		return importerErr.Code == code
	}
	return false
}

// WrapIfNeeded wraps an error if it is not already an ImporterError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ImporterError {
	if err == nil {
		return nil
	}

	if importerErr, ok := AsImporterError(err); ok {
		return importerErr
	}

	return Wrap(err, category, code, message)
}
