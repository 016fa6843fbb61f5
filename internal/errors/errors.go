// Package errors provides structured error types for SQL Observer.
// Every failure carries a category, code, message, and retryable flag so
// callers can tell parse failures, fetch failures, and empty results apart.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryQuery    ErrorCategory = "QUERY"
	ErrCategoryFetch    ErrorCategory = "FETCH"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Query codes
	CodeEmptyQuery    = "EMPTY_QUERY"
	CodeMissingClause = "MISSING_CLAUSE"
	CodeUnknownTable  = "UNKNOWN_TABLE"
	CodeUnknownField  = "UNKNOWN_FIELD"

	// Fetch codes
	CodeFetchFailed       = "FETCH_FAILED"
	CodeBadStatus         = "BAD_STATUS"
	CodeDecodeFailed      = "DECODE_FAILED"
	CodeNonUniformDataset = "NON_UNIFORM_DATASET"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Detail keys used by the query failure constructors.
const (
	DetailClause = "clause"
	DetailTable  = "table"
	DetailField  = "field"
	DetailFields = "fields"
	DetailStatus = "status"
)

// ObserverError is the structured error type used throughout the system.
type ObserverError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ObserverError) Is(target error) bool {
	var t *ObserverError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new ObserverError.
func New(category ErrorCategory, code, message string) *ObserverError {
	return &ObserverError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new ObserverError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *ObserverError {
	return &ObserverError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ObserverError) WithDetails(details map[string]interface{}) *ObserverError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithRetryable returns a copy of the error with the retryable flag set.
func (e *ObserverError) WithRetryable(retryable bool) *ObserverError {
	cp := *e
	cp.Retryable = retryable
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var oe *ObserverError
	if errors.As(err, &oe) {
		return oe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an ObserverError.
func GetCategory(err error) ErrorCategory {
	var oe *ObserverError
	if errors.As(err, &oe) {
		return oe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an ObserverError.
func GetCode(err error) string {
	var oe *ObserverError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// GetDetail returns a string detail of an error chain, or "" if absent.
func GetDetail(err error, key string) string {
	var oe *ObserverError
	if errors.As(err, &oe) {
		if v, ok := oe.Details[key].(string); ok {
			return v
		}
	}
	return ""
}

// IsParseFailure reports whether err was produced by query validation.
func IsParseFailure(err error) bool {
	return GetCategory(err) == ErrCategoryQuery
}

// IsFetchFailure reports whether err was produced while retrieving the dataset.
func IsFetchFailure(err error) bool {
	return GetCategory(err) == ErrCategoryFetch
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryFetch && code == CodeFetchFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Query failures.

func EmptyQuery() *ObserverError {
	return New(ErrCategoryQuery, CodeEmptyQuery, "query is empty")
}

func MissingClause(clause string) *ObserverError {
	return New(ErrCategoryQuery, CodeMissingClause, fmt.Sprintf("missing %q clause", clause)).
		WithDetails(map[string]interface{}{DetailClause: clause})
}

// MisplacedClause is a MissingClause failure for a keyword that is present
// but not where the grammar expects it.
func MisplacedClause(clause, reason string) *ObserverError {
	return New(ErrCategoryQuery, CodeMissingClause, fmt.Sprintf("misplaced %q clause: %s", clause, reason)).
		WithDetails(map[string]interface{}{DetailClause: clause})
}

func UnknownTable(name string) *ObserverError {
	return New(ErrCategoryQuery, CodeUnknownTable, fmt.Sprintf("unknown table %q", name)).
		WithDetails(map[string]interface{}{DetailTable: name})
}

// UnknownField names the first offending token and lists all of them.
func UnknownField(tokens ...string) *ObserverError {
	first := ""
	if len(tokens) > 0 {
		first = tokens[0]
	}
	msg := fmt.Sprintf("unknown field %q", first)
	if len(tokens) > 1 {
		quoted := make([]string, len(tokens))
		for i, tok := range tokens {
			quoted[i] = fmt.Sprintf("%q", tok)
		}
		msg = fmt.Sprintf("unknown fields %s", strings.Join(quoted, ", "))
	}
	return New(ErrCategoryQuery, CodeUnknownField, msg).
		WithDetails(map[string]interface{}{DetailField: first, DetailFields: tokens})
}

// Fetch failures.

func NewFetchError(code, message string, cause error) *ObserverError {
	return Wrap(ErrCategoryFetch, code, message, cause)
}

// FetchFailure is the generic transport failure; it is retryable.
func FetchFailure(detail string, cause error) *ObserverError {
	return Wrap(ErrCategoryFetch, CodeFetchFailed, detail, cause)
}

// BadStatus reports an unexpected HTTP status from the data source.
// Server errors and throttling are retryable.
func BadStatus(status int, body string) *ObserverError {
	msg := fmt.Sprintf("unexpected status %d", status)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return New(ErrCategoryFetch, CodeBadStatus, msg).
		WithDetails(map[string]interface{}{DetailStatus: status}).
		WithRetryable(status >= 500 || status == 429)
}

// Convenience constructors for the remaining categories.

func NewStorageError(code, message string, cause error) *ObserverError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(message string) *ObserverError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *ObserverError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
