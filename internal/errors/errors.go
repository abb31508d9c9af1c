package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for docsearch.
// Every failure that reaches a serving layer carries a Kind so callers
// can tell bad input from a broken embedder or an unavailable index.
type Error struct {
	// Code is the unique error code (e.g., "ERR_202_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Kind is the error kind (Validation, Embedding, Retrieval, etc.).
	Kind Kind

	// Severity is the error severity level.
	Severity Severity

	// Branch is the retrieval branch that failed ("lexical" or "vector"), if any.
	Branch string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Kind sentinels for errors.Is matching regardless of code.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation error"}
	ErrEmbedding  = &Error{Kind: KindEmbedding, Message: "embedding error"}
	ErrRetrieval  = &Error{Kind: KindRetrieval, Message: "retrieval error"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("[%s] %s retrieval: %s", e.Code, e.Branch, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, or by kind when the target carries no code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return e.Code == t.Code
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// WithBranch records the retrieval branch the error came from.
func (e *Error) WithBranch(branch string) *Error {
	e.Branch = branch
	return e
}

// New creates an Error with the given code and message.
// Kind, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Kind:      kindFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a request validation error.
func ValidationError(code, message string) *Error {
	if kindFromCode(code) != KindValidation {
		code = ErrCodeInvalidInput
	}
	return New(code, message, nil)
}

// EmbeddingError creates an embedding error. The request must fail;
// there is no lexical-only fallback.
func EmbeddingError(message string, cause error) *Error {
	if ae, ok := As(cause); ok && ae.Kind == KindEmbedding {
		return ae
	}
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// RetrievalError creates a retrieval error for the given branch.
func RetrievalError(code, branch, message string, cause error) *Error {
	if kindFromCode(code) != KindRetrieval {
		code = ErrCodeRetrievalFailed
	}
	return New(code, message, cause).WithBranch(branch)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not an *Error.
func GetCode(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}
