// Package errors provides the structured error taxonomy for docsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Validation errors (rejected before any backend call)
//   - 3XX: Embedding errors (query could not be converted to a vector)
//   - 4XX: Retrieval errors (lexical or vector backend failed)
//   - 5XX: Internal errors
package errors

// Kind classifies an error for callers that need to react differently
// to bad input, a broken embedder, or an unavailable index.
type Kind string

const (
	// KindConfig indicates invalid or unreadable configuration.
	KindConfig Kind = "CONFIG"
	// KindValidation indicates a malformed search request.
	KindValidation Kind = "VALIDATION"
	// KindEmbedding indicates the query could not be embedded.
	KindEmbedding Kind = "EMBEDDING"
	// KindRetrieval indicates a lexical or vector backend failure.
	KindRetrieval Kind = "RETRIEVAL"
	// KindInternal indicates an unexpected internal failure.
	KindInternal Kind = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates a failure that retrying cannot fix.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a transient failure.
	SeverityWarning Severity = "WARNING"
)

// Branch names a retrieval branch.
const (
	BranchLexical = "lexical"
	BranchVector  = "vector"
)

// Error codes organized by kind.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Validation errors (200-299)
	ErrCodeInvalidInput        = "ERR_201_INVALID_INPUT"
	ErrCodeQueryEmpty          = "ERR_202_QUERY_EMPTY"
	ErrCodeInvalidTopN         = "ERR_203_INVALID_TOP_N"
	ErrCodeUnknownDocumentType = "ERR_204_UNKNOWN_DOCUMENT_TYPE"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeEmbedderUnavailable = "ERR_302_EMBEDDER_UNAVAILABLE"
	ErrCodeEmbeddingEmptyText  = "ERR_303_EMBEDDING_EMPTY_TEXT"

	// Retrieval errors (400-499)
	ErrCodeRetrievalFailed    = "ERR_401_RETRIEVAL_FAILED"
	ErrCodeRetrievalTimeout   = "ERR_402_RETRIEVAL_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_403_BACKEND_UNAVAILABLE"
	ErrCodeDimensionMismatch  = "ERR_404_DIMENSION_MISMATCH"
	ErrCodeMalformedQuery     = "ERR_405_MALFORMED_QUERY"
	ErrCodeRetrievalCancelled = "ERR_406_RETRIEVAL_CANCELLED"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeIndexFailed = "ERR_502_INDEX_FAILED"
)

// kindFromCode extracts the kind from the numeric portion of a code.
func kindFromCode(code string) Kind {
	if len(code) < 7 {
		return KindInternal
	}

	// "2" from "ERR_202_QUERY_EMPTY"
	switch code[4] {
	case '1':
		return KindConfig
	case '2':
		return KindValidation
	case '3':
		return KindEmbedding
	case '4':
		return KindRetrieval
	default:
		return KindInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDimensionMismatch, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether a code describes a transient failure.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRetrievalTimeout, ErrCodeBackendUnavailable, ErrCodeEmbedderUnavailable:
		return true
	default:
		return false
	}
}
