// Package mcp serves hybrid search as a Model Context Protocol tool.
package mcp

import (
	"context"
	"errors"
	"fmt"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeEmbeddingFailed indicates the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates a retrieval branch timed out.
	ErrCodeTimeout = -32003

	// ErrCodeBackendUnavailable indicates a retrieval backend failed.
	ErrCodeBackendUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a search error to an MCP error.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	if e, ok := dserrors.As(err); ok {
		return mapSearchError(e)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapSearchError(e *dserrors.Error) *MCPError {
	message := e.Error()
	if e.Suggestion != "" {
		message += " " + e.Suggestion
	}

	switch e.Kind {
	case dserrors.KindValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case dserrors.KindEmbedding:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case dserrors.KindRetrieval:
		if e.Code == dserrors.ErrCodeRetrievalTimeout {
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		}
		return &MCPError{Code: ErrCodeBackendUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
