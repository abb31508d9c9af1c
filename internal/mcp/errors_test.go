package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_SearchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", dserrors.ValidationError(dserrors.ErrCodeQueryEmpty, "query must not be empty"), ErrCodeInvalidParams},
		{"embedding", dserrors.EmbeddingError("embedder down", nil), ErrCodeEmbeddingFailed},
		{"timeout", dserrors.RetrievalError(dserrors.ErrCodeRetrievalTimeout, dserrors.BranchVector, "timed out", nil), ErrCodeTimeout},
		{"backend", dserrors.RetrievalError(dserrors.ErrCodeBackendUnavailable, dserrors.BranchLexical, "down", nil), ErrCodeBackendUnavailable},
		{"config", dserrors.ConfigError("bad config", nil), ErrCodeInternalError},
		{"wrapped", fmt.Errorf("outer: %w", dserrors.ValidationError(dserrors.ErrCodeInvalidTopN, "bad top_n")), ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)

			assert.Equal(t, tt.code, mapped.Code)
		})
	}
}

func TestMapError_MessageCarriesCodeAndSuggestion(t *testing.T) {
	err := dserrors.ValidationError(dserrors.ErrCodeQueryEmpty, "query must not be empty").
		WithSuggestion("Provide search text")

	mapped := MapError(err)

	assert.Contains(t, mapped.Message, dserrors.ErrCodeQueryEmpty)
	assert.Contains(t, mapped.Message, "Provide search text")
}

func TestMapError_ContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapError_UnknownHidesDetail(t *testing.T) {
	mapped := MapError(errors.New("password=hunter2"))

	assert.Equal(t, ErrCodeInternalError, mapped.Code)
	assert.NotContains(t, mapped.Message, "hunter2")
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("bad")

	assert.Same(t, orig, MapError(orig))
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad"}

	assert.Equal(t, "MCP error -32602: bad", err.Error())
}
