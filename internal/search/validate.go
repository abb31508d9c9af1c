package search

import (
	"fmt"
	"strings"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// AllDocumentTypes is the filter value that disables document type filtering.
const AllDocumentTypes = "All"

// validatedRequest is a SearchRequest after normalization.
type validatedRequest struct {
	query        string
	topN         int
	documentType store.DocumentType // empty means no filter
}

// validateRequest rejects malformed requests before any backend call.
func validateRequest(req SearchRequest, allowed []store.DocumentType) (validatedRequest, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return validatedRequest{}, dserrors.ValidationError(dserrors.ErrCodeQueryEmpty, "query must not be empty").
			WithSuggestion("Provide search text in the query parameter")
	}
	if req.TopN <= 0 {
		return validatedRequest{}, dserrors.ValidationError(dserrors.ErrCodeInvalidTopN,
			fmt.Sprintf("top_n must be a positive integer, got %d", req.TopN))
	}

	docType, err := ParseDocumentType(req.DocumentType, allowed)
	if err != nil {
		return validatedRequest{}, err
	}

	return validatedRequest{query: query, topN: req.TopN, documentType: docType}, nil
}

// ParseDocumentType resolves a filter value case-insensitively. Empty and
// "All" return the empty type, meaning no filter.
func ParseDocumentType(name string, allowed []store.DocumentType) (store.DocumentType, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, AllDocumentTypes) {
		return "", nil
	}

	t, ok := store.LookupDocumentType(name, allowed)
	if !ok {
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return "", dserrors.ValidationError(dserrors.ErrCodeUnknownDocumentType,
			fmt.Sprintf("unknown document_type %q", name)).
			WithDetail("allowed", strings.Join(names, ",")).
			WithSuggestion("Use one of: " + strings.Join(names, ", ") + ", or All")
	}
	return t, nil
}
