package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch dserrors.KindOf(err) {
	case dserrors.KindValidation:
		return http.StatusBadRequest
	case dserrors.KindEmbedding:
		return http.StatusBadGateway
	case dserrors.KindRetrieval:
		if dserrors.GetCode(err) == dserrors.ErrCodeRetrievalTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Errors outside the taxonomy are reported as
// internal without their message.
func writeError(c *gin.Context, err error) {
	detail := ErrorDetail{
		Code:    dserrors.ErrCodeInternal,
		Kind:    string(dserrors.KindInternal),
		Message: "internal error",
	}
	if e, ok := dserrors.As(err); ok {
		detail = ErrorDetail{Code: e.Code, Kind: string(e.Kind), Message: e.Message}
		if e.Branch != "" {
			detail.Message = e.Branch + " retrieval: " + e.Message
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(err), ErrorBody{Error: detail})
}
