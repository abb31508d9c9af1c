package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type handler struct {
	searcher Searcher
	config   RouterConfig
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: h.config.ServiceName})
}

// search serves GET /search?query=&top_n=&document_type=.
func (h *handler) search(c *gin.Context) {
	topN := h.config.DefaultTopN
	if raw, ok := c.GetQuery("top_n"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			writeError(c, dserrors.ValidationError(dserrors.ErrCodeInvalidTopN,
				"top_n must be a positive integer, got "+strconv.Quote(raw)))
			return
		}
		// Non-positive values are rejected by the engine.
		topN = n
	}

	results, err := h.searcher.Search(c.Request.Context(), search.SearchRequest{
		Query:        c.Query("query"),
		TopN:         topN,
		DocumentType: c.Query("document_type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
