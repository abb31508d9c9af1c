// Package api serves hybrid search over HTTP.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

const (
	// HeaderRequestID carries the request id, echoed or generated.
	HeaderRequestID = "X-Request-Id"

	// HeaderProcessTime carries the handler latency in milliseconds.
	HeaderProcessTime = "X-Process-Time-ms"
)

// Searcher runs one hybrid search.
type Searcher interface {
	Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error)
}

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	// ServiceName is reported by GET /.
	ServiceName string

	// DefaultTopN applies when top_n is absent.
	DefaultTopN int

	// CORSOrigins lists allowed browser origins. "*" allows any origin;
	// empty disables CORS handling.
	CORSOrigins []string
}

// NewRouter builds the gin engine serving GET / and GET /search.
func NewRouter(searcher Searcher, cfg RouterConfig) (*gin.Engine, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: searcher is required", search.ErrNilDependency)
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = search.DefaultTopN
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), processTime(), accessLog())

	if len(cfg.CORSOrigins) > 0 {
		corsCfg, err := corsConfig(cfg.CORSOrigins)
		if err != nil {
			return nil, err
		}
		r.Use(cors.New(corsCfg))
	}

	h := &handler{searcher: searcher, config: cfg}
	r.GET("/", h.health)
	r.GET("/search", h.search)
	return r, nil
}

// corsConfig validates origins up front; cors.New panics on bad input.
func corsConfig(origins []string) (cors.Config, error) {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID, HeaderProcessTime},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "*":
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			return cfg, nil
		case strings.HasPrefix(origin, "http://"), strings.HasPrefix(origin, "https://"):
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		default:
			return cors.Config{}, fmt.Errorf("invalid CORS origin %q: must start with http:// or https://", origin)
		}
	}
	return cfg, nil
}
