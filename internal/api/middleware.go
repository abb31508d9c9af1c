package api

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// processTime stamps the latency header just before the first byte is written.
func processTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &timedWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Writer = w
		c.Next()
		w.stamp()
	}
}

type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped || w.ResponseWriter.Written() {
		return
	}
	w.stamped = true
	ms := float64(time.Since(w.start).Microseconds()) / 1000
	w.ResponseWriter.Header().Set(HeaderProcessTime, fmt.Sprintf("%.2f", ms))
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func (w *timedWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "http_request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
