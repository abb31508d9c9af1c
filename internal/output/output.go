// Package output formats docsearch CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[90m"
	colorGreen = "\033[32m"
)

// previewLines is the number of chunk text lines shown per result.
const previewLines = 3

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer. Colour is enabled only when out is a terminal
// and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: isTerminal(out) && os.Getenv("NO_COLOR") == ""}
}

// NewPlain creates a Writer that never emits colour.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

// UseColor reports whether the writer emits ANSI colour.
func (w *Writer) UseColor() bool {
	return w.useColor
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Results prints ranked search results with a short text preview.
func (w *Writer) Results(query string, results []search.SearchResult) {
	if len(results) == 0 {
		w.Status("", fmt.Sprintf("No results found for %q", query))
		return
	}

	w.Statusf("🔍", "Found %d results for %q:", len(results), query)
	w.Newline()

	for i, r := range results {
		heading := fmt.Sprintf("%d. %s", i+1, w.paint(colorBold, r.Title))
		score := w.paint(colorGreen, fmt.Sprintf("rrf: %.4f", r.RRFScore))
		w.Status("", fmt.Sprintf("%s (%s)", heading, score))
		w.Status("", w.paint(colorDim, fmt.Sprintf("   %s | %s #%d", r.DocumentType, r.DocID, r.ChunkIndex)))
		if r.ChunkURL != "" {
			w.Status("", w.paint(colorDim, "   "+r.ChunkURL))
		}

		text := r.Snippet
		if text == "" {
			text = r.ChunkText
		}
		for _, line := range preview(text, previewLines) {
			w.Status("", "   "+line)
		}
		w.Newline()
	}
}

func (w *Writer) paint(color, s string) string {
	if !w.useColor {
		return s
	}
	return color + s + colorReset
}

// preview returns the first n non-empty lines of text.
func preview(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}
