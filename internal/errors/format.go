package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ae, ok := As(err)
	if !ok {
		ae = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", ae.Message))

	if ae.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ae.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ae.Code))

	return sb.String()
}

// LogAttrs returns slog attributes describing err for structured logging.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	ae, ok := As(err)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", ae.Code),
		slog.String("error_kind", string(ae.Kind)),
		slog.String("message", ae.Message),
		slog.Bool("retryable", ae.Retryable),
	}
	if ae.Branch != "" {
		attrs = append(attrs, slog.String("branch", ae.Branch))
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}

	keys := make([]string, 0, len(ae.Details))
	for k := range ae.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, ae.Details[k]))
	}

	return attrs
}
