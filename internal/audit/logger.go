package audit

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)
	keyValuePattern    = regexp.MustCompile(`(?i)\b(token|secret|password|authorization|credential)\s*[:=]\s*([^\s,;]+)`)
)

// Logger emits one structured audit entry per dispatch attempt.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a log-backed audit sink.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record implements Sink.
func (l *Logger) Record(attempt Attempt) {
	if l == nil {
		return
	}

	result := strings.TrimSpace(attempt.Result)
	if result == "" {
		result = "error"
	}
	tool := strings.TrimSpace(attempt.Tool)
	if tool == "" {
		tool = "unknown"
	}

	entry := l.logger.Info().
		Str("event", "toolgate.dispatch.completed").
		Str("tool", tool).
		Str("service", strings.TrimSpace(attempt.Service)).
		Str("method", strings.TrimSpace(attempt.Method)).
		Str("target_url", strings.TrimSpace(attempt.TargetURL)).
		Str("session_id", strings.TrimSpace(attempt.SessionID)).
		Str("user_agent", strings.TrimSpace(attempt.UserAgent)).
		Str("result", result).
		Int64("duration_ms", max(attempt.Elapsed.Milliseconds(), 0))

	if attempt.StatusCode > 0 {
		entry = entry.Int("status_code", attempt.StatusCode)
	}
	if redacted := RedactSensitiveText(attempt.ErrorDetail); redacted != "" {
		entry = entry.Str("error_detail", redacted)
	}

	entry.Msg("dispatch completed")
}

// RedactSensitiveText removes obvious secrets from free-text error details.
func RedactSensitiveText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	redacted := bearerTokenPattern.ReplaceAllString(trimmed, "Bearer [REDACTED]")
	redacted = keyValuePattern.ReplaceAllStringFunc(redacted, func(match string) string {
		parts := strings.SplitN(match, ":", 2)
		if len(parts) == 2 {
			return fmt.Sprintf("%s: [REDACTED]", strings.TrimSpace(parts[0]))
		}
		parts = strings.SplitN(match, "=", 2)
		if len(parts) == 2 {
			return fmt.Sprintf("%s=[REDACTED]", strings.TrimSpace(parts[0]))
		}
		return "[REDACTED]"
	})
	return redacted
}
