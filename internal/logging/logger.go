package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

// Field name used for correlation IDs in every log entry.
const FieldCorrelationID = "correlation_id"

// maxFieldLength caps logged string values, in bytes.
const maxFieldLength = 500

// sensitivePatterns name fields whose values may carry user health data or
// credentials. Their values are replaced by a length marker.
var sensitivePatterns = []string{
	"symptom", "biomarker", "remark", "screen", "tracking", "user_input",
	"recommendation", "prompt", "completion", "api_key", "token", "secret",
}

// New creates a logrus logger configured from cfg, writing to stderr.
func New(cfg domain.LoggingConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput creates a logrus logger writing to out. The MCP shell needs
// this because stdout carries the protocol stream.
func NewWithOutput(cfg domain.LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return logger
}

// WithCorrelation returns a context carrying correlationID.
func WithCorrelation(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

// CorrelationID extracts the correlation ID from ctx, or returns a new one.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// FromContext returns an entry tagged with the request's correlation ID.
func FromContext(ctx context.Context, logger logrus.FieldLogger) *logrus.Entry {
	return logger.WithField(FieldCorrelationID, CorrelationID(ctx))
}

// Sanitize returns a copy of fields safe to log. Values of sensitive fields
// are replaced with their length.
func Sanitize(fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		out[k] = sanitizeField(k, v)
	}
	return out
}

func sanitizeField(key string, value interface{}) interface{} {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerKey, pattern) {
			if s, ok := value.(string); ok {
				return fmt.Sprintf("[REDACTED len=%d]", len(s))
			}
			return "[REDACTED]"
		}
	}

	if s, ok := value.(string); ok && len(s) > maxFieldLength {
		return truncate(s, maxFieldLength) + "... [TRUNCATED]"
	}
	return value
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
