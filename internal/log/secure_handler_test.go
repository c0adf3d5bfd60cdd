package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSecureHandlerRedactsSensitiveKeys tests key-based redaction.
func TestSecureHandlerRedactsSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"authorization header", "authorization", "Bearer secret-token"},
		{"cookie", "cookie", "session=abc123"},
		{"uppercase key", "Authorization", "Basic dXNlcjpwYXNz"},
		{"basic auth password", "basic_auth_pass", "hunter2"},
		{"api key", "api_key", "sk-12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, slog.LevelDebug)

			logger.Info("request", tt.key, tt.value)

			output := buf.String()
			if strings.Contains(output, tt.value) {
				t.Errorf("output leaked sensitive value %q: %s", tt.value, output)
			}
			if !strings.Contains(output, MaskValue) {
				t.Errorf("expected mask %q in output: %s", MaskValue, output)
			}
		})
	}
}

// TestSecureHandlerRedactsSensitivePatterns tests value-based redaction.
func TestSecureHandlerRedactsSensitivePatterns(t *testing.T) {
	t.Parallel()

	values := []string{
		"Bearer eyJtoken",
		"Basic dXNlcjpwYXNz",
		"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.abc123",
	}

	for _, value := range values {
		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, slog.LevelDebug)

		logger.Info("probe", "header_value", value)

		if strings.Contains(buf.String(), value) {
			t.Errorf("output leaked credential-shaped value %q", value)
		}
	}
}

// TestSecureHandlerKeepsNormalAttrs verifies non-sensitive data passes through.
func TestSecureHandlerKeepsNormalAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, slog.LevelDebug)

	logger.Info("page fetched", "url", "https://example.com/page", "status", 200)

	output := buf.String()
	if !strings.Contains(output, "https://example.com/page") {
		t.Errorf("expected URL in output: %s", output)
	}
	if !strings.Contains(output, "200") {
		t.Errorf("expected status in output: %s", output)
	}
}

// TestSecureHandlerWithAttrs verifies redaction applies to pre-bound attrs.
func TestSecureHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, slog.LevelDebug)

	bound := logger.With("cookie", "session=secret")
	bound.Info("request")

	if strings.Contains(buf.String(), "session=secret") {
		t.Error("output leaked value bound via With")
	}
}

// TestSecureHandlerRedactsGroups verifies redaction recurses into groups.
func TestSecureHandlerRedactsGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, slog.LevelDebug)

	logger.Info("request", slog.Group("http", slog.String("cookie", "session=secret")))

	if strings.Contains(buf.String(), "session=secret") {
		t.Error("output leaked value inside group")
	}
}

// TestSecureHandlerLevel verifies level filtering delegates correctly.
func TestSecureHandlerLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, slog.LevelWarn)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug record to be suppressed, got: %s", buf.String())
	}

	logger.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected warn record to pass through")
	}
}
