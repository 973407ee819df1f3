package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type testCodedError struct{}

func (testCodedError) Error() string     { return "boom" }
func (testCodedError) ErrorCode() string { return "TEST_CODE" }

func TestLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Output: &buf,
		Level:  LevelDebug,
	})

	ctx := context.Background()
	log.Info(ctx, "test message", Fields{
		"key": "value",
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("expected level info, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("expected message 'test message', got %s", entry.Message)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("expected field key=value, got %v", entry.Fields["key"])
	}
}

func TestLogger_RequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Output: &buf,
		Level:  LevelDebug,
	})

	ctx := WithRequestID(context.Background(), "test-request-id")
	log.Info(ctx, "test message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.RequestID != "test-request-id" {
		t.Errorf("expected request_id 'test-request-id', got %s", entry.RequestID)
	}
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		minLevel     Level
		logLevel     string
		shouldOutput bool
	}{
		{LevelInfo, "debug", false},
		{LevelInfo, "info", true},
		{LevelWarn, "info", false},
		{LevelWarn, "warn", true},
		{LevelError, "warn", false},
		{LevelError, "error", true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(&Config{
			Output: &buf,
			Level:  tt.minLevel,
		})

		ctx := context.Background()
		switch tt.logLevel {
		case "debug":
			log.Debug(ctx, "msg")
		case "info":
			log.Info(ctx, "msg")
		case "warn":
			log.Warn(ctx, "msg")
		case "error":
			log.Error(ctx, "msg", nil)
		}

		if got := buf.Len() > 0; got != tt.shouldOutput {
			t.Errorf("min=%s log=%s: output=%v, want %v", tt.minLevel, tt.logLevel, got, tt.shouldOutput)
		}
	}
}

func TestLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Output: &buf, Level: LevelDebug}).WithComponent("store")

	log.Error(context.Background(), "write failed", testCodedError{})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.Component != "store" {
		t.Errorf("expected component store, got %q", entry.Component)
	}
	if entry.Error == nil || entry.Error.Code != "TEST_CODE" || entry.Error.Message != "boom" {
		t.Errorf("unexpected error details: %+v", entry.Error)
	}
	if !strings.Contains(entry.Caller, "logger_test.go") {
		t.Errorf("expected caller to point at the test file, got %q", entry.Caller)
	}
}

func TestLogger_PlainErrorHasNoCode(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Output: &buf, Level: LevelDebug})

	log.Error(context.Background(), "failed", errors.New("plain"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.Error.Code != "" {
		t.Errorf("expected empty code, got %q", entry.Error.Code)
	}
}

func TestRedactor_SensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Output: &buf, Level: LevelDebug})

	log.Info(context.Background(), "issued", Fields{
		"accessToken":   "eyJhbGciOi",
		"Authorization": "Bearer abc",
		"email":         "max.muster@igs-buchholz.de",
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.Fields["accessToken"] != "[REDACTED]" {
		t.Errorf("expected accessToken redacted, got %v", entry.Fields["accessToken"])
	}
	if entry.Fields["Authorization"] != "[REDACTED]" {
		t.Errorf("expected Authorization redacted, got %v", entry.Fields["Authorization"])
	}
	if entry.Fields["email"] != "max.muster@igs-buchholz.de" {
		t.Errorf("expected email kept, got %v", entry.Fields["email"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
