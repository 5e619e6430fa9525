package daemon

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"localchat.dev/go/localchat/internal/config"
)

func TestLogBufferRing(t *testing.T) {
	b := NewLogBuffer(3)

	for i := 0; i < 5; i++ {
		b.Add(LogEntry{Level: "INFO", Message: fmt.Sprintf("msg-%d", i), Timestamp: time.Now()})
	}

	if b.Count() != 3 {
		t.Errorf("Count = %d, want 3", b.Count())
	}

	entries := b.Recent("", 0)
	if len(entries) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(entries))
	}
	// Oldest evicted, chronological order preserved.
	if entries[0].Message != "msg-2" || entries[2].Message != "msg-4" {
		t.Errorf("entries = %v", entries)
	}
}

func TestLogBufferLevelFilterAndLimit(t *testing.T) {
	b := NewLogBuffer(10)
	b.Add(LogEntry{Level: "DEBUG", Message: "d"})
	b.Add(LogEntry{Level: "INFO", Message: "i"})
	b.Add(LogEntry{Level: "WARN", Message: "w"})
	b.Add(LogEntry{Level: "ERROR", Message: "e"})

	warnUp := b.Recent("WARN", 0)
	if len(warnUp) != 2 {
		t.Fatalf("WARN filter returned %d entries, want 2", len(warnUp))
	}
	if warnUp[0].Message != "w" || warnUp[1].Message != "e" {
		t.Errorf("filtered entries = %v", warnUp)
	}

	limited := b.Recent("", 2)
	if len(limited) != 2 || limited[1].Message != "e" {
		t.Errorf("limited entries = %v", limited)
	}
}

func TestBufferedHandlerCaptures(t *testing.T) {
	buffer := NewLogBuffer(10)
	var out bytes.Buffer
	handler := NewBufferedHandler(buffer, slog.NewTextHandler(&out, nil))
	logger := slog.New(handler)

	logger.Info("peer discovered", "id", "Bob - BBBB2222")

	if buffer.Count() != 1 {
		t.Fatalf("buffer captured %d entries, want 1", buffer.Count())
	}
	entry := buffer.Recent("", 0)[0]
	if entry.Message != "peer discovered" || entry.Level != "INFO" {
		t.Errorf("captured entry = %+v", entry)
	}
	if entry.Fields["id"] != "Bob - BBBB2222" {
		t.Errorf("captured fields = %v", entry.Fields)
	}
	if !strings.Contains(out.String(), "peer discovered") {
		t.Error("entry did not pass through to the next handler")
	}
}

func TestBufferedHandlerWithAttrs(t *testing.T) {
	buffer := NewLogBuffer(10)
	handler := NewBufferedHandler(buffer, slog.NewTextHandler(&bytes.Buffer{}, nil))
	logger := slog.New(handler).With("component", "mdns")

	logger.Warn("browse failed")

	entry := buffer.Recent("", 0)[0]
	if entry.Fields["component"] != "mdns" {
		t.Errorf("With attrs lost: %v", entry.Fields)
	}
}

func TestNewLogHandlerLevels(t *testing.T) {
	var out bytes.Buffer
	handler := newLogHandler(&out, config.LoggingConfig{Level: "warn", Format: "text"})
	logger := slog.New(handler)

	logger.Info("hidden")
	logger.Warn("visible")

	if strings.Contains(out.String(), "hidden") {
		t.Error("info record passed a warn-level handler")
	}
	if !strings.Contains(out.String(), "visible") {
		t.Error("warn record was suppressed")
	}
}

func TestNewLogHandlerJSONFormat(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(newLogHandler(&out, config.LoggingConfig{Level: "info", Format: "json"}))
	logger.Info("structured")

	if !strings.HasPrefix(strings.TrimSpace(out.String()), "{") {
		t.Errorf("json format produced %q", out.String())
	}
}
