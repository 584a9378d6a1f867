package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTerminalHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

	ts := time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelWarn, "row failed", 0)
	r.AddAttrs(slog.String("property_id", "P-17"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	want := "10:30:45.123 WRN row failed property_id=P-17\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestTerminalHandler_Levels(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

			r := slog.NewRecord(time.Now(), tt.level, "msg", 0)
			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error: %v", err)
			}

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestTerminalHandler_ColourOnlyWhenEnabled(t *testing.T) {
	var plain, coloured bytes.Buffer
	r := slog.NewRecord(time.Now(), slog.LevelError, "fail", 0)

	_ = newTerminalHandler(&plain, nil, false).Handle(context.Background(), r)
	_ = newTerminalHandler(&coloured, nil, true).Handle(context.Background(), r)

	if strings.Contains(plain.String(), "\033[") {
		t.Errorf("expected no escape codes, got: %q", plain.String())
	}
	if !strings.Contains(coloured.String(), ansiRed) {
		t.Error("expected red colour for ERROR level")
	}
	if !strings.Contains(coloured.String(), ansiBold) {
		t.Error("expected bold for message")
	}
}

func TestTerminalHandler_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
}

func TestTerminalHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newTerminalHandler(&buf, nil, false).
		WithAttrs([]slog.Attr{slog.String("component", "ingest")}).
		WithGroup("row")

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "processed", 0)
	r.AddAttrs(slog.Int("index", 3))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "component=ingest") {
		t.Errorf("expected component attr, got: %s", output)
	}
	if !strings.Contains(output, "row.index=3") {
		t.Errorf("expected grouped attr row.index, got: %s", output)
	}
}

func TestTerminalHandler_QuotesAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, nil, false))

	logger.Info("x", "title", "Sea View", "empty", "", "error", errors.New("boom now"))

	output := buf.String()
	for _, want := range []string{`title="Sea View"`, `empty=""`, `error="boom now"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}
