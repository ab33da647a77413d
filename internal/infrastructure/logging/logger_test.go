package logging

import (
	"log/slog"
	"testing"

	"github.com/jmorrell/homedeck/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_DoesNotPanic(t *testing.T) {
	cfgs := []config.LoggingConfig{
		{Level: "debug", Format: "text", Output: "stdout"},
		{Level: "info", Format: "json", Output: "stderr"},
		{Level: "", Format: "", Output: ""},
	}

	for _, cfg := range cfgs {
		logger := New(cfg, "test")
		if logger == nil {
			t.Fatal("New() returned nil")
		}
		logger.Debug("debug message", "key", "value")
		logger.Info("info message")
	}
}

func TestWith_ReturnsNewLogger(t *testing.T) {
	base := Default()
	child := base.With("component", "test")

	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == base {
		t.Error("With() returned the same logger instance")
	}
	child.Info("message from child")
}
