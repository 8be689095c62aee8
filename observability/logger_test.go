package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLogger(t *testing.T) {
	for _, production := range []bool{false, true} {
		Logger = nil
		InitLogger(production)
		if Logger == nil {
			t.Errorf("Logger is nil after InitLogger(%v)", production)
		}
	}
}

func TestInitLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, true, slog.LevelInfo)

	Info("report generated", "size", 1024)

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Errorf("production output = %q, want JSON", out)
	}
	if !strings.Contains(out, `"size":1024`) {
		t.Errorf("production output missing size field: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, false, slog.LevelDebug)

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		Info("fetching prices", "tickers", 2)
		if !strings.Contains(buf.String(), "fetching prices") {
			t.Error("Info should log the message")
		}
		if !strings.Contains(buf.String(), "tickers=2") {
			t.Error("Info should log the key-value pair")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		buf.Reset()
		Warn("dividend lookup failed")
		if !strings.Contains(buf.String(), "WARN") {
			t.Error("Warn should log at WARN level")
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		Error("report failed")
		if !strings.Contains(buf.String(), "ERROR") {
			t.Error("Error should log at ERROR level")
		}
	})

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		Debug("resolved ticker")
		if !strings.Contains(buf.String(), "DEBUG") {
			t.Error("Debug should log at DEBUG level")
		}
	})
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, false, slog.LevelWarn)

	Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info message logged at warn level: %q", buf.String())
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, false, slog.LevelInfo)

	WithSymbol("AAPL").Info("fetched")
	if !strings.Contains(buf.String(), "symbol=AAPL") {
		t.Errorf("WithSymbol output = %q", buf.String())
	}

	buf.Reset()
	WithAnalysis("abc-123").Info("done")
	if !strings.Contains(buf.String(), "analysis_id=abc-123") {
		t.Errorf("WithAnalysis output = %q", buf.String())
	}

	buf.Reset()
	WithError(errors.New("boom")).Warn("failed")
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("WithError output = %q", buf.String())
	}
}
