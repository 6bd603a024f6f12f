package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_DefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	logger.Debug("scope opened")
	if got := buf.Len(); got != 0 {
		t.Fatalf("expected debug output to be suppressed, got %d bytes", got)
	}

	logger.Info("lint finished")
	if out := buf.String(); !strings.Contains(out, "lint finished") {
		t.Fatalf("expected info log to contain message, got %q", out)
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Verbose: true, Writer: &buf})

	logger.Debug("transform applied", "kind", "references.dangling")
	out := buf.String()
	if !strings.Contains(out, "transform applied") || !strings.Contains(out, "kind=references.dangling") {
		t.Fatalf("expected debug output when verbose, got %q", out)
	}
}

func TestNew_JSONWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Format: FormatJSON, RunID: "abc-123"})

	logger.Info("file linted", "path", "README.rst")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["run_id"] != "abc-123" {
		t.Errorf("run_id = %v, want abc-123", line["run_id"])
	}
	if line["path"] != "README.rst" {
		t.Errorf("path = %v, want README.rst", line["path"])
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "TEXT", want: FormatText},
		{in: " json ", want: FormatJSON},
		{in: "xml", want: FormatText, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlogAdapter(t *testing.T) {
	t.Run("levels", func(t *testing.T) {
		var buf bytes.Buffer
		slogLogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		logger := NewSlogAdapter(slogLogger)

		logger.Debug("debug message", "key", "value")
		logger.Info("info message", "count", 42)
		logger.Warn("warn message")
		logger.Error("error message", "err", "something failed")

		output := buf.String()
		for _, want := range []string{"debug message", "key=value", "info message", "warn message", "error message"} {
			if !strings.Contains(output, want) {
				t.Errorf("output = %q, want to contain %q", output, want)
			}
		}
	})

	t.Run("with attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))

		child := logger.With("component", "lint")
		child.Info("message")

		if output := buf.String(); !strings.Contains(output, "component=lint") {
			t.Errorf("output = %q, want to contain 'component=lint'", output)
		}
	})
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	if child := logger.With("key", "value"); child != logger {
		t.Errorf("With returned a different logger")
	}
}
