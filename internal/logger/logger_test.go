package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "verbose", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: dir, Name: "client.log"},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "client.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}
}

func TestComponentNilLogger(t *testing.T) {
	if Component(nil, "x") == nil {
		t.Fatal("Component(nil) returned nil")
	}
}

func TestConsoleSinkIsStdout(t *testing.T) {
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	defer func() { stdout = prev }()

	for _, cfg := range []Config{{Stdout: true}, {}} {
		buf.Reset()
		log, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v) error: %v", cfg, err)
		}
		log.Info("to stdout")
		_ = log.Sync()
		if !strings.Contains(buf.String(), "to stdout") {
			t.Fatalf("stdout=%q for %+v, want the message", buf.String(), cfg)
		}
	}
}
