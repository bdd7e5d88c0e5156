package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.WSURL != "ws://localhost:8000/ws" {
		t.Fatalf("WSURL=%q, want %q", cfg.WSURL, "ws://localhost:8000/ws")
	}
	if cfg.Status.ErrorRevertDelay != 3*time.Second {
		t.Fatalf("ErrorRevertDelay=%v, want 3s", cfg.Status.ErrorRevertDelay)
	}
	if cfg.Playback.RateMin != 0.97 || cfg.Playback.RateMax != 1.2 {
		t.Fatalf("rate bounds=[%v,%v], want [0.97,1.2]", cfg.Playback.RateMin, cfg.Playback.RateMax)
	}
	if cfg.Ambient.BaseParticles != 200 {
		t.Fatalf("BaseParticles=%d, want 200", cfg.Ambient.BaseParticles)
	}
	if cfg.Control.HTTPAddr != "127.0.0.1:8102" {
		t.Fatalf("HTTPAddr=%q, want %q", cfg.Control.HTTPAddr, "127.0.0.1:8102")
	}
}

func TestParseSecurePageUsesWSS(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  page_url: \"https://orion.example.com\"\n  ws_path: \"/ws\"\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.WSURL != "wss://orion.example.com/ws" {
		t.Fatalf("WSURL=%q, want %q", cfg.WSURL, "wss://orion.example.com/ws")
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("ORION_SESSION_CONTEXT_LENGTH", "25")
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Session.ContextLength != 25 {
		t.Fatalf("ContextLength=%d, want 25", cfg.Session.ContextLength)
	}
}

func TestLoadConfigAppliesPreset(t *testing.T) {
	dir := t.TempDir()
	preset := filepath.Join(dir, "terse.yaml")
	if err := os.WriteFile(preset, []byte("temperature: 0.8\ninstructions: \"be terse\"\n"), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	conf := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(conf, []byte("session:\n  preset_path: \"terse.yaml\"\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadConfig(conf)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Session.Temperature != 0.8 {
		t.Fatalf("Temperature=%v, want 0.8", cfg.Session.Temperature)
	}
	if cfg.Session.Instructions != "be terse" {
		t.Fatalf("Instructions=%q, want %q", cfg.Session.Instructions, "be terse")
	}
	if cfg.Session.ContextLength != 10 {
		t.Fatalf("ContextLength=%d, want 10", cfg.Session.ContextLength)
	}
}

func TestReadSessionPresetInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("temperature: [\n"), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	if _, err := ReadSessionPreset(path); err == nil {
		t.Fatal("ReadSessionPreset error=nil, want non-nil")
	}
}
