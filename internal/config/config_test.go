package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWindowConfigDefaults(t *testing.T) {
	var w *WindowConfig
	if got := w.GetPastDays(); got != 500 {
		t.Errorf("GetPastDays() = %d, want 500", got)
	}
	if got := w.GetNextDays(); got != 365 {
		t.Errorf("GetNextDays() = %d, want 365", got)
	}

	w = &WindowConfig{PastDays: 7, NextDays: 1}
	if got := w.GetPastDays(); got != 7 {
		t.Errorf("GetPastDays() = %d, want 7", got)
	}
	if got := w.GetNextDays(); got != 1 {
		t.Errorf("GetNextDays() = %d, want 1", got)
	}
}

func TestWindowConfigRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 42, 7, 0, time.UTC)
	from, to := (*WindowConfig)(nil).Range(now, time.UTC)

	wantFrom := time.Date(2022, 10, 27, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", from, wantFrom)
	}
	if !to.Equal(wantTo) {
		t.Errorf("to = %v, want %v", to, wantTo)
	}
}

func TestSinkDefaults(t *testing.T) {
	var m *MQTTConfig
	if m.GetTopic() != "precog/alerts" || m.GetClientID() != "precog-panel" {
		t.Errorf("unexpected mqtt defaults: %q %q", m.GetTopic(), m.GetClientID())
	}
	var r *RedisConfig
	if r.GetStream() != "precog:alerts" {
		t.Errorf("unexpected redis stream default: %q", r.GetStream())
	}
	var wh *WebhookConfig
	if wh.GetTimeout() != 10*time.Second {
		t.Errorf("unexpected webhook timeout default: %v", wh.GetTimeout())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
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
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval)
	}
	if cfg.TokenRefresh != 14*time.Minute+30*time.Second {
		t.Errorf("TokenRefresh = %v, want 14m30s", cfg.TokenRefresh)
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("Storage = %q, want memory", cfg.Storage)
	}
}

func TestParseArgsInvalidStorage(t *testing.T) {
	cfg, err := ParseArgs([]string{"-storage", "postgres"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("Storage = %q, want fallback to memory", cfg.Storage)
	}
}

func TestParseArgsYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.yaml")
	content := `
apiUrl: http://precog.example:5000
pollInterval: 30s
storage: sqlite
window:
  pastDays: 30
sinks:
  webhook:
    url: http://hooks.example/alerts
  redis:
    addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := ParseArgs([]string{"-config", path, "-poll-interval", "5s"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if cfg.APIURL != "http://precog.example:5000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	// explicit flag wins over file
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.Storage != StorageSQLite {
		t.Errorf("Storage = %q, want sqlite", cfg.Storage)
	}
	if cfg.Window.GetPastDays() != 30 || cfg.Window.GetNextDays() != 365 {
		t.Errorf("unexpected window %+v", cfg.Window)
	}
	if cfg.Sinks == nil || cfg.Sinks.Webhook == nil || cfg.Sinks.Redis == nil {
		t.Fatalf("sinks not loaded: %+v", cfg.Sinks)
	}
	if cfg.Sinks.MQTT != nil {
		t.Errorf("mqtt sink should be nil")
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.toml")
	content := `
apiUrl = "http://precog.example:5000"
tokenRefresh = "10m"

[window]
nextDays = 10

[sinks.mqtt]
broker = "tcp://localhost:1883"
topic = "plant/alerts"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if f.TokenRefresh != 10*time.Minute {
		t.Errorf("TokenRefresh = %v, want 10m", f.TokenRefresh)
	}
	if f.Window.GetNextDays() != 10 {
		t.Errorf("NextDays = %d, want 10", f.Window.GetNextDays())
	}
	if f.Sinks.MQTT.GetTopic() != "plant/alerts" {
		t.Errorf("Topic = %q", f.Sinks.MQTT.GetTopic())
	}
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"webhook without url", "sinks:\n  webhook:\n    timeout: 5s\n"},
		{"mqtt without broker", "sinks:\n  mqtt:\n    topic: x\n"},
		{"redis without addr", "sinks:\n  redis:\n    db: 1\n"},
		{"journal without url", "sinks:\n  journal: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
