package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/grbr/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
grbr:
  paths:
    out: /data/out
    tmp: /data/tmp
  satellite_key: G16
  integrity:
    crc:
      toss: true
    validation:
      enabled: false
  worker:
    timeout: 10m
    mailbox_size: 64
  source:
    poll_interval: 250ms
  post_process:
    command: /usr/local/bin/publish
  tracking:
    enabled: true
  events:
    kafka:
      enabled: true
      brokers:
        - localhost:9092
  log:
    level: debug
    format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Paths.Out != "/data/out" {
		t.Errorf("Expected out /data/out, got %s", cfg.Paths.Out)
	}
	if cfg.Paths.Track != "/data/tmp" {
		t.Errorf("Expected track to default to tmp, got %s", cfg.Paths.Track)
	}
	if cfg.SatelliteKey != "G16" {
		t.Errorf("Expected satellite key G16, got %s", cfg.SatelliteKey)
	}
	if !cfg.Integrity.CRC.Enabled || !cfg.Integrity.CRC.Toss {
		t.Errorf("Expected crc enabled and tossing, got %+v", cfg.Integrity.CRC)
	}
	if cfg.Integrity.Validation.Enabled {
		t.Error("Expected validation disabled")
	}
	if cfg.Worker.Timeout != 10*time.Minute {
		t.Errorf("Expected worker timeout 10m, got %s", cfg.Worker.Timeout)
	}
	if cfg.Worker.MailboxSize != 64 {
		t.Errorf("Expected mailbox size 64, got %d", cfg.Worker.MailboxSize)
	}
	if cfg.Source.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected poll interval 250ms, got %s", cfg.Source.PollInterval)
	}
	if cfg.Events.Kafka.Topic != "grbr-events" {
		t.Errorf("Expected default kafka topic, got %s", cfg.Events.Kafka.Topic)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.Worker.Timeout != 30*time.Minute {
		t.Errorf("Expected default timeout 30m, got %s", cfg.Worker.Timeout)
	}
	if !cfg.Integrity.CRC.Enabled || cfg.Integrity.CRC.Toss {
		t.Errorf("Expected crc checked but not tossed, got %+v", cfg.Integrity.CRC)
	}
	if cfg.Source.PollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval 5s, got %s", cfg.Source.PollInterval)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GRBR_WORKER_TIMEOUT", "90s")
	t.Setenv("GRBR_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "grbr:\n  log:\n    level: debug\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Worker.Timeout != 90*time.Second {
		t.Errorf("Expected env timeout 90s, got %s", cfg.Worker.Timeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected env log level warn, got %s", cfg.Log.Level)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "grbr:\n  log:\n    level: loud\n"},
		{"log format", "grbr:\n  log:\n    format: xml\n"},
		{"timeout", "grbr:\n  worker:\n    timeout: 0s\n"},
		{"mailbox", "grbr:\n  worker:\n    mailbox_size: 0\n"},
		{"satellite key", "grbr:\n  satellite_key: G_16\n"},
		{"kafka brokers", "grbr:\n  events:\n    kafka:\n      enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}
