package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Verboo/Verboo-Realtime-go/internal/config"
)

func TestInit_Defaults(t *testing.T) {
	if err := config.Init("", ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if got := config.GetString("realtime.transport"); got != "framed" {
		t.Fatalf("unexpected transport default: %q", got)
	}
	if got := config.GetDuration("realtime.connection_timeout", 0); got != 5*time.Second {
		t.Fatalf("unexpected connection timeout: %v", got)
	}
	if got := config.GetInt("realtime.heartbeat.time"); got != 15 {
		t.Fatalf("unexpected heartbeat time: %d", got)
	}
	if got := config.MaxFramePayloadSize(); got != 2*1024*1024 {
		t.Fatalf("unexpected max frame payload: %d", got)
	}
}

func TestInit_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realtime.yaml")
	body := []byte("realtime:\n  app_key: file-key\n  connection_timeout: 2s\n  heartbeat:\n    active: true\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := config.Init("", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if got := config.GetString("realtime.app_key"); got != "file-key" {
		t.Fatalf("unexpected app key: %q", got)
	}
	if got := config.GetDuration("realtime.connection_timeout", 0); got != 2*time.Second {
		t.Fatalf("unexpected connection timeout: %v", got)
	}
	if !config.GetBool("realtime.heartbeat.active") {
		t.Fatalf("expected heartbeat active from file")
	}
}

func TestInit_MissingFile(t *testing.T) {
	if err := config.Init("", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestGetDuration_NumericSeconds(t *testing.T) {
	_ = config.Init("", "")
	config.Set("realtime.discovery.timeout", 7)
	if got := config.GetDuration("realtime.discovery.timeout", time.Second); got != 7*time.Second {
		t.Fatalf("unexpected duration: %v", got)
	}
}
