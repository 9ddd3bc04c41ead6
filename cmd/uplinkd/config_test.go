package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeServiceConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uplinkd.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverridesDefaults(t *testing.T) {
	path := writeServiceConfig(t, `
device_config = "/etc/uplink/device.toml"
admin_addr = "127.0.0.1:9600"
cors_origins = ["https://ops.example.net"]
tick_interval = "25ms"
keepalive_interval = "15s"
receive_timeout = "90s"
reconnect_interval = "5s"
length_bytes = 1
file_management = false
time_sync = false
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.DeviceConfigPath != "/etc/uplink/device.toml" {
		t.Fatalf("device_config: %q", cfg.Service.DeviceConfigPath)
	}
	if cfg.AdminAddr != "127.0.0.1:9600" {
		t.Fatalf("admin_addr: %q", cfg.AdminAddr)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "https://ops.example.net" {
		t.Fatalf("cors_origins: %v", cfg.CorsOrigins)
	}
	if cfg.Service.TickInterval != 25*time.Millisecond {
		t.Fatalf("tick_interval: %v", cfg.Service.TickInterval)
	}
	if cfg.Service.KeepaliveInterval != 15*time.Second {
		t.Fatalf("keepalive_interval: %v", cfg.Service.KeepaliveInterval)
	}
	if cfg.Service.Client.ReceiveTimeout != 90*time.Second {
		t.Fatalf("receive_timeout: %v", cfg.Service.Client.ReceiveTimeout)
	}
	if cfg.Service.Client.Conn.ReconnectInterval != 5*time.Second {
		t.Fatalf("reconnect_interval: %v", cfg.Service.Client.Conn.ReconnectInterval)
	}
	if cfg.Service.Client.LengthBytes != 1 {
		t.Fatalf("length_bytes: %d", cfg.Service.Client.LengthBytes)
	}
	if cfg.Service.Client.EnableFileManagement || cfg.Service.Client.EnableTimeSync {
		t.Fatalf("feature flags not applied: %+v", cfg.Service.Client)
	}
}

func TestLoadServiceConfigKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := writeServiceConfig(t, `
device_config = "/etc/uplink/device.toml"
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.TickInterval != 50*time.Millisecond {
		t.Fatalf("tick_interval default lost: %v", cfg.Service.TickInterval)
	}
	if cfg.Service.KeepaliveInterval != 30*time.Second {
		t.Fatalf("keepalive_interval default lost: %v", cfg.Service.KeepaliveInterval)
	}
	if cfg.Service.Client.ReceiveTimeout != 65*time.Second {
		t.Fatalf("receive_timeout default lost: %v", cfg.Service.Client.ReceiveTimeout)
	}
	if !cfg.Service.Client.EnableFileManagement || !cfg.Service.Client.EnableTimeSync {
		t.Fatalf("feature flag defaults lost: %+v", cfg.Service.Client)
	}
	if cfg.AdminAddr != "" {
		t.Fatalf("admin_addr should default empty: %q", cfg.AdminAddr)
	}
}

func TestLoadServiceConfigBadInterval(t *testing.T) {
	path := writeServiceConfig(t, `tick_interval = "soon"`)
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceConfigMissingFile(t *testing.T) {
	if _, err := loadServiceConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
