package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edgekit/uplink/internal/testutil/testlog"
	"github.com/edgekit/uplink/internal/testutil/tlstest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDeviceConfig(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
clientid = "dev-1"
password = "secret"
host = "uplink.example.net"
port = 14300

[tls]
enabled = true
server_name = "uplink.example.net"
`)
	cfg, err := LoadDeviceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClientID != "dev-1" || cfg.Host != "uplink.example.net" || cfg.Port != 14300 {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.Root != "." {
		t.Fatalf("root should default to '.': %q", cfg.Root)
	}
	if !cfg.TLS.Enabled || cfg.TLS.ServerName != "uplink.example.net" {
		t.Fatalf("tls section: %+v", cfg.TLS)
	}
}

func TestLoadDeviceConfigMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadDeviceConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateDeviceConfig(t *testing.T) {
	testlog.Start(t)
	valid := DeviceConfig{ClientID: "dev-1", Host: "h", Port: 1234}
	if err := ValidateDeviceConfig(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name string
		cfg  DeviceConfig
	}{
		{"missing clientid", DeviceConfig{Host: "h", Port: 1}},
		{"missing host", DeviceConfig{ClientID: "d", Port: 1}},
		{"port zero", DeviceConfig{ClientID: "d", Host: "h"}},
		{"port too large", DeviceConfig{ClientID: "d", Host: "h", Port: 70000}},
		{"ca and ca_file", DeviceConfig{
			ClientID: "d", Host: "h", Port: 1,
			TLS: TLSConfig{Enabled: true, CA: "x", CAFile: "y"},
		}},
	}
	for _, tc := range cases {
		if err := ValidateDeviceConfig(tc.cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestBuildTLSDisabled(t *testing.T) {
	testlog.Start(t)
	cfg, err := TLSConfig{}.BuildTLS()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg != nil {
		t.Fatalf("disabled tls should yield nil config")
	}
}

func TestBuildTLSInlineCA(t *testing.T) {
	testlog.Start(t)
	pair := tlstest.NewPair(t)
	cfg, err := TLSConfig{
		Enabled:    true,
		CA:         string(pair.CAPEM),
		ServerName: "localhost",
	}.BuildTLS()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatalf("ca bundle not loaded")
	}
	if cfg.ServerName != "localhost" {
		t.Fatalf("server_name: %q", cfg.ServerName)
	}
}

func TestBuildTLSCAFile(t *testing.T) {
	testlog.Start(t)
	pair := tlstest.NewPair(t)
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pair.CAPEM, 0o600); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	cfg, err := TLSConfig{Enabled: true, CAFile: path}.BuildTLS()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatalf("ca bundle not loaded")
	}
}

func TestBuildTLSBadCA(t *testing.T) {
	testlog.Start(t)
	if _, err := (TLSConfig{Enabled: true, CA: "not pem"}).BuildTLS(); err == nil {
		t.Fatalf("expected error for garbage ca bundle")
	}
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "device.toml")
	if err := WriteTemplate(path, "device", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	// the shipped template must itself be a loadable config
	if _, err := LoadDeviceConfig(path); err != nil {
		t.Fatalf("template does not load: %v", err)
	}

	if err := WriteTemplate(path, "device", false); err == nil {
		t.Fatalf("overwrite without force should fail")
	}
	if err := WriteTemplate(path, "device", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}

	if _, err := Template("bogus"); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}
