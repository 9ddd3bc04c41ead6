// Package config loads the reloadable device configuration: connection
// target, credentials, and transport security. The server can push a new
// config file and ask the client to reload it at runtime.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	CA                 string `toml:"ca"`      // inline PEM bundle
	CAFile             string `toml:"ca_file"` // path to PEM bundle
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// DeviceConfig is the on-disk device identity and connection target.
type DeviceConfig struct {
	ClientID string    `toml:"clientid"`
	Password string    `toml:"password"`
	Host     string    `toml:"host"`
	Port     int       `toml:"port"`
	Root     string    `toml:"root"`
	TLS      TLSConfig `toml:"tls"`
}

func LoadDeviceConfig(path string) (DeviceConfig, error) {
	var cfg DeviceConfig
	if err := loadToml(path, &cfg); err != nil {
		return DeviceConfig{}, err
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if err := ValidateDeviceConfig(cfg); err != nil {
		return DeviceConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDeviceConfig(cfg DeviceConfig) error {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return fmt.Errorf("device config missing clientid")
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("device config missing host")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("device config invalid port: %d", cfg.Port)
	}
	if cfg.TLS.Enabled && cfg.TLS.CA != "" && cfg.TLS.CAFile != "" {
		return fmt.Errorf("device config: ca and ca_file are mutually exclusive")
	}
	return nil
}

// BuildTLS maps the TLS section to a tls.Config, or nil when disabled.
func (c TLSConfig) BuildTLS() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         strings.TrimSpace(c.ServerName),
		InsecureSkipVerify: c.InsecureSkipVerify,
	}

	caPEM := []byte(c.CA)
	if path := strings.TrimSpace(c.CAFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tls ca bundle: %w", err)
		}
		caPEM = data
	}
	if len(strings.TrimSpace(string(caPEM))) > 0 {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("parse tls ca bundle")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
