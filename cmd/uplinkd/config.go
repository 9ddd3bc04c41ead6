package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/edgekit/uplink/internal/uplink"
)

// serviceConfig is the uplinkd runtime configuration: everything around the
// client that is not part of the reloadable device config.
type serviceConfig struct {
	Service     uplink.ServiceConfig
	AdminAddr   string
	CorsOrigins []string
}

type fileConfig struct {
	DeviceConfig      string   `toml:"device_config"`
	AdminAddr         string   `toml:"admin_addr"`
	CorsOrigins       []string `toml:"cors_origins"`
	TickInterval      string   `toml:"tick_interval"`
	KeepaliveInterval string   `toml:"keepalive_interval"`
	ReceiveTimeout    string   `toml:"receive_timeout"`
	ReconnectInterval string   `toml:"reconnect_interval"`
	LengthBytes       int      `toml:"length_bytes"`
	FileManagement    bool     `toml:"file_management"`
	TimeSync          bool     `toml:"time_sync"`
}

func serviceDefaults() serviceConfig {
	return serviceConfig{
		Service: uplink.DefaultServiceConfig(),
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := serviceDefaults()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load service config: %w", err)
	}

	if meta.IsDefined("device_config") {
		cfg.Service.DeviceConfigPath = strings.TrimSpace(raw.DeviceConfig)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("tick_interval") {
		d, err := parseInterval(raw.TickInterval, "tick_interval")
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Service.TickInterval = d
	}
	if meta.IsDefined("keepalive_interval") {
		d, err := parseInterval(raw.KeepaliveInterval, "keepalive_interval")
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Service.KeepaliveInterval = d
	}
	if meta.IsDefined("receive_timeout") {
		d, err := parseInterval(raw.ReceiveTimeout, "receive_timeout")
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Service.Client.ReceiveTimeout = d
	}
	if meta.IsDefined("reconnect_interval") {
		d, err := parseInterval(raw.ReconnectInterval, "reconnect_interval")
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Service.Client.Conn.ReconnectInterval = d
	}
	if meta.IsDefined("length_bytes") {
		cfg.Service.Client.LengthBytes = raw.LengthBytes
	}
	if meta.IsDefined("file_management") {
		cfg.Service.Client.EnableFileManagement = raw.FileManagement
	}
	if meta.IsDefined("time_sync") {
		cfg.Service.Client.EnableTimeSync = raw.TimeSync
	}

	return cfg, nil
}

func parseInterval(value, name string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}
