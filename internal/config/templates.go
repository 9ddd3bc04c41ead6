package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "device":
		return deviceTemplate, nil
	case "service":
		return serviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const deviceTemplate = `clientid = "device-01"
password = "change-me"
host = "uplink.example.net"
port = 14300
root = "/var/lib/uplink"

[tls]
enabled = false
# ca_file = "/etc/uplink/ca.pem"
# server_name = "uplink.example.net"
`

const serviceTemplate = `device_config = "/etc/uplink/device.toml"
admin_addr = "127.0.0.1:9600"
tick_interval = "50ms"
keepalive_interval = "30s"
receive_timeout = "65s"
reconnect_interval = "10s"
length_bytes = 2
`
