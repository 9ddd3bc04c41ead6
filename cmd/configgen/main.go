package main

import (
	"flag"
	"log"

	"github.com/edgekit/uplink/internal/config"
)

func main() {
	kind := flag.String("kind", "device", "config kind: device|service")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing device config file")
	input := flag.String("input", "", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = "device.toml"
		}
		if _, err := config.LoadDeviceConfig(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated device config at %s", path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "device":
			target = "device.toml"
		case "service":
			target = "uplinkd.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
