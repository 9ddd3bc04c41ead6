package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/admin"
	"github.com/edgekit/uplink/internal/observability"
	"github.com/edgekit/uplink/internal/uplink"
)

func main() {
	configPath := flag.String("config", "", "service config path (toml)")
	devicePath := flag.String("device", "", "device config path override")
	flag.Parse()

	observability.InitLogger("uplinkd")

	cfg := serviceDefaults()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uplinkd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *devicePath != "" {
		cfg.Service.DeviceConfigPath = *devicePath
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "uplinkd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg serviceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := uplink.NewService(cfg.Service)
	if err != nil {
		return err
	}

	if cfg.AdminAddr != "" {
		srv := admin.New("uplinkd", svc, cfg.CorsOrigins)
		go func() {
			if err := srv.Serve(ctx, cfg.AdminAddr); err != nil {
				log.Error().Err(err).Msg("uplinkd: admin server failed")
			}
		}()
	}

	return svc.Run(ctx)
}
