package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/filegate-project/filegate/internal/api"
	"github.com/filegate-project/filegate/internal/core"
	"github.com/filegate-project/filegate/internal/gate"
	"github.com/filegate-project/filegate/internal/quarantine"
	"github.com/filegate-project/filegate/internal/vault"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

// sweepInterval is how often the vault retention sweep runs.
const sweepInterval = time.Hour

func main() {
	configPath := flag.String("config", "filegate.yaml", "path to the YAML config file")
	listen := flag.String("listen", "", "listen address override, host:port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("filegate %s (%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		host, portStr, err := net.SplitHostPort(*listen)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -listen value %q, want host:port\n", *listen)
			os.Exit(1)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -listen port %q\n", portStr)
			os.Exit(1)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	logger := core.NewLogger(&cfg.Logging)
	logger.Info().Str("version", version).Msg("filegate starting")

	var bus *core.EventBus
	if cfg.Bus.Enabled {
		bus, err = core.NewEventBus(&cfg.Bus, logger)
		if err != nil {
			logger.Error().Err(err).Msg("event bus unavailable, continuing without it")
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	v, err := vault.New(&cfg.Vault, cfg.TokenTTLDuration(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("vault init failed")
	}
	q, err := quarantine.New(&cfg.Quarantine, bus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("quarantine init failed")
	}
	g := gate.New(&cfg.Scan, logger)

	store := core.NewMemoryTTLStore(time.Minute)
	defer store.Close()

	server := api.NewServer(cfg, g, v, q, store, bus, logger)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("server start failed")
	}

	// Retention sweep runs until shutdown.
	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := v.Sweep()
				if err != nil {
					logger.Error().Err(err).Msg("retention sweep failed")
					continue
				}
				if removed > 0 {
					api.RecordSweep(removed)
					event := core.NewScanEvent(core.EventVaultSwept)
					event.Details["removed"] = removed
					if err := bus.PublishEvent(event); err != nil {
						logger.Error().Err(err).Msg("failed to publish sweep event")
					}
				}
			case <-stopSweep:
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	close(stopSweep)
	if err := server.Stop(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("filegate stopped")
}
