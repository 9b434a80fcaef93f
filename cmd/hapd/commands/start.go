package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hapcore/hapd/internal/controlplane"
	"github.com/hapcore/hapd/internal/hap/discovery"
	"github.com/hapcore/hapd/internal/hap/dispatch"
	"github.com/hapcore/hapd/internal/hap/engine"
	"github.com/hapcore/hapd/internal/hap/securesession"
	"github.com/hapcore/hapd/internal/logger"
	"github.com/hapcore/hapd/pkg/config"
	"github.com/hapcore/hapd/pkg/metrics"
	"github.com/hapcore/hapd/pkg/metrics/prometheus"
	"github.com/hapcore/hapd/pkg/pairing/badger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hapd accessory server",
	Long: `Start the hapd accessory server in the foreground.

Use --config to specify a configuration file, or it will use the default
location at $XDG_CONFIG_HOME/hapd/config.yaml, environment variables
(HAPD_*), and built-in defaults. Environment variables override only
settings that the loaded config file sets; without a config file they
are not read.

Examples:
  # Start with default config location
  hapd start

  # Start with a custom config
  hapd start --config /etc/hapd/config.yaml

  # Override a setting from the config file via environment variable
  HAPD_LOGGING_LEVEL=DEBUG hapd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("configuration loaded", "source", configSource(GetConfigFile()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pairingStore, err := badger.Open(cfg.Pairing.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open pairing store: %w", err)
	}
	defer func() {
		if err := pairingStore.Close(); err != nil {
			logger.Error("pairing store close error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	hapMetrics := prometheus.NewHAPMetrics()

	db := defaultDatabase(cfg.Accessory)

	d := &dispatch.Dispatcher{
		DB:       db,
		Identify: identifyHandler{db: db},
		Pairing:  pairingState{store: pairingStore},
	}

	e := engine.New(engine.Config{
		Addr:          fmt.Sprintf(":%d", cfg.Server.Port),
		MaxSessions:   cfg.Server.MaxSessions,
		IdleTimeout:   cfg.Server.Timeouts.Idle,
		ListenBacklog: cfg.Server.ListenBacklog,
	}, db, d, securesession.NoopAdapter{}, hapMetrics)
	d.Events = e

	if cfg.ControlPlane.Enabled {
		cpServer := controlplane.NewServer(cfg.ControlPlane.Addr, e, e)
		go func() {
			if err := cpServer.Start(ctx); err != nil {
				logger.Error("control plane server error", "error", err)
			}
		}()
	}

	announcer := discovery.NewAnnouncer(discovery.Config{
		Port:                uint16(cfg.Server.Port),
		InstanceName:        cfg.Accessory.Name,
		ConfigurationNumber: cfg.Accessory.ConfigurationNumber,
		FeatureFlags:        0,
		DeviceID:            cfg.Accessory.DeviceID,
		Model:               cfg.Accessory.Model,
		StatusFlags:         1,
		Category:            cfg.Accessory.Category,
	})
	if err := announcer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service discovery: %w", err)
	}
	defer func() {
		if err := announcer.Stop(); err != nil {
			logger.Error("service discovery stop error", "error", err)
		}
	}()

	logger.Info("hapd starting", "port", cfg.Server.Port, "accessory", cfg.Accessory.Name)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- e.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining sessions")
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("hapd stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("hapd stopped")
	}

	return nil
}
