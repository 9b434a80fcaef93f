package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hapcore/hapd/internal/bytesize"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	require.Equal(t, 51826, cfg.Server.Port)
	require.Equal(t, 128, cfg.Server.ListenBacklog)
	require.Equal(t, 4*bytesize.KiB, cfg.Server.BufferSizes.Small)
	require.Equal(t, 64*bytesize.KiB, cfg.Server.BufferSizes.Medium)
	require.Equal(t, 1*bytesize.MiB, cfg.Server.BufferSizes.Large)
	require.Equal(t, "hapd Accessory", cfg.Accessory.Name)
	require.Equal(t, uint64(1), cfg.Accessory.ConfigurationNumber)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "127.0.0.1:9191", cfg.ControlPlane.Addr)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Accessory.Name = "Custom"

	ApplyDefaults(cfg)

	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "Custom", cfg.Accessory.Name)
}

func TestValidateRejectsMissingShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Accessory.SetupID = "ABCD"
	require.NoError(t, Validate(cfg))

	cfg.Server.Timeouts.Shutdown = 0
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsBadSetupID(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Accessory.SetupID = "TOOLONG"
	require.Error(t, Validate(cfg))
}

func TestDefaultConfigPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	require.Equal(t, "/tmp/xdgtest/hapd/config.yaml", DefaultConfigPath())
}
