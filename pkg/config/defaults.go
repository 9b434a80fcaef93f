package config

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/hapcore/hapd/internal/bytesize"
	"github.com/hapcore/hapd/internal/hap/setup"
	"github.com/hapcore/hapd/internal/logger"
)

// ApplyDefaults fills in zero values with sensible defaults.
//
// Explicit values from file or environment are preserved; only the zero
// value for each field is replaced.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyAccessoryDefaults(&cfg.Accessory)
	applyPairingDefaults(&cfg.Pairing)
	applyMetricsDefaults(&cfg.Metrics)
	applyLoggingDefaults(&cfg.Logging)
	applyControlPlaneDefaults(&cfg.ControlPlane)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port <= 0 {
		cfg.Port = 51826
	}
	if cfg.ListenBacklog == 0 {
		cfg.ListenBacklog = 128
	}
	if cfg.BufferSizes.Small == 0 {
		cfg.BufferSizes.Small = 4 * bytesize.KiB
	}
	if cfg.BufferSizes.Medium == 0 {
		cfg.BufferSizes.Medium = 64 * bytesize.KiB
	}
	if cfg.BufferSizes.Large == 0 {
		cfg.BufferSizes.Large = 1 * bytesize.MiB
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = 5 * time.Minute
	}
	if cfg.Timeouts.Shutdown == 0 {
		cfg.Timeouts.Shutdown = 30 * time.Second
	}
}

func applyAccessoryDefaults(cfg *AccessoryConfig) {
	if cfg.Category == 0 {
		cfg.Category = 1 // category "Other"
	}
	if cfg.Name == "" {
		cfg.Name = "hapd Accessory"
	}
	if cfg.Model == "" {
		cfg.Model = "hapd-1"
	}
	if cfg.Firmware == "" {
		cfg.Firmware = "1.0.0"
	}
	if cfg.ConfigurationNumber == 0 {
		cfg.ConfigurationNumber = 1
	}
	if cfg.SetupID == "" {
		if id, err := setup.GenerateID(rand.Reader); err == nil {
			cfg.SetupID = id.String()
		}
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = randomDeviceID()
	}
}

// randomDeviceID generates a locally-administered, non-multicast
// "XX:XX:XX:XX:XX:XX" identifier. It is not read from any network
// interface, since the "id" TXT value only needs to be stable across
// restarts, not globally unique hardware.
func randomDeviceID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00:00:00:00:00:00"
	}
	b[0] = (b[0] | 0x02) & 0xFE
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

func applyPairingDefaults(cfg *PairingConfig) {
	if cfg.StorePath == "" {
		cfg.StorePath = "/var/lib/hapd/pairing"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.LogInterval == 0 {
		cfg.LogInterval = 5 * time.Minute
	}
}

func applyLoggingDefaults(cfg *logger.Config) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyControlPlaneDefaults(cfg *ControlPlaneConfig) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9191"
	}
}
