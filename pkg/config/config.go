// Package config loads and validates hapd's configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (HAPD_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Environment variables override only keys that the loaded configuration
// file sets. When no configuration file is found, environment variables
// are not read and only defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hapcore/hapd/internal/bytesize"
	"github.com/hapcore/hapd/internal/logger"
)

// Config is the top-level hapd configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Accessory  AccessoryConfig  `mapstructure:"accessory" yaml:"accessory"`
	Pairing    PairingConfig    `mapstructure:"pairing" yaml:"pairing"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Logging    logger.Config    `mapstructure:"logging" yaml:"logging"`
	ControlPlane ControlPlaneConfig `mapstructure:"controlplane" yaml:"controlplane"`
}

// BufferSizesConfig holds small/medium/large buffer pool tier sizes
// (pkg/bufpool). The values are loaded and defaulted but no component
// reads them: the serializer and the session reader/writer do not draw
// from pkg/bufpool. Values accept human-readable sizes ("4Ki", "1Mi") or
// plain byte counts.
type BufferSizesConfig struct {
	Small  bytesize.ByteSize `mapstructure:"small" yaml:"small"`
	Medium bytesize.ByteSize `mapstructure:"medium" yaml:"medium"`
	Large  bytesize.ByteSize `mapstructure:"large" yaml:"large"`
}

// TimeoutsConfig groups per-session timeout configuration.
type TimeoutsConfig struct {
	// Idle is the maximum time a session may sit with no request and no
	// pending event before the engine closes it. 0 disables the sweep.
	Idle time.Duration `mapstructure:"idle" validate:"min=0" yaml:"idle"`

	// Shutdown is a drain timeout. It is defaulted and validated but not
	// passed to the engine; Serve waits for every session to finish
	// without a deadline.
	Shutdown time.Duration `mapstructure:"shutdown" validate:"required,gt=0" yaml:"shutdown"`
}

// ServerConfig controls the accessory server's listener and session pool.
type ServerConfig struct {
	// Port is the TCP port the accessory server listens on. 0 lets the
	// kernel pick an ephemeral port (useful for tests).
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// MaxSessions is the session pool capacity. 0 means unlimited.
	MaxSessions int `mapstructure:"max_sessions" validate:"min=0" yaml:"max_sessions"`

	// ListenBacklog is the TCP accept backlog hint.
	ListenBacklog int `mapstructure:"listen_backlog" validate:"min=0" yaml:"listen_backlog"`

	BufferSizes BufferSizesConfig `mapstructure:"buffer_sizes" yaml:"buffer_sizes"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
}

// AccessoryConfig describes the aid=1 accessory identity.
type AccessoryConfig struct {
	Category            int    `mapstructure:"category" validate:"min=1" yaml:"category"`
	Name                 string `mapstructure:"name" validate:"required" yaml:"name"`
	Model                string `mapstructure:"model" validate:"required" yaml:"model"`
	Firmware             string `mapstructure:"firmware" validate:"required" yaml:"firmware"`
	ConfigurationNumber  uint64 `mapstructure:"configuration_number" validate:"min=1" yaml:"configuration_number"`
	SetupID              string `mapstructure:"setup_id" validate:"len=4" yaml:"setup_id"`

	// DeviceID is the accessory's stable "id" TXT value, formatted as
	// "XX:XX:XX:XX:XX:XX" (spec.md §4.10). It is not a real MAC address;
	// HAP only requires it be stable across restarts.
	DeviceID string `mapstructure:"device_id" validate:"len=17" yaml:"device_id"`
}

// PairingConfig configures the badger-backed long-term pairing store.
type PairingConfig struct {
	StorePath string `mapstructure:"store_path" validate:"required" yaml:"store_path"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	LogInterval time.Duration `mapstructure:"log_interval" validate:"min=0" yaml:"log_interval"`
}

// ControlPlaneConfig configures the read-only admin HTTP API.
type ControlPlaneConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location is
// searched. No config file is required; when none is found, only
// defaults apply and environment variables are not read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation via go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("HAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hapd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hapd")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

// configDecodeHooks composes the byte-size hook with the decode hooks
// viper applies by default (string-to-duration, comma-separated
// string-to-slice); passing any viper.DecodeHook option replaces the
// defaults, so they are re-added explicitly here.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		byteSizeDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// so config files can use human-readable sizes like "1Gi", "64Ki", or
// plain byte counts for the buffer tiers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
