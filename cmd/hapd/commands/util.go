package commands

import (
	"fmt"

	"github.com/hapcore/hapd/internal/logger"
	"github.com/hapcore/hapd/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// configSource describes where the configuration came from, for a
// startup log line.
func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultConfigPath() + " (or defaults)"
}
