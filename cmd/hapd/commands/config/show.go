package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hapcore/hapd/internal/cli/output"
	"github.com/hapcore/hapd/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the resolved configuration",
	Long: `Load configuration from file, environment, and defaults, and print the
result.

Examples:
  # Show as YAML (default)
  hapd config show

  # Show as JSON
  hapd config show --output json

  # Show a specific config file
  hapd config show --config /etc/hapd/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.PrintJSON(os.Stdout, cfg)
	}
	return output.PrintYAML(os.Stdout, cfg)
}
