package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hapcore/hapd/internal/cli/output"
	"github.com/hapcore/hapd/internal/controlplane"
	"github.com/hapcore/hapd/pkg/config"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show accessory server status",
	Long: `Report whether the hapd accessory server is reachable by querying
its control-plane API (GET /sessions), and how many sessions are open.

Requires the control-plane API to be enabled in the target server's
configuration.

Examples:
  # Check status using the control-plane address from config
  hapd status

  # Output as JSON
  hapd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

// serverStatus is the rendered status report.
type serverStatus struct {
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Addr      string `json:"addr" yaml:"addr"`
	Sessions  int    `json:"sessions" yaml:"sessions"`
	Message   string `json:"message" yaml:"message"`
}

// sessionsEnvelope mirrors internal/controlplane's response wrapper just
// enough to unmarshal the /sessions reply.
type sessionsEnvelope struct {
	Status string                       `json:"status"`
	Data   []controlplane.SessionView `json:"data"`
	Error  string                       `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	status := serverStatus{Addr: cfg.ControlPlane.Addr}

	if !cfg.ControlPlane.Enabled {
		status.Message = "control plane is disabled in configuration"
		return printStatus(format, status)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/sessions", cfg.ControlPlane.Addr))
	if err != nil {
		status.Message = fmt.Sprintf("unreachable: %v", err)
		return printStatus(format, status)
	}
	defer func() { _ = resp.Body.Close() }()

	var env sessionsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		status.Message = fmt.Sprintf("reachable but response invalid: %v", err)
		return printStatus(format, status)
	}

	status.Reachable = env.Status == "ok"
	status.Sessions = len(env.Data)
	if status.Reachable {
		status.Message = "running"
	} else {
		status.Message = env.Error
	}

	return printStatus(format, status)
}

func printStatus(format output.Format, status serverStatus) error {
	if format == output.FormatJSON {
		return output.PrintJSON(os.Stdout, status)
	}
	return output.PrintYAML(os.Stdout, status)
}
