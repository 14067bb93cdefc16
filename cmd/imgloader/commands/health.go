package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/cli/output"
	"github.com/marmos91/imgloader/internal/cli/timeutil"
	"github.com/marmos91/imgloader/pkg/apiclient"
)

var healthReady bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Long: `Check the liveness of the server at --server, or its readiness with
--ready (the loader is open and the durable store answers).

Exits with an error when the server is unreachable or unhealthy.

Examples:
  imgloader health
  imgloader health --ready -o json`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthReady, "ready", false, "Check readiness instead of liveness")
}

// serverHealth is the health summary printed by the health command.
type serverHealth struct {
	Server    string `json:"server" yaml:"server"`
	Status    string `json:"status" yaml:"status"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	StoreType string `json:"store_type,omitempty" yaml:"store_type,omitempty"`
	Latency   string `json:"latency,omitempty" yaml:"latency,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := newClient().Health(cmd.Context(), healthReady)
	status := summarizeHealth(serverURL, h, err)

	out, perr := printer()
	if perr != nil {
		return perr
	}
	if out.Format() != output.FormatTable {
		if perr := out.Print(status); perr != nil {
			return perr
		}
	} else if perr := printHealth(out.Writer(), status); perr != nil {
		return perr
	}

	if !status.Healthy {
		return fmt.Errorf("server is %s", status.Status)
	}
	return nil
}

func summarizeHealth(server string, h *apiclient.Health, err error) serverHealth {
	status := serverHealth{Server: server, Status: "unreachable"}
	if h == nil {
		if err != nil {
			status.Error = err.Error()
		}
		return status
	}

	status.Status = h.Status
	status.Healthy = err == nil && h.Status == "healthy"
	status.Error = h.Error
	if data, ok := h.Data.(map[string]any); ok {
		status.StartedAt = stringField(data, "started_at")
		status.Uptime = stringField(data, "uptime")
		status.StoreType = stringField(data, "store_type")
		status.Latency = stringField(data, "latency")
	}
	return status
}

func printHealth(w io.Writer, s serverHealth) error {
	pairs := [][2]string{
		{"Server", s.Server},
		{"Status", s.Status},
	}
	if s.StartedAt != "" {
		pairs = append(pairs, [2]string{"Started", timeutil.FormatTime(s.StartedAt)})
	}
	if s.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", timeutil.FormatUptime(s.Uptime)})
	}
	if s.StoreType != "" {
		pairs = append(pairs, [2]string{"Store", s.StoreType})
	}
	if s.Latency != "" {
		pairs = append(pairs, [2]string{"Store latency", s.Latency})
	}
	if s.Error != "" {
		pairs = append(pairs, [2]string{"Error", s.Error})
	}
	return output.SimpleTable(w, pairs)
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
