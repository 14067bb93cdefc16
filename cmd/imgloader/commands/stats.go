package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/cli/output"
	"github.com/marmos91/imgloader/pkg/loader"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show scheduler and cache counters",
	Long: `Display the server's scheduler state (queue, active and in-flight
retrievals) and cache counters.

Examples:
  imgloader stats
  imgloader stats -o json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := newClient().Stats(cmd.Context())
	if err != nil {
		return err
	}

	out, err := printer()
	if err != nil {
		return err
	}
	if out.Format() != output.FormatTable {
		return out.Print(stats)
	}
	return printStats(out.Writer(), stats)
}

func printStats(w io.Writer, s *loader.Stats) error {
	pairs := [][2]string{
		{"Active", output.Int(s.ActiveCount) + " / " + output.Int(s.MaxConcurrent)},
		{"Queued", output.Int(s.QueueLength)},
		{"  high", output.Int(s.Queued[loader.High])},
		{"  normal", output.Int(s.Queued[loader.Normal])},
		{"  low", output.Int(s.Queued[loader.Low])},
		{"In flight", output.Int(s.InFlight)},
		{"Requests", output.Count(s.Requests)},
		{"Dedup joins", output.Count(s.Joined)},
		{"Retrievals", output.Count(s.Started)},
		{"  completed", output.Count(s.Completed)},
		{"  failed", output.Count(s.Failed)},
		{"Canceled", output.Count(s.Canceled)},
		{"Memory entries", output.Int(s.MemoryCacheSize)},
		{"Memory size", output.Bytes(s.Cache.MemoryBytes)},
		{"Memory hits", output.Count(s.Cache.MemoryHits)},
		{"Durable hits", output.Count(s.Cache.DurableHits)},
		{"Misses", output.Count(s.Cache.Misses)},
		{"Evictions", output.Count(s.Cache.Evictions)},
	}
	if s.Cache.Durable {
		pairs = append(pairs,
			[2]string{"Persisted", output.Count(s.Cache.Persisted)},
			[2]string{"Persist pending", output.Int(s.Cache.PersistPending)},
			[2]string{"Persist failed", output.Count(s.Cache.PersistFailed)},
			[2]string{"Persist dropped", output.Count(s.Cache.PersistDropped)},
			[2]string{"Durable errors", output.Count(s.Cache.DurableErrors)},
		)
	} else {
		pairs = append(pairs, [2]string{"Durable store", "disabled"})
	}
	return output.SimpleTable(w, pairs)
}
