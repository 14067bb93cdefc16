package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/cli/output"
	"github.com/marmos91/imgloader/internal/cli/prompt"
	"github.com/marmos91/imgloader/pkg/dataurl"
)

var (
	cacheGetOut   string
	cacheClearYes bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the server's memory cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Show a cached image without triggering a load",
	Long: `Look an image up in the server's memory cache. Exits with an error when
the image is not in memory; nothing is fetched.

Examples:
  imgloader cache get https://example.com/a.png
  imgloader cache get --out a.png https://example.com/a.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheGet,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear-memory",
	Short: "Empty the memory cache",
	Long: `Drop every entry from the server's memory cache. The durable store is
left alone, so cleared images are reloaded from it rather than the network.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	cacheGetCmd.Flags().StringVar(&cacheGetOut, "out", "", "Write the decoded image to this file")
	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "Do not ask for confirmation")

	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	img, err := newClient().Cached(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, err := printer()
	if err != nil {
		return err
	}

	if cacheGetOut != "" {
		_, data, err := dataurl.Decode(img.DataURL)
		if err != nil {
			return fmt.Errorf("server returned a bad entry: %w", err)
		}
		if err := os.WriteFile(cacheGetOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", cacheGetOut, err)
		}
	}

	if out.Format() != output.FormatTable {
		return out.Print(img)
	}
	pairs := [][2]string{
		{"URL", img.URL},
		{"Media type", img.MediaType},
		{"Size", output.Bytes(int64(img.Size))},
	}
	if cacheGetOut != "" {
		pairs = append(pairs, [2]string{"Written to", cacheGetOut})
	}
	return output.SimpleTable(out.Writer(), pairs)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ok, err := prompt.ConfirmWithForce("Clear the memory cache on "+serverURL, cacheClearYes)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if !ok {
		return nil
	}

	n, err := newClient().ClearMemory(cmd.Context())
	if err != nil {
		return err
	}

	out, err := printer()
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Cleared %d entries", n))
	return nil
}
