package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/cli/output"
)

var (
	scrapePreload bool
	scrapeList    bool
	urlsFile      string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape PAGE_URL",
	Short: "List the images referenced by a page",
	Long: `Ask the server to fetch a page and list the images it references:
<img> and <picture> sources, srcset candidates, og:image and twitter:image
meta tags, CSS url() backgrounds and links to image files.

Examples:
  # List images
  imgloader scrape https://example.com/gallery

  # Print bare URLs, one per line, for piping
  imgloader scrape --list https://example.com/gallery

  # Queue every image for background retrieval
  imgloader scrape --preload https://example.com/gallery`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

var preloadCmd = &cobra.Command{
	Use:   "preload [URL...]",
	Short: "Queue background retrievals at low priority",
	Long: `Queue images for background retrieval at the lowest priority.

URLs already in memory or already loading are skipped. URLs are read from
the arguments, from --file, or from stdin when the argument is "-".

Examples:
  imgloader preload https://example.com/a.png https://example.com/b.png
  imgloader scrape --list https://example.com/ | imgloader preload -`,
	RunE: runPreload,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [URL...]",
	Short: "Drop queued retrievals",
	Long: `Remove retrievals that are still waiting for a slot. Retrievals that
have already started run to completion and are still cached.

Examples:
  imgloader cancel https://example.com/a.png
  imgloader cancel --file pending.txt`,
	RunE: runCancel,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapePreload, "preload", false, "Queue the images for background retrieval")
	scrapeCmd.Flags().BoolVar(&scrapeList, "list", false, "Print bare URLs, one per line")

	preloadCmd.Flags().StringVarP(&urlsFile, "file", "f", "", "Read URLs from a file, one per line")
	cancelCmd.Flags().StringVarP(&urlsFile, "file", "f", "", "Read URLs from a file, one per line")
}

type imageList []string

func (l imageList) Headers() []string { return []string{"#", "Image URL"} }

func (l imageList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, u := range l {
		rows[i] = []string{fmt.Sprint(i + 1), u}
	}
	return rows
}

func runScrape(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Scrape(cmd.Context(), args[0], scrapePreload)
	if err != nil {
		return err
	}

	if scrapeList {
		for _, u := range resp.Images {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	}

	out, err := printer()
	if err != nil {
		return err
	}
	if out.Format() != output.FormatTable {
		return out.Print(resp)
	}
	if len(resp.Images) == 0 {
		out.Warning("No images found")
		return nil
	}
	if err := out.Print(imageList(resp.Images)); err != nil {
		return err
	}
	if scrapePreload {
		out.Success(fmt.Sprintf("Queued %d of %d images", resp.Queued, len(resp.Images)))
	}
	return nil
}

func runPreload(cmd *cobra.Command, args []string) error {
	return runBatch(cmd, args, "queued", func(ctx context.Context, urls []string) (int, error) {
		return newClient().Preload(ctx, urls...)
	})
}

func runCancel(cmd *cobra.Command, args []string) error {
	return runBatch(cmd, args, "canceled", func(ctx context.Context, urls []string) (int, error) {
		return newClient().Cancel(ctx, urls...)
	})
}

func runBatch(cmd *cobra.Command, args []string, verb string, send func(context.Context, []string) (int, error)) error {
	urls, err := collectURLs(args, urlsFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}

	n, err := send(cmd.Context(), urls)
	if err != nil {
		return err
	}

	out, err := printer()
	if err != nil {
		return err
	}
	if out.Format() != output.FormatTable {
		return out.Print(map[string]int{"requested": len(urls), verb: n})
	}
	out.Success(fmt.Sprintf("%d of %d URLs %s", n, len(urls), verb))
	return nil
}

// collectURLs gathers URLs from args, a file, and stdin when an argument
// is "-". Blank lines and lines starting with # are skipped.
func collectURLs(args []string, file string, stdin io.Reader) ([]string, error) {
	var urls []string
	for _, a := range args {
		if a != "-" {
			urls = append(urls, a)
			continue
		}
		lines, err := readLines(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		urls = append(urls, lines...)
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		lines, err := readLines(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		urls = append(urls, lines...)
	}
	return urls, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
