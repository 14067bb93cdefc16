package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/imgloader/internal/cli/output"
	"github.com/marmos91/imgloader/pkg/loader"
)

var (
	fetchOut      string
	fetchPriority string
	fetchRemote   bool
	fetchFailFast bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL [URL...]",
	Short: "Retrieve images",
	Long: `Retrieve one or more images and report what was loaded.

By default the images are loaded by an in-process loader built from the
config file, so the durable store is shared with a server using the same
config. With --remote the requests go to a running server instead.

All URLs are requested at once; the loader's concurrency limit and
deduplication decide how many hit the network.

Examples:
  # Load two images and print a summary
  imgloader fetch https://example.com/a.png https://example.com/b.jpg

  # Save images into a directory
  imgloader fetch --out ./images https://example.com/a.png

  # Go through a running server at high priority
  imgloader fetch --remote --priority high https://example.com/a.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Directory to write images to")
	fetchCmd.Flags().StringVarP(&fetchPriority, "priority", "p", "normal", "Priority (high|normal|low)")
	fetchCmd.Flags().BoolVar(&fetchRemote, "remote", false, "Load through the server at --server")
	fetchCmd.Flags().BoolVar(&fetchFailFast, "fail-fast", false, "Stop at the first failed image")
}

// fetchResult is one row of the fetch summary.
type fetchResult struct {
	URL       string `json:"url" yaml:"url"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Size      int    `json:"size" yaml:"size"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

type fetchResults []fetchResult

func (r fetchResults) Headers() []string {
	return []string{"URL", "Type", "Size", "File", "Error"}
}

func (r fetchResults) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, res := range r {
		size := "-"
		if res.Error == "" {
			size = output.Bytes(int64(res.Size))
		}
		rows = append(rows, []string{res.URL, res.MediaType, size, res.File, res.Error})
	}
	return rows
}

// imageSource loads one image as its media type and bytes.
type imageSource func(ctx context.Context, imageURL string, p loader.Priority) (string, []byte, error)

func runFetch(cmd *cobra.Command, args []string) error {
	p, err := loader.ParsePriority(fetchPriority)
	if err != nil {
		return err
	}
	out, err := printer()
	if err != nil {
		return err
	}
	if fetchOut != "" {
		if err := os.MkdirAll(fetchOut, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source imageSource
	if fetchRemote {
		client := newClient()
		source = func(ctx context.Context, imageURL string, p loader.Priority) (string, []byte, error) {
			img, err := client.ImageRaw(ctx, imageURL, p)
			if err != nil {
				return "", nil, err
			}
			return img.MediaType, img.Data, nil
		}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := InitLogger(cfg); err != nil {
			return err
		}
		l, err := buildLoader(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			// Give pending durable writes a chance to land.
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = l.Close(closeCtx)
		}()
		source = func(ctx context.Context, imageURL string, p loader.Priority) (string, []byte, error) {
			e, err := l.Load(ctx, imageURL, p)
			if err != nil {
				return "", nil, err
			}
			return e.Decode()
		}
	}

	results, err := fetchAll(ctx, source, args, p, fetchOut, fetchFailFast)
	if printErr := out.Print(results); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Error != "" {
			return fmt.Errorf("some images failed to load")
		}
	}
	return nil
}

// fetchAll loads every URL concurrently and returns results in argument
// order. With failFast the first error cancels the rest and is returned.
func fetchAll(ctx context.Context, source imageSource, urls []string, p loader.Priority, outDir string, failFast bool) (fetchResults, error) {
	results := make(fetchResults, len(urls))
	g, gctx := errgroup.WithContext(ctx)

	for i, u := range urls {
		g.Go(func() error {
			res := fetchResult{URL: u}
			mediaType, data, err := source(gctx, u, p)
			if err == nil && outDir != "" {
				res.File, err = writeImage(outDir, u, mediaType, data)
			}
			if err != nil {
				res.Error = err.Error()
			} else {
				res.MediaType, res.Size = mediaType, len(data)
			}
			results[i] = res

			if err != nil && failFast {
				return fmt.Errorf("%s: %w", u, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// writeImage stores data under dir, named after the URL's last path segment
// or its hash when the URL has none. The extension follows the media type.
func writeImage(dir, rawURL, mediaType string, data []byte) (string, error) {
	var name string
	if u, err := url.Parse(rawURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		sum := sha256.Sum256([]byte(rawURL))
		name = hex.EncodeToString(sum[:8])
	}
	if filepath.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			name += exts[0]
		}
	}

	file := filepath.Join(dir, name)
	tmp := fmt.Sprintf("%s.%d.tmp", file, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := os.Rename(tmp, file); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	return file, nil
}
