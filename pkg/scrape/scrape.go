// Package scrape discovers image URLs referenced by an HTML page.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/fetch"
)

// PageFetcher retrieves a page body. *fetch.Client satisfies it when
// configured with AllowAnyContentType.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Scraper fetches pages and extracts the images they reference.
type Scraper struct {
	fetcher PageFetcher
}

// New creates a Scraper on top of f.
func New(f PageFetcher) *Scraper {
	return &Scraper{fetcher: f}
}

// NewDefault creates a Scraper with its own fetch client derived from cfg,
// accepting any content type.
func NewDefault(cfg fetch.Config) *Scraper {
	cfg.AllowAnyContentType = true
	return New(fetch.New(cfg))
}

// Scrape fetches pageURL and returns the absolute image URLs it references,
// in document order without duplicates.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) ([]string, error) {
	ctx, span := telemetry.StartImageSpan(ctx, telemetry.SpanScrape, pageURL)
	defer span.End()

	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("invalid page url %q", pageURL)
	}

	res, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if !isMarkup(res.MediaType) {
		return nil, fmt.Errorf("page %s is %s, not HTML", pageURL, res.MediaType)
	}

	urls := Extract(strings.NewReader(string(res.Body)), base)
	span.SetAttributes(telemetry.Bytes(len(res.Body)))
	logger.DebugCtx(ctx, "Page scraped", logger.URL(pageURL), logger.KeyCount, len(urls))
	return urls, nil
}

func isMarkup(mediaType string) bool {
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}

var (
	cssURL    = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)
	imgurLink = regexp.MustCompile(`https?://(?:i\.)?imgur\.com/[a-zA-Z0-9]+\.(?:jpg|jpeg|png|gif|webp)`)

	imageExt = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".avif": true, ".svg": true, ".bmp": true,
	}

	// Substrings that mark tracking pixels and layout spacers.
	junkMarkers = []string{"1x1", "pixel", "tracking", "spacer"}
)

// Extract returns the image URLs referenced by the HTML in r, resolved
// against base, or against the page's first <base href> when it has one.
// It finds <img src>, src/srcset on <img> and <source>,
// og:image and twitter:image meta tags, CSS url() in style attributes and
// <style> blocks, links to image files and bare imgur links in text.
func Extract(r io.Reader, base *url.URL) []string {
	c := collector{base: base, seen: map[string]bool{}}
	z := html.NewTokenizer(r)
	inStyle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return c.out

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			inStyle = tok.DataAtom == atom.Style
			c.tag(tok)

		case html.EndTagToken:
			inStyle = false

		case html.TextToken:
			text := string(z.Text())
			if inStyle {
				c.css(text)
			}
			for _, m := range imgurLink.FindAllString(text, -1) {
				c.add(m)
			}
		}
	}
}

type collector struct {
	base     *url.URL
	baseSeen bool
	seen     map[string]bool
	out      []string
}

func (c *collector) tag(tok html.Token) {
	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}

	switch tok.DataAtom {
	case atom.Base:
		c.setBase(attrs["href"])

	case atom.Img, atom.Source:
		for _, k := range []string{"src", "data-src", "data-original"} {
			if v, ok := attrs[k]; ok {
				c.add(v)
			}
		}
		c.srcset(attrs["srcset"])
		c.srcset(attrs["data-srcset"])

	case atom.Meta:
		prop := strings.ToLower(attrs["property"])
		if prop == "" {
			prop = strings.ToLower(attrs["name"])
		}
		if prop == "og:image" || prop == "og:image:url" || prop == "twitter:image" {
			c.add(attrs["content"])
		}

	case atom.A:
		if href, ok := attrs["href"]; ok && hasImageExt(href) {
			c.add(href)
		}
	}

	if style, ok := attrs["style"]; ok {
		c.css(style)
	}
}

// setBase applies a <base href>. Only the first one with an href counts.
func (c *collector) setBase(href string) {
	href = strings.TrimSpace(href)
	if c.baseSeen || href == "" {
		return
	}
	c.baseSeen = true
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	c.base = c.base.ResolveReference(ref)
}

// srcset adds each candidate of a srcset list ("a.png 1x, b.png 2x").
func (c *collector) srcset(v string) {
	for _, part := range strings.Split(v, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			c.add(fields[0])
		}
	}
}

func (c *collector) css(s string) {
	if !strings.Contains(s, "url(") {
		return
	}
	for _, m := range cssURL.FindAllStringSubmatch(s, -1) {
		c.add(m[1])
	}
}

func (c *collector) add(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") || isJunk(raw) {
		return
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return
	}
	u := c.base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	u.Fragment = ""

	s := u.String()
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	c.out = append(c.out, s)
}

func isJunk(raw string) bool {
	lower := strings.ToLower(raw)
	for _, m := range junkMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func hasImageExt(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return imageExt[strings.ToLower(path.Ext(u.Path))]
}
