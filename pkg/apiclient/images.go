package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/marmos91/imgloader/pkg/api/handlers"
	"github.com/marmos91/imgloader/pkg/loader"
)

// Image is an image returned by the API.
type Image = handlers.ImageResponse

// RawImage is an image's decoded bytes.
type RawImage struct {
	MediaType string
	Data      []byte
}

// Health is the body of the health endpoints.
type Health = handlers.Response

// Image loads imageURL through the server's scheduler.
func (c *Client) Image(ctx context.Context, imageURL string, p loader.Priority) (*Image, error) {
	var img Image
	if err := c.get(ctx, imagePath(imageURL, p, false), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// ImageRaw loads imageURL and returns its decoded bytes.
func (c *Client) ImageRaw(ctx context.Context, imageURL string, p loader.Priority) (*RawImage, error) {
	resp, err := c.send(ctx, http.MethodGet, imagePath(imageURL, p, true), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return &RawImage{MediaType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// Cached returns the memory-tier copy of imageURL. The error satisfies
// IsNotFound when the image is not cached.
func (c *Client) Cached(ctx context.Context, imageURL string) (*Image, error) {
	var img Image
	if err := c.get(ctx, "/api/v1/cache?url="+url.QueryEscape(imageURL), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// ClearMemory empties the server's memory tier and returns how many
// entries it held.
func (c *Client) ClearMemory(ctx context.Context) (int, error) {
	var resp handlers.ClearResponse
	if err := c.delete(ctx, "/api/v1/cache/memory", &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// Preload queues low-priority retrievals and returns how many were queued.
func (c *Client) Preload(ctx context.Context, urls ...string) (int, error) {
	var resp handlers.PreloadResponse
	if err := c.post(ctx, "/api/v1/preload", handlers.URLsRequest{URLs: urls}, &resp); err != nil {
		return 0, err
	}
	return resp.Queued, nil
}

// Cancel drops queued retrievals and returns how many were removed.
func (c *Client) Cancel(ctx context.Context, urls ...string) (int, error) {
	var resp handlers.CancelResponse
	if err := c.post(ctx, "/api/v1/cancel", handlers.URLsRequest{URLs: urls}, &resp); err != nil {
		return 0, err
	}
	return resp.Canceled, nil
}

// Scrape lists the images on pageURL, preloading them when preload is set.
func (c *Client) Scrape(ctx context.Context, pageURL string, preload bool) (*handlers.ScrapeResponse, error) {
	var resp handlers.ScrapeResponse
	req := handlers.ScrapeRequest{URL: pageURL, Preload: preload}
	if err := c.post(ctx, "/api/v1/scrape", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the scheduler and cache counters.
func (c *Client) Stats(ctx context.Context) (*loader.Stats, error) {
	var stats loader.Stats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health queries liveness, or readiness when ready is set. An unhealthy
// server yields both the decoded body and an error.
func (c *Client) Health(ctx context.Context, ready bool) (*Health, error) {
	path := "/health"
	if ready {
		path = "/health/ready"
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &h, &APIError{StatusCode: resp.StatusCode, Code: "UNAVAILABLE", Message: h.Error}
	}
	return &h, nil
}

func imagePath(imageURL string, p loader.Priority, raw bool) string {
	q := url.Values{}
	q.Set("url", imageURL)
	q.Set("priority", p.String())
	if raw {
		q.Set("raw", "true")
	}
	return "/api/v1/images?" + q.Encode()
}
