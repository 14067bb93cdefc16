// Package fetch retrieves images from their origin over HTTP(S).
//
// Requests carry no cookies, no credentials and no Referer header. Bodies
// are size-capped, and responses that are not images are rejected unless
// the client is configured otherwise.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/bufpool"
	"github.com/marmos91/imgloader/pkg/dataurl"
)

// Config configures a Client.
type Config struct {
	// Timeout bounds a whole request including the body read
	Timeout time.Duration

	// MaxBytes caps the body size. Zero disables the cap.
	MaxBytes int64

	UserAgent    string
	MaxRedirects int

	// AllowAnyContentType accepts responses whose media type is not image/*
	AllowAnyContentType bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxBytes:     20 << 20,
		UserAgent:    "imgloader/1.0",
		MaxRedirects: 5,
	}
}

// Result is a successfully retrieved image.
type Result struct {
	URL        string
	StatusCode int
	MediaType  string
	Body       []byte
}

// DataURL encodes the result as a self-contained data URL.
func (r *Result) DataURL() string {
	return dataurl.Encode(r.MediaType, r.Body)
}

// Client fetches images. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client with its own transport.
func New(cfg Config) *Client {
	return NewWithTransport(cfg, http.DefaultTransport)
}

// NewWithTransport creates a Client on top of rt, instrumented for tracing.
func NewWithTransport(cfg Config, rt http.RoundTripper) *Client {
	c := &Client{cfg: cfg}
	c.httpClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(rt,
			otelhttp.WithTracerProvider(telemetry.TracerProvider()),
			// Trace context stays inside; origins are third parties.
			otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()),
		),
		CheckRedirect: c.checkRedirect,
		// No Jar: cookies are never stored or sent.
	}
	return c
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > c.cfg.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", c.cfg.MaxRedirects)
	}
	req.Header.Del("Referer")
	req.Header.Del("Authorization")
	req.Header.Del("Cookie")
	return nil
}

// Fetch performs a GET for url and returns the body.
//
// Errors are *StatusError for non-2xx responses, ErrTooLarge when the body
// exceeds MaxBytes, ErrNotImage for non-image content, or a transport error.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, span := telemetry.StartImageSpan(ctx, telemetry.SpanFetch, url)
	defer span.End()

	res, err := c.do(ctx, url)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		telemetry.HTTPStatus(res.StatusCode),
		telemetry.MIMEType(res.MediaType),
		telemetry.Bytes(len(res.Body)),
	)
	return res, nil
}

func (c *Client) do(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if c.cfg.MaxBytes > 0 && resp.ContentLength > c.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: content length %d exceeds %d", ErrTooLarge, resp.ContentLength, c.cfg.MaxBytes)
	}

	body, err := c.readBody(resp.Body, resp.ContentLength)
	if err != nil {
		return nil, err
	}

	mediaType := dataurl.NormalizeMediaType(resp.Header.Get("Content-Type"), body)
	if !c.cfg.AllowAnyContentType && !dataurl.IsImage(mediaType) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mediaType)
	}

	return &Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		MediaType:  mediaType,
		Body:       body,
	}, nil
}

func (c *Client) readBody(r io.Reader, contentLength int64) ([]byte, error) {
	limit := c.cfg.MaxBytes
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	var body bytes.Buffer
	if contentLength > 0 && (limit <= 0 || contentLength <= limit) {
		body.Grow(int(contentLength))
	}

	scratch := bufpool.Get(bufpool.DefaultSmallSize)
	defer bufpool.Put(scratch)
	// Wrapped so CopyBuffer reads through scratch instead of ReadFrom.
	if _, err := io.CopyBuffer(struct{ io.Writer }{&body}, struct{ io.Reader }{r}, scratch); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if limit > 0 && int64(body.Len()) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, limit)
	}
	return body.Bytes(), nil
}

var (
	// ErrTooLarge is returned when a body exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("image too large")

	// ErrNotImage is returned for responses whose media type is not image/*.
	ErrNotImage = errors.New("response is not an image")

	// ErrInvalidURL is returned when no request can be built for the URL.
	ErrInvalidURL = errors.New("invalid request url")
)

// StatusError reports a non-2xx origin response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "unexpected status: " + e.Status
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// StatusCode extracts the origin status from err, or 0 when err did not
// come from a response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Temporary reports whether a retry might succeed: 5xx, 408, 429 and
// transport failures. Size and media type rejections are permanent.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests || se.StatusCode == http.StatusRequestTimeout
	}
	return !errors.Is(err, ErrTooLarge) && !errors.Is(err, ErrNotImage) && !errors.Is(err, ErrInvalidURL)
}
