package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/api/handlers"
	"github.com/marmos91/imgloader/pkg/loader"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.BaseURL())

	short := client.WithTimeout(time.Second)
	assert.Equal(t, time.Second, short.httpClient.Timeout)
	assert.Equal(t, 90*time.Second, client.httpClient.Timeout)
}

func TestDoWithSuccess(t *testing.T) {
	type Response struct {
		Message string `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Content-Type"), "GET carries no body")
		_ = json.NewEncoder(w).Encode(Response{Message: "success"})
	}))
	defer server.Close()

	var resp Response
	require.NoError(t, New(server.URL).get(context.Background(), "/test", &resp))
	assert.Equal(t, "success", resp.Message)
}

func TestDoWithAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(handlers.ErrorBody{
			Code:           handlers.CodeUpstreamError,
			Message:        "fetch https://x/a.png: 404 Not Found",
			UpstreamStatus: http.StatusNotFound,
		})
	}))
	defer server.Close()

	err := New(server.URL).get(context.Background(), "/test", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, http.StatusNotFound, apiErr.UpstreamStatus)
	assert.True(t, apiErr.IsUpstream())
	assert.Contains(t, apiErr.Error(), "origin returned 404")
}

func TestDoWithPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := New(server.URL).get(context.Background(), "/missing", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "404 page not found", apiErr.Message)
}

func TestDoWithPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/preload", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req handlers.URLsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"https://a/1.png", "https://a/2.png"}, req.URLs)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(handlers.PreloadResponse{Requested: 2, Queued: 1})
	}))
	defer server.Close()

	n, err := New(server.URL).Preload(context.Background(), "https://a/1.png", "https://a/2.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImageQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "https://example.com/a b.png", q.Get("url"))
		assert.Equal(t, "high", q.Get("priority"))

		if q.Get("raw") == "true" {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png"))
			return
		}
		_ = json.NewEncoder(w).Encode(handlers.ImageResponse{URL: q.Get("url"), MediaType: "image/png", Size: 3})
	}))
	defer server.Close()

	c := New(server.URL)

	img, err := c.Image(context.Background(), "https://example.com/a b.png", loader.High)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Size)

	raw, err := c.ImageRaw(context.Background(), "https://example.com/a b.png", loader.High)
	require.NoError(t, err)
	assert.Equal(t, "image/png", raw.MediaType)
	assert.Equal(t, []byte("png"), raw.Data)
}

func TestHealthUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(handlers.Response{Status: "unhealthy", Error: "loader closed"})
	}))
	defer server.Close()

	h, err := New(server.URL).Health(context.Background(), true)
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "unhealthy", h.Status)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnavailable())
}

func TestContextCancel(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL).Stats(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
