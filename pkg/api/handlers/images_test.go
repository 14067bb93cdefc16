package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/loader"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

type fakeLoader struct {
	mu       sync.Mutex
	entries  map[string]cache.Entry
	errs     map[string]error
	loads    []loadCall
	preloads [][]string
	cancels  [][]string
	cleared  int
}

type loadCall struct {
	key      string
	priority loader.Priority
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{entries: map[string]cache.Entry{}, errs: map[string]error{}}
}

func (f *fakeLoader) Load(_ context.Context, key string, p loader.Priority) (cache.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, loadCall{key, p})
	if err := loader.ValidateKey(key); err != nil {
		return "", err
	}
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	e, ok := f.entries[key]
	if !ok {
		return "", &loader.NetworkError{URL: key, StatusCode: http.StatusNotFound, Err: errors.New("404 Not Found")}
	}
	return e, nil
}

func (f *fakeLoader) Preload(keys ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preloads = append(f.preloads, keys)
	return len(keys)
}

func (f *fakeLoader) CancelPending(keys ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, keys)
	return 1
}

func (f *fakeLoader) GetCached(key string) (cache.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeLoader) ClearMemoryCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.entries = map[string]cache.Entry{}
}

func (f *fakeLoader) Stats() loader.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return loader.Stats{MemoryCacheSize: len(f.entries), MaxConcurrent: 4}
}

type fakeScraper struct {
	images []string
	err    error
}

func (s fakeScraper) Scrape(context.Context, string) ([]string, error) {
	return s.images, s.err
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestGetImage(t *testing.T) {
	const img = "https://example.com/a.png"
	fl := newFakeLoader()
	fl.entries[img] = cache.NewEntry("image/png", pngBytes)
	h := NewImageHandler(fl, nil, 10)

	t.Run("JSON", func(t *testing.T) {
		w := do(t, h.Get, http.MethodGet, "/api/v1/images?url="+img+"&priority=high", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp ImageResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, img, resp.URL)
		assert.Equal(t, "image/png", resp.MediaType)
		assert.Equal(t, len(pngBytes), resp.Size)
		assert.True(t, strings.HasPrefix(resp.DataURL, "data:image/png;base64,"))
		assert.Equal(t, loader.High, fl.loads[len(fl.loads)-1].priority)
	})

	t.Run("Raw", func(t *testing.T) {
		w := do(t, h.Get, http.MethodGet, "/api/v1/images?url="+img+"&raw=1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, pngBytes, w.Body.Bytes())
		assert.Equal(t, loader.Normal, fl.loads[len(fl.loads)-1].priority)
	})

	t.Run("MissingURL", func(t *testing.T) {
		w := do(t, h.Get, http.MethodGet, "/api/v1/images", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeBadRequest, decodeError(t, w).Code)
	})

	t.Run("BadPriority", func(t *testing.T) {
		w := do(t, h.Get, http.MethodGet, "/api/v1/images?url="+img+"&priority=urgent", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetImageErrors(t *testing.T) {
	fl := newFakeLoader()
	fl.errs["https://example.com/canceled.png"] = loader.ErrCanceled
	fl.errs["https://example.com/closed.png"] = loader.ErrClosed
	fl.errs["https://example.com/slow.png"] = fmt.Errorf("wait: %w", context.DeadlineExceeded)
	h := NewImageHandler(fl, nil, 10)

	tests := []struct {
		name     string
		url      string
		status   int
		code     string
		upstream int
	}{
		{"InvalidKey", "ftp://example.com/a.png", http.StatusBadRequest, CodeInvalidURL, 0},
		{"Upstream404", "https://example.com/missing.png", http.StatusBadGateway, CodeUpstreamError, http.StatusNotFound},
		{"Canceled", "https://example.com/canceled.png", http.StatusConflict, CodeCanceled, 0},
		{"Closed", "https://example.com/closed.png", http.StatusServiceUnavailable, CodeUnavailable, 0},
		{"Timeout", "https://example.com/slow.png", http.StatusGatewayTimeout, CodeTimeout, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h.Get, http.MethodGet, "/api/v1/images?url="+tt.url, "")
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.upstream, body.UpstreamStatus)
		})
	}
}

func TestCached(t *testing.T) {
	const img = "https://example.com/a.png"
	fl := newFakeLoader()
	h := NewImageHandler(fl, nil, 10)

	w := do(t, h.Cached, http.MethodGet, "/api/v1/cache?url="+img, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, fl.loads, "cache lookup must not trigger a load")

	fl.entries[img] = cache.NewEntry("image/png", pngBytes)
	w = do(t, h.Cached, http.MethodGet, "/api/v1/cache?url="+img, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClearMemory(t *testing.T) {
	fl := newFakeLoader()
	fl.entries["https://example.com/a.png"] = cache.NewEntry("image/png", pngBytes)
	h := NewImageHandler(fl, nil, 10)

	w := do(t, h.ClearMemory, http.MethodDelete, "/api/v1/cache/memory", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ClearResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Cleared)
	assert.Equal(t, 1, fl.cleared)
}

func TestPreloadAndCancel(t *testing.T) {
	fl := newFakeLoader()
	h := NewImageHandler(fl, nil, 2)

	w := do(t, h.Preload, http.MethodPost, "/api/v1/preload", `{"urls":["https://a/1.png","https://a/2.png"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var pr PreloadResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pr))
	assert.Equal(t, PreloadResponse{Requested: 2, Queued: 2}, pr)

	w = do(t, h.Cancel, http.MethodPost, "/api/v1/cancel", `{"urls":["https://a/1.png"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var cr CancelResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cr))
	assert.Equal(t, CancelResponse{Requested: 1, Canceled: 1}, cr)

	t.Run("TooMany", func(t *testing.T) {
		w := do(t, h.Preload, http.MethodPost, "/api/v1/preload", `{"urls":["a","b","c"]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("Empty", func(t *testing.T) {
		w := do(t, h.Cancel, http.MethodPost, "/api/v1/cancel", `{"urls":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("UnknownField", func(t *testing.T) {
		w := do(t, h.Preload, http.MethodPost, "/api/v1/preload", `{"url":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Len(t, fl.preloads, 1)
	assert.Len(t, fl.cancels, 1)
}

func TestScrape(t *testing.T) {
	fl := newFakeLoader()
	images := []string{"https://example.com/a.png", "https://example.com/b.png"}

	t.Run("ListOnly", func(t *testing.T) {
		h := NewImageHandler(fl, fakeScraper{images: images}, 10)
		w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com/"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ScrapeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, images, resp.Images)
		assert.Zero(t, resp.Queued)
		assert.Empty(t, fl.preloads)
	})

	t.Run("WithPreload", func(t *testing.T) {
		h := NewImageHandler(fl, fakeScraper{images: images}, 10)
		w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com/","preload":true}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ScrapeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Queued)
		assert.Equal(t, [][]string{images}, fl.preloads)
	})

	t.Run("InvalidPage", func(t *testing.T) {
		h := NewImageHandler(fl, fakeScraper{}, 10)
		w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"not a url"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		h := NewImageHandler(fl, fakeScraper{err: errors.New("fetch page: boom")}, 10)
		w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com/"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("Disabled", func(t *testing.T) {
		h := NewImageHandler(fl, nil, 10)
		w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com/"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestStats(t *testing.T) {
	h := NewImageHandler(newFakeLoader(), nil, 10)

	w := do(t, h.Stats, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats loader.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 4, stats.MaxConcurrent)
}

func TestScrapeAlwaysPreload(t *testing.T) {
	fl := newFakeLoader()
	h := NewImageHandler(fl, fakeScraper{images: []string{"https://example.com/a.png"}}, 10).WithScrapePreload(true)

	w := do(t, h.Scrape, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com/"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScrapeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Queued)
}
