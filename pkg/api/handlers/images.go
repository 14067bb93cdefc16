package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/loader"
)

// Loader is the subset of *loader.Loader the image endpoints use.
type Loader interface {
	Load(ctx context.Context, key string, p loader.Priority) (cache.Entry, error)
	Preload(keys ...string) int
	CancelPending(keys ...string) int
	GetCached(key string) (cache.Entry, bool)
	ClearMemoryCache()
	Stats() loader.Stats
}

// Scraper discovers image URLs on a page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) ([]string, error)
}

// ImageHandler serves the /api/v1 image endpoints.
type ImageHandler struct {
	loader        Loader
	scraper       Scraper
	maxBatchSize  int
	alwaysPreload bool
}

// NewImageHandler creates an ImageHandler. scraper may be nil, in which
// case the scrape endpoint answers 503.
func NewImageHandler(l Loader, scraper Scraper, maxBatchSize int) *ImageHandler {
	return &ImageHandler{loader: l, scraper: scraper, maxBatchSize: maxBatchSize}
}

// WithScrapePreload makes every scrape preload what it finds, whatever the
// request asks for.
func (h *ImageHandler) WithScrapePreload(always bool) *ImageHandler {
	h.alwaysPreload = always
	return h
}

// ImageResponse is the JSON form of a cache entry.
type ImageResponse struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	DataURL   string `json:"data_url"`
}

// URLsRequest is the body of preload and cancel.
type URLsRequest struct {
	URLs []string `json:"urls"`
}

// PreloadResponse reports how many retrievals preload queued.
type PreloadResponse struct {
	Requested int `json:"requested"`
	Queued    int `json:"queued"`
}

// CancelResponse reports how many queued retrievals were removed.
type CancelResponse struct {
	Requested int `json:"requested"`
	Canceled  int `json:"canceled"`
}

// ScrapeRequest is the body of POST /api/v1/scrape.
type ScrapeRequest struct {
	URL     string `json:"url"`
	Preload bool   `json:"preload"`
}

// ScrapeResponse lists the images found on a page.
type ScrapeResponse struct {
	Page   string   `json:"page"`
	Images []string `json:"images"`
	Queued int      `json:"queued"`
}

// ClearResponse reports how many memory entries were dropped.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// Get handles GET /api/v1/images?url=&priority=&raw=.
// Loads the image through the scheduler and returns it as JSON, or as raw
// bytes when raw is true.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("url")
	if key == "" {
		BadRequest(w, "url query parameter is required")
		return
	}
	p, err := loader.ParsePriority(q.Get("priority"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	ctx := logger.WithContext(r.Context(), logContext(r).WithImage(key, p.String()))
	e, err := h.loader.Load(ctx, key, p)
	if err != nil {
		logger.DebugCtx(ctx, "Load failed", logger.Err(err))
		writeLoadError(w, err)
		return
	}
	writeEntry(w, r, key, e)
}

// Cached handles GET /api/v1/cache?url=.
// Answers from the memory tier only; 404 when absent.
func (h *ImageHandler) Cached(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("url")
	if key == "" {
		BadRequest(w, "url query parameter is required")
		return
	}
	e, ok := h.loader.GetCached(key)
	if !ok {
		NotFound(w, "not in memory cache")
		return
	}
	writeEntry(w, r, key, e)
}

// ClearMemory handles DELETE /api/v1/cache/memory.
func (h *ImageHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	n := h.loader.Stats().MemoryCacheSize
	h.loader.ClearMemoryCache()
	writeJSON(w, http.StatusOK, ClearResponse{Cleared: n})
}

// Preload handles POST /api/v1/preload.
func (h *ImageHandler) Preload(w http.ResponseWriter, r *http.Request) {
	urls, ok := h.decodeURLs(w, r)
	if !ok {
		return
	}
	n := h.loader.Preload(urls...)
	writeJSON(w, http.StatusAccepted, PreloadResponse{Requested: len(urls), Queued: n})
}

// Cancel handles POST /api/v1/cancel.
func (h *ImageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	urls, ok := h.decodeURLs(w, r)
	if !ok {
		return
	}
	n := h.loader.CancelPending(urls...)
	writeJSON(w, http.StatusOK, CancelResponse{Requested: len(urls), Canceled: n})
}

// Scrape handles POST /api/v1/scrape.
// Lists the images on a page and optionally preloads them.
func (h *ImageHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "scraping is disabled")
		return
	}

	var req ScrapeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := loader.ValidateKey(req.URL); err != nil {
		writeLoadError(w, err)
		return
	}

	images, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorBody{Code: CodeUpstreamError, Message: err.Error()})
		return
	}
	if images == nil {
		images = []string{}
	}

	resp := ScrapeResponse{Page: req.URL, Images: images}
	if req.Preload || h.alwaysPreload {
		resp.Queued = h.loader.Preload(images...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/v1/stats.
func (h *ImageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loader.Stats())
}

func (h *ImageHandler) decodeURLs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req URLsRequest
	if !decodeJSONBody(w, r, &req) {
		return nil, false
	}
	if len(req.URLs) == 0 {
		BadRequest(w, "urls must not be empty")
		return nil, false
	}
	if h.maxBatchSize > 0 && len(req.URLs) > h.maxBatchSize {
		BadRequest(w, fmt.Sprintf("too many urls: %d (max %d)", len(req.URLs), h.maxBatchSize))
		return nil, false
	}
	return req.URLs, true
}

// writeEntry writes e as JSON, or decoded with its own media type when the
// raw query parameter is true.
func writeEntry(w http.ResponseWriter, r *http.Request, key string, e cache.Entry) {
	raw, _ := strconv.ParseBool(r.URL.Query().Get("raw"))

	mediaType, data, err := e.Decode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "corrupt cache entry")
		return
	}

	if !raw {
		writeJSON(w, http.StatusOK, ImageResponse{
			URL:       key,
			MediaType: mediaType,
			Size:      len(data),
			DataURL:   e.String(),
		})
		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func logContext(r *http.Request) *logger.LogContext {
	if lc := logger.FromContext(r.Context()); lc != nil {
		return lc
	}
	return logger.NewLogContext("")
}
