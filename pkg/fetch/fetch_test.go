package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/dataurl"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchImage(t *testing.T) {
	var gotUA, gotAccept string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})

	c := New(DefaultConfig())
	res, err := c.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.MediaType)
	assert.Equal(t, pngHeader, res.Body)
	assert.Equal(t, "imgloader/1.0", gotUA)
	assert.Contains(t, gotAccept, "image/*")

	mt, data, err := dataurl.Decode(res.DataURL())
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)
	assert.Equal(t, pngHeader, data)
}

func TestFetchSniffsMissingContentType(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(pngHeader)
	})

	res, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MediaType)
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		code      int
		temporary bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			})

			_, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL)
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.StatusCode)
			assert.Equal(t, tt.code, StatusCode(err))
			assert.Equal(t, tt.temporary, Temporary(err))
		})
	}
}

func TestFetchRejectsNonImage(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	})

	_, err := New(DefaultConfig()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNotImage)
	assert.False(t, Temporary(err))

	cfg := DefaultConfig()
	cfg.AllowAnyContentType = true
	res, err := New(cfg).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.MediaType)
}

func TestFetchSizeCap(t *testing.T) {
	big := append(append([]byte{}, pngHeader...), make([]byte, 1024)...)

	t.Run("declared length", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(big)
		})

		cfg := DefaultConfig()
		cfg.MaxBytes = 512
		_, err := New(cfg).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("chunked", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			for i := 0; i < 4; i++ {
				_, _ = w.Write(big[:300])
				w.(http.Flusher).Flush()
			}
		})

		cfg := DefaultConfig()
		cfg.MaxBytes = 512
		_, err := New(cfg).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("exactly at cap", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(big[:512])
		})

		cfg := DefaultConfig()
		cfg.MaxBytes = 512
		res, err := New(cfg).Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Len(t, res.Body, 512)
	})
}

func TestFetchStripsRefererOnRedirect(t *testing.T) {
	var gotReferer, gotCookie string
	var final *httptest.Server
	final = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write([]byte("GIF89a"))
	})
	redirect := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "secret"})
		http.Redirect(w, r, final.URL+"/img.gif", http.StatusFound)
	})

	res, err := New(DefaultConfig()).Fetch(context.Background(), redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", res.MediaType)
	assert.Empty(t, gotReferer)
	assert.Empty(t, gotCookie)
}

func TestFetchRedirectLimit(t *testing.T) {
	var hops int
	var srv *httptest.Server
	srv = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("%s/%d", srv.URL, hops), http.StatusFound)
	})

	cfg := DefaultConfig()
	cfg.MaxRedirects = 2
	_, err := New(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
	assert.Equal(t, 3, hops)
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(DefaultConfig()).Fetch(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.True(t, Temporary(err))
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := New(DefaultConfig()).Fetch(context.Background(), "http://bad host/\x7f")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.False(t, Temporary(err))
}

func TestFetchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig()).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "canceled"))
}
