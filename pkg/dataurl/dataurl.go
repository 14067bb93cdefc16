// Package dataurl encodes image payloads as self-contained RFC 2397 data URLs,
// the representation stored in every cache tier and handed to consumers.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/imgloader/pkg/bufpool"
)

// DefaultMediaType is used when neither the origin nor content sniffing
// yields a usable type.
const DefaultMediaType = "application/octet-stream"

const prefix = "data:"

// ErrMalformed is returned by Decode for strings that are not data URLs.
var ErrMalformed = errors.New("malformed data URL")

// Encode returns "data:<mediaType>;base64,<payload>". An empty or unparsable
// mediaType is replaced with a type sniffed from data.
func Encode(mediaType string, data []byte) string {
	mediaType = NormalizeMediaType(mediaType, data)

	var b strings.Builder
	b.Grow(len(prefix) + len(mediaType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(prefix)
	b.WriteString(mediaType)
	b.WriteString(";base64,")

	scratch := bufpool.Get(base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(scratch, data)
	b.Write(scratch)
	bufpool.Put(scratch)
	return b.String()
}

// NormalizeMediaType returns the lowercase type/subtype of contentType with
// parameters such as charset stripped, falling back to content sniffing.
func NormalizeMediaType(contentType string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "/") {
		return mt
	}
	if len(data) == 0 {
		return DefaultMediaType
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return DefaultMediaType
	}
	return mt
}

// Decode parses a data URL, returning its media type and payload. Both the
// base64 and the percent-encoded forms are accepted; a missing media type
// defaults to "text/plain" as RFC 2397 specifies.
func Decode(s string) (mediaType string, data []byte, err error) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", nil, fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}
	meta, payload, ok := strings.Cut(s[len(prefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma", ErrMalformed)
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}

	mediaType = "text/plain"
	if meta != "" {
		mt, _, perr := mime.ParseMediaType(meta)
		if perr != nil {
			return "", nil, fmt.Errorf("%w: media type: %v", ErrMalformed, perr)
		}
		mediaType = mt
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return mediaType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return mediaType, []byte(unescaped), nil
}

// IsDataURL reports whether s uses the data: scheme.
func IsDataURL(s string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// MediaType returns the media type of a data URL without decoding its payload.
func MediaType(s string) string {
	if !IsDataURL(s) {
		return ""
	}
	meta, _, ok := strings.Cut(s[len(prefix):], ",")
	if !ok {
		return ""
	}
	meta = strings.TrimSuffix(meta, ";base64")
	if meta == "" {
		return "text/plain"
	}
	mt, _, err := mime.ParseMediaType(meta)
	if err != nil {
		return ""
	}
	return mt
}

// IsImage reports whether mediaType is an image/* type.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}
