package cache

import (
	"github.com/marmos91/imgloader/pkg/dataurl"
)

// Entry is a cached image: a self-contained "data:<mime>;base64,<payload>"
// string. Entries are immutable.
type Entry string

// NewEntry encodes data as an Entry of the given media type.
func NewEntry(mediaType string, data []byte) Entry {
	return Entry(dataurl.Encode(mediaType, data))
}

// MediaType returns the entry's media type without decoding the payload.
func (e Entry) MediaType() string {
	return dataurl.MediaType(string(e))
}

// Decode returns the media type and raw image bytes.
func (e Entry) Decode() (string, []byte, error) {
	return dataurl.Decode(string(e))
}

// Size is the entry's footprint in the memory tier.
func (e Entry) Size() int {
	return len(e)
}

// Valid reports whether e looks like a data URL. Values read back from a
// durable store are checked before being promoted.
func (e Entry) Valid() bool {
	return dataurl.IsDataURL(string(e))
}

func (e Entry) String() string {
	return string(e)
}

// Tier names the cache level that answered a lookup.
type Tier string

const (
	TierMemory  Tier = "memory"
	TierDurable Tier = "durable"
	TierNone    Tier = "none"
)
