package bytesize

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/invopop/jsonschema"
)

// ByteSize is a size in bytes that can be decoded from human-readable strings
// such as "64Mi", "10MB", "1.5GiB" or a plain number of bytes.
//
// Binary suffixes (Ki, Mi, Gi, Ti with or without a trailing B) are powers of
// 1024; decimal suffixes (K, M, G, T with or without B) are powers of 1000.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = humanize.KByte
	MB ByteSize = humanize.MByte
	GB ByteSize = humanize.GByte

	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
)

// ParseByteSize parses a human-readable size.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText lets ByteSize be decoded directly by mapstructure and yaml.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText renders the size in IEC units so it round-trips through config files.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String returns the size in IEC units, e.g. "64 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Int64 returns the size as an int64, saturating on overflow.
func (b ByteSize) Int64() int64 {
	if uint64(b) > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(b)
}

// JSONSchema describes ByteSize as either a byte count or a size string.
func (ByteSize) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer"},
			{Type: "string", Pattern: `^\s*[0-9.]+\s*[A-Za-z]*\s*$`},
		},
		Description: "Size in bytes, or a string such as 64MiB or 10MB",
	}
}
