package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"1024", 1024},
		{"64Mi", 64 * MiB},
		{"64MiB", 64 * MiB},
		{"10MB", 10 * MB},
		{"10 mb", 10 * MB},
		{"1.5GiB", GiB + GiB/2},
		{" 2Ki ", 2 * KiB},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteSizeErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "lots", "12 parsecs", "-5MB"} {
		_, err := ParseByteSize(in)
		assert.Error(t, err, in)
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("256Mi")))
	assert.Equal(t, 256*MiB, b)

	text, err := b.MarshalText()
	require.NoError(t, err)

	var back ByteSize
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, b, back)
}

func TestString(t *testing.T) {
	assert.Equal(t, "512 B", ByteSize(512).String())
	assert.Equal(t, "64 MiB", (64 * MiB).String())
	assert.Equal(t, int64(1024), KiB.Int64())
}

func TestJSONSchema(t *testing.T) {
	s := ByteSize(0).JSONSchema()
	if len(s.OneOf) != 2 {
		t.Fatalf("OneOf has %d alternatives, want 2", len(s.OneOf))
	}
	if s.OneOf[0].Type != "integer" || s.OneOf[1].Type != "string" {
		t.Errorf("unexpected alternatives: %s, %s", s.OneOf[0].Type, s.OneOf[1].Type)
	}
}
