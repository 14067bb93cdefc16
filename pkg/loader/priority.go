package loader

import (
	"fmt"
	"strings"
)

// Priority orders pending retrievals. Lower values are admitted first.
type Priority int

const (
	High   Priority = 0
	Normal Priority = 1
	Low    Priority = 2
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of High, Normal or Low.
func (p Priority) Valid() bool {
	return p >= High && p <= Low
}

// ParsePriority parses "high", "normal" or "low" (any case) or the numeric
// forms "0", "1" and "2". An empty string is Normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "1":
		return Normal, nil
	case "high", "0":
		return High, nil
	case "low", "2":
		return Low, nil
	default:
		return Normal, fmt.Errorf("unknown priority %q (expected high, normal or low)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
