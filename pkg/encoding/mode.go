package encoding

import (
	"fmt"
	"strings"
)

// Mode selects whether scalars carry a Kind tag on the wire.
type Mode uint8

const (
	// Untagged writes bare payloads; the reader relies on the schema to know
	// what comes next. Strings keep their length prefix.
	Untagged Mode = iota
	// Tagged prefixes every scalar with its 1-byte Kind tag.
	Tagged
)

func (m Mode) String() string {
	switch m {
	case Untagged:
		return "untagged"
	case Tagged:
		return "tagged"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if m != Untagged && m != Tagged {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "untagged":
		*m = Untagged
	case "tagged":
		*m = Tagged
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, string(text))
	}
	return nil
}
