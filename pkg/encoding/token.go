package encoding

import (
	"errors"
	"fmt"
	"io"

	"github.com/zeusync/graphcodec/pkg/encoding/wireformat"
)

// Token is one tagged item of a Tagged stream. Value holds the decoded scalar
// (bool, int8, Char, int16, int32, int64, float32, float64 or string) and is
// nil for raw Object, Collection and Array tags written with WriteKind.
type Token struct {
	Offset int64
	Kind   Kind
	Value  any
}

func (t Token) String() string {
	if t.Value == nil {
		return fmt.Sprintf("%d %s", t.Offset, t.Kind)
	}
	if s, ok := t.Value.(string); ok {
		return fmt.Sprintf("%d %s %q", t.Offset, t.Kind, s)
	}
	return fmt.Sprintf("%d %s %v", t.Offset, t.Kind, t.Value)
}

// Next reads the next token of a Tagged stream without knowing its schema.
// It returns io.EOF when the stream ends on a token boundary.
func (r *Reader) Next() (Token, error) {
	if r.mode != Tagged {
		return Token{}, malformed(nil, "tokens can only be read from a tagged stream")
	}

	offset := r.consumed
	n, err := io.ReadFull(r.r, r.buf[:1])
	r.consumed += int64(n)
	if errors.Is(err, io.EOF) {
		return Token{}, io.EOF
	}
	if err != nil {
		return Token{}, r.streamErr(err, 1, int64(n))
	}

	tok := Token{Offset: offset, Kind: Kind(r.buf[0])}
	if !tok.Kind.Valid() {
		return Token{}, malformed(nil, fmt.Sprintf("unknown tag 0x%02x at offset %d", r.buf[0], offset))
	}
	if !tok.Kind.IsScalar() {
		return tok, nil
	}
	if tok.Kind == KindString {
		tok.Value, err = r.stringPayload()
		return tok, err
	}

	b, err := r.fill(tok.Kind.Size())
	if err != nil {
		return Token{}, err
	}
	switch tok.Kind {
	case KindBoolean:
		v, berr := wireformat.Bool(b)
		if berr != nil {
			return Token{}, malformed(nil, fmt.Sprintf("boolean byte 0x%02x at offset %d", b[0], offset+1))
		}
		tok.Value = v
	case KindByte:
		tok.Value = wireformat.Int8(b)
	case KindChar:
		tok.Value = Char(wireformat.Char(b))
	case KindShort:
		tok.Value = wireformat.Int16(b)
	case KindInteger:
		tok.Value = wireformat.Int32(b)
	case KindLong:
		tok.Value = wireformat.Int64(b)
	case KindFloat:
		tok.Value = wireformat.Float32(b)
	case KindDouble:
		tok.Value = wireformat.Float64(b)
	}
	return tok, nil
}
