package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/zeusync/graphcodec/pkg/encoding/wireformat"
)

// Strings up to this size are read into a single allocation; longer ones grow
// as bytes actually arrive so a forged length cannot force a huge allocation.
const directStringRead = 64 << 10

// Reader decodes the wire format from a sequential input stream. It is not
// safe for concurrent use.
type Reader struct {
	r        io.Reader
	mode     Mode
	buf      [wireformat.LongSize]byte
	consumed int64
}

// NewReader returns a Reader consuming r in the given mode. The reader never
// reads past the last byte it needs, so r may carry further data.
func NewReader(r io.Reader, mode Mode) *Reader {
	return &Reader{r: r, mode: mode}
}

func (r *Reader) Mode() Mode {
	return r.mode
}

// Consumed returns the number of bytes read from the underlying stream.
func (r *Reader) Consumed() int64 {
	return r.consumed
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.scalar(KindBoolean)
	if err != nil {
		return false, err
	}
	v, err := wireformat.Bool(b)
	if err != nil {
		return false, malformed(nil, fmt.Sprintf("boolean byte 0x%02x", b[0]))
	}
	return v, nil
}

func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.scalar(KindByte)
	if err != nil {
		return 0, err
	}
	return wireformat.Int8(b), nil
}

func (r *Reader) ReadChar() (Char, error) {
	b, err := r.scalar(KindChar)
	if err != nil {
		return 0, err
	}
	return Char(wireformat.Char(b)), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	b, err := r.scalar(KindShort)
	if err != nil {
		return 0, err
	}
	return wireformat.Int16(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.scalar(KindInteger)
	if err != nil {
		return 0, err
	}
	return wireformat.Int32(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.scalar(KindLong)
	if err != nil {
		return 0, err
	}
	return wireformat.Int64(b), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.scalar(KindFloat)
	if err != nil {
		return 0, err
	}
	return wireformat.Float32(b), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.scalar(KindDouble)
	if err != nil {
		return 0, err
	}
	return wireformat.Float64(b), nil
}

// ReadString reads the 4-byte length and then exactly that many bytes. The
// payload is not validated as UTF-8.
func (r *Reader) ReadString() (string, error) {
	if err := r.expect(KindString); err != nil {
		return "", err
	}
	return r.stringPayload()
}

func (r *Reader) stringPayload() (string, error) {
	b, err := r.fill(wireformat.LengthSize)
	if err != nil {
		return "", err
	}
	n := int64(wireformat.Length(b))
	if n == 0 {
		return "", nil
	}

	if sized, ok := r.r.(interface{ Len() int }); ok && n > int64(sized.Len()) {
		return "", truncated(n, int64(sized.Len()))
	}

	if n <= directStringRead {
		payload := make([]byte, n)
		read, err := io.ReadFull(r.r, payload)
		r.consumed += int64(read)
		if err != nil {
			return "", r.streamErr(err, n, int64(read))
		}
		return string(payload), nil
	}

	var sb bytes.Buffer
	sb.Grow(directStringRead)
	read, err := io.CopyN(&sb, r.r, n)
	r.consumed += read
	if err != nil {
		return "", r.streamErr(err, n, read)
	}
	return sb.String(), nil
}

// ReadCount reads a container element count written by Writer.WriteCount.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, malformed(nil, fmt.Sprintf("negative container length %d", n))
	}
	return int(n), nil
}

// ReadKind reads a raw tag byte regardless of mode.
func (r *Reader) ReadKind() (Kind, error) {
	b, err := r.fill(1)
	if err != nil {
		return KindInvalid, err
	}
	return Kind(b[0]), nil
}

func (r *Reader) scalar(k Kind) ([]byte, error) {
	if err := r.expect(k); err != nil {
		return nil, err
	}
	return r.fill(k.Size())
}

func (r *Reader) expect(k Kind) error {
	if r.mode != Tagged {
		return nil
	}
	got, err := r.ReadKind()
	if err != nil {
		return err
	}
	if got != k {
		return malformed(nil, fmt.Sprintf("expected %s tag, found %s", k, got))
	}
	return nil
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	read, err := io.ReadFull(r.r, b)
	r.consumed += int64(read)
	if err != nil {
		return nil, r.streamErr(err, int64(n), int64(read))
	}
	return b, nil
}

func (r *Reader) streamErr(err error, need, got int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return truncated(need, got)
	}
	return &Error{Err: ErrStreamIO, Cause: err}
}

func truncated(need, got int64) *Error {
	return newError(ErrTruncatedStream, nil, fmt.Sprintf("need %d bytes, %d available", need, got))
}
