package encoding

import (
	"fmt"
	"io"
	"math"

	"github.com/zeusync/graphcodec/pkg/encoding/wireformat"
)

// Writer applies the wire format to a sequential output stream. It is not safe
// for concurrent use.
type Writer struct {
	w       io.Writer
	mode    Mode
	scratch []byte
	written int64
}

// NewWriter returns a Writer emitting to w in the given mode.
func NewWriter(w io.Writer, mode Mode) *Writer {
	return &Writer{
		w:       w,
		mode:    mode,
		scratch: make([]byte, 0, 1+wireformat.LongSize),
	}
}

func (w *Writer) Mode() Mode {
	return w.mode
}

// Written returns the number of bytes handed to the underlying stream.
func (w *Writer) Written() int64 {
	return w.written
}

func (w *Writer) WriteBool(v bool) error {
	return w.emit(wireformat.AppendBool(w.head(KindBoolean), v))
}

func (w *Writer) WriteInt8(v int8) error {
	return w.emit(wireformat.AppendInt8(w.head(KindByte), v))
}

func (w *Writer) WriteChar(v Char) error {
	return w.emit(wireformat.AppendChar(w.head(KindChar), uint16(v)))
}

func (w *Writer) WriteInt16(v int16) error {
	return w.emit(wireformat.AppendInt16(w.head(KindShort), v))
}

func (w *Writer) WriteInt32(v int32) error {
	return w.emit(wireformat.AppendInt32(w.head(KindInteger), v))
}

func (w *Writer) WriteInt64(v int64) error {
	return w.emit(wireformat.AppendInt64(w.head(KindLong), v))
}

func (w *Writer) WriteFloat32(v float32) error {
	return w.emit(wireformat.AppendFloat32(w.head(KindFloat), v))
}

func (w *Writer) WriteFloat64(v float64) error {
	return w.emit(wireformat.AppendFloat64(w.head(KindDouble), v))
}

// WriteString writes the tag (in Tagged mode), the 4-byte UTF-8 length and the
// bytes of s.
func (w *Writer) WriteString(s string) error {
	if uint64(len(s)) > wireformat.MaxStringLength {
		return newError(ErrUnsupportedType, nil, wireformat.ErrStringTooLarge.Error())
	}
	if err := w.emit(wireformat.AppendLength(w.head(KindString), uint32(len(s)))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	n, err := io.WriteString(w.w, s)
	w.written += int64(n)
	if err != nil {
		return &Error{Err: ErrStreamIO, Cause: err}
	}
	return nil
}

// WriteCount writes a container element count as an Integer.
func (w *Writer) WriteCount(n int) error {
	if n < 0 || n > math.MaxInt32 {
		return newError(ErrUnsupportedType, nil, fmt.Sprintf("container length %d does not fit a 4-byte count", n))
	}
	return w.WriteInt32(int32(n))
}

// WriteKind writes k as a raw tag byte regardless of mode. Custom marshalers
// use it to discriminate variants.
func (w *Writer) WriteKind(k Kind) error {
	w.scratch = append(w.scratch[:0], byte(k))
	return w.emit(w.scratch)
}

// Flush flushes the underlying stream if it buffers.
func (w *Writer) Flush() error {
	f, ok := w.w.(interface{ Flush() error })
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return &Error{Err: ErrStreamIO, Cause: err}
	}
	return nil
}

func (w *Writer) head(k Kind) []byte {
	w.scratch = w.scratch[:0]
	if w.mode == Tagged {
		w.scratch = append(w.scratch, byte(k))
	}
	return w.scratch
}

func (w *Writer) emit(b []byte) error {
	n, err := w.w.Write(b)
	w.written += int64(n)
	if err != nil {
		return &Error{Err: ErrStreamIO, Cause: err}
	}
	return nil
}
