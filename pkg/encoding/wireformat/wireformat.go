// Package wireformat holds the fixed big-endian byte layouts of every scalar
// kind. All functions are pure: Append* functions extend dst and return it,
// decoding functions read from the front of src and expect it to hold at least
// the kind's size.
package wireformat

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf8"
)

// Fixed wire widths in bytes.
const (
	BoolSize   = 1
	ByteSize   = 1
	CharSize   = 2
	ShortSize  = 2
	IntSize    = 4
	LongSize   = 8
	FloatSize  = 4
	DoubleSize = 8

	// LengthSize is the width of the unsigned length prefix in front of a string
	// payload and of the element count in front of a container.
	LengthSize = 4
)

// MaxStringLength is the largest payload a 4-byte length prefix can describe.
const MaxStringLength = math.MaxUint32

var (
	ErrInvalidBool    = errors.New("wireformat: invalid boolean byte")
	ErrStringTooLarge = errors.New("wireformat: string exceeds 4-byte length prefix")
)

func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 0x01)
	}
	return append(dst, 0x00)
}

func AppendInt8(dst []byte, v int8) []byte {
	return append(dst, byte(v))
}

// AppendChar writes a single UTF-16 code unit.
func AppendChar(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func AppendInt16(dst []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(dst, uint16(v))
}

func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

func AppendInt64(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v))
}

func AppendFloat32(dst []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
}

func AppendFloat64(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
}

// AppendLength writes an unsigned 4-byte length or element count.
func AppendLength(dst []byte, n uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, n)
}

// AppendString writes the UTF-8 byte length followed by the bytes. The length
// counts bytes, not characters.
func AppendString(dst []byte, s string) ([]byte, error) {
	if uint64(len(s)) > MaxStringLength {
		return dst, ErrStringTooLarge
	}
	dst = AppendLength(dst, uint32(len(s)))
	return append(dst, s...), nil
}

// Bool decodes a boolean byte. Only 0x00 and 0x01 are valid.
func Bool(src []byte) (bool, error) {
	switch src[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func Int8(src []byte) int8 {
	return int8(src[0])
}

func Char(src []byte) uint16 {
	return binary.BigEndian.Uint16(src)
}

func Int16(src []byte) int16 {
	return int16(binary.BigEndian.Uint16(src))
}

func Int32(src []byte) int32 {
	return int32(binary.BigEndian.Uint32(src))
}

func Int64(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src))
}

func Float32(src []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(src))
}

func Float64(src []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(src))
}

func Length(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}

// ValidString reports whether payload is well-formed UTF-8. Decoding does not
// reject invalid sequences; callers that care can check.
func ValidString(payload []byte) bool {
	return utf8.Valid(payload)
}
