package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Untagged(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Untagged)

	require.NoError(t, w.WriteInt32(0x00FF00FF))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteString("AB"))
	require.NoError(t, w.WriteChar('A'))
	require.NoError(t, w.WriteInt16(-2))

	want := []byte{0x00, 0xFF, 0x00, 0xFF, 0x01, 0, 0, 0, 2, 'A', 'B', 0x00, 0x41, 0xFF, 0xFE}
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, int64(len(want)), w.Written())
}

func TestWriter_Tagged(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Tagged)

	require.NoError(t, w.WriteInt8(-1))
	require.NoError(t, w.WriteString(""))
	require.NoError(t, w.WriteInt64(1))
	require.NoError(t, w.WriteKind(KindObject))

	want := []byte{
		byte(KindByte), 0xFF,
		byte(KindString), 0, 0, 0, 0,
		byte(KindLong), 0, 0, 0, 0, 0, 0, 0, 1,
		byte(KindObject),
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestWriter_CountBounds(t *testing.T) {
	w := NewWriter(io.Discard, Untagged)
	assert.ErrorIs(t, w.WriteCount(-1), ErrUnsupportedType)
	assert.ErrorIs(t, w.WriteCount(math.MaxInt32+1), ErrUnsupportedType)
	assert.NoError(t, w.WriteCount(math.MaxInt32))
}

func TestWriter_FlushesBufferedStream(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := NewWriter(bw, Untagged)

	require.NoError(t, w.WriteInt32(7))
	assert.Zero(t, buf.Len())
	require.NoError(t, w.Flush())
	assert.Equal(t, []byte{0, 0, 0, 7}, buf.Bytes())
}

func TestReader_RoundTrip(t *testing.T) {
	for _, mode := range []Mode{Untagged, Tagged} {
		t.Run(mode.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, mode)
			require.NoError(t, w.WriteBool(false))
			require.NoError(t, w.WriteInt8(math.MinInt8))
			require.NoError(t, w.WriteChar(0xFFFF))
			require.NoError(t, w.WriteInt16(math.MaxInt16))
			require.NoError(t, w.WriteInt32(math.MinInt32))
			require.NoError(t, w.WriteInt64(math.MaxInt64))
			require.NoError(t, w.WriteFloat32(37.986))
			require.NoError(t, w.WriteFloat64(-4235.543262))
			require.NoError(t, w.WriteString("this is a test string😊"))
			require.NoError(t, w.WriteCount(3))

			r := NewReader(bytes.NewReader(buf.Bytes()), mode)
			b, err := r.ReadBool()
			require.NoError(t, err)
			assert.False(t, b)

			i8, err := r.ReadInt8()
			require.NoError(t, err)
			assert.Equal(t, int8(math.MinInt8), i8)

			c, err := r.ReadChar()
			require.NoError(t, err)
			assert.Equal(t, Char(0xFFFF), c)

			i16, err := r.ReadInt16()
			require.NoError(t, err)
			assert.Equal(t, int16(math.MaxInt16), i16)

			i32, err := r.ReadInt32()
			require.NoError(t, err)
			assert.Equal(t, int32(math.MinInt32), i32)

			i64, err := r.ReadInt64()
			require.NoError(t, err)
			assert.Equal(t, int64(math.MaxInt64), i64)

			f32, err := r.ReadFloat32()
			require.NoError(t, err)
			assert.Equal(t, float32(37.986), f32)

			f64, err := r.ReadFloat64()
			require.NoError(t, err)
			assert.Equal(t, -4235.543262, f64)

			s, err := r.ReadString()
			require.NoError(t, err)
			assert.Equal(t, "this is a test string😊", s)

			n, err := r.ReadCount()
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			assert.Equal(t, int64(buf.Len()), r.Consumed())
		})
	}
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0}), Untagged)
	_, err := r.ReadInt32()
	assert.ErrorIs(t, err, ErrTruncatedStream)

	r = NewReader(bytes.NewReader(nil), Untagged)
	_, err = r.ReadBool()
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestReader_ForgedStringLength(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'a'}), Untagged)
	_, err := r.ReadString()
	assert.ErrorIs(t, err, ErrTruncatedStream)

	// without a Len method the payload is read incrementally
	r = NewReader(io.MultiReader(bytes.NewReader([]byte{0, 0x10, 0, 0}), bytes.NewReader([]byte("abc"))), Untagged)
	_, err = r.ReadString()
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestReader_Malformed(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{2}), Untagged)
	_, err := r.ReadBool()
	assert.ErrorIs(t, err, ErrMalformedStream)

	r = NewReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}), Untagged)
	_, err = r.ReadCount()
	assert.ErrorIs(t, err, ErrMalformedStream)

	r = NewReader(bytes.NewReader([]byte{byte(KindShort), 0, 1}), Tagged)
	_, err = r.ReadInt32()
	assert.ErrorIs(t, err, ErrMalformedStream)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReader_StreamError(t *testing.T) {
	r := NewReader(brokenReader{}, Untagged)
	_, err := r.ReadInt64()
	assert.ErrorIs(t, err, ErrStreamIO)
	assert.NotErrorIs(t, err, ErrTruncatedStream)
}

func TestReader_Next(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Tagged)
	require.NoError(t, w.WriteKind(KindObject))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteString("hi"))
	require.NoError(t, w.WriteChar('z'))
	require.NoError(t, w.WriteFloat64(1.5))

	r := NewReader(&buf, Tagged)
	var tokens []Token
	for {
		tok, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	assert.Equal(t, []Token{
		{Offset: 0, Kind: KindObject},
		{Offset: 1, Kind: KindBoolean, Value: true},
		{Offset: 3, Kind: KindString, Value: "hi"},
		{Offset: 10, Kind: KindChar, Value: Char('z')},
		{Offset: 13, Kind: KindDouble, Value: 1.5},
	}, tokens)
	assert.Equal(t, `3 String "hi"`, tokens[2].String())
}

func TestReader_NextRejectsUntaggedAndUnknownTags(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1}), Untagged).Next()
	assert.ErrorIs(t, err, ErrMalformedStream)

	_, err = NewReader(bytes.NewReader([]byte{0x42}), Tagged).Next()
	assert.ErrorIs(t, err, ErrMalformedStream)
}
