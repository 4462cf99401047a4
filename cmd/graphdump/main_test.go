package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/graphcodec/pkg/encoding"
)

func TestDumpTaggedStream(t *testing.T) {
	type point struct {
		X, Y int32
		Tag  string
	}
	s := encoding.New(encoding.WithMode(encoding.Tagged))
	data, err := s.Write(point{X: 1, Y: -2, Tag: "p"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, dump(bytes.NewReader(data), &out))
	assert.Equal(t, "0 String \"p\"\n6 Integer 1\n11 Integer -2\n", out.String())
}

func TestDumpTruncated(t *testing.T) {
	var out bytes.Buffer
	err := dump(bytes.NewReader([]byte{byte(encoding.KindInteger), 0, 0}), &out)
	assert.ErrorIs(t, err, encoding.ErrTruncatedStream)
}

func TestRunFileAndStdin(t *testing.T) {
	s := encoding.New(encoding.WithMode(encoding.Tagged))
	data, err := s.Write(int32(9))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "stream.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var fromFile, fromStdin bytes.Buffer
	require.NoError(t, run(path, nil, &fromFile))
	require.NoError(t, run("-", bytes.NewReader(data), &fromStdin))
	assert.Equal(t, "0 Integer 9\n", fromFile.String())
	assert.Equal(t, fromFile.String(), fromStdin.String())
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(filepath.Join(t.TempDir(), "missing"), nil, &out), os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, []byte{byte(encoding.KindInteger), 0}, 0o600))
	assert.ErrorIs(t, run(path, nil, &out), encoding.ErrTruncatedStream)
}
