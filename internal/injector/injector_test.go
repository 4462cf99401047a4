package injector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/graphcodec/pkg/encoding"
)

type account struct {
	Owner   string
	Balance int64
	Token   string
}

func TestInitializeSerializerFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codec.yaml")
	cfg := "max_depth: 4\nmode: tagged\nfailure_policy: ignore\nexclude:\n  injector.account: [Token]\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	s, err := InitializeSerializer(ConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 4, s.MaxDepth())
	assert.Equal(t, encoding.Tagged, s.Mode())

	data, err := s.Write(account{Owner: "ada", Balance: 42, Token: "secret"})
	require.NoError(t, err)

	got, err := encoding.ReadAs[account](s, data)
	require.NoError(t, err)
	assert.Equal(t, account{Owner: "ada", Balance: 42}, got)
}

func TestInitializeSerializerDefaults(t *testing.T) {
	s, err := InitializeSerializer("")
	require.NoError(t, err)
	assert.Equal(t, encoding.DefaultMaxDepth, s.MaxDepth())
	assert.Equal(t, encoding.Untagged, s.Mode())
}

func TestInitializeSerializerRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"failure_policy": "panic"}`), 0o600))

	_, err := InitializeSerializer(ConfigPath(path))
	assert.ErrorIs(t, err, encoding.ErrInvalidConfig)
}

func TestInitializeSerializerMissingFile(t *testing.T) {
	_, err := InitializeSerializer(ConfigPath(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
