package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPairSaveLoadRoundTrip(t *testing.T) {
	keys, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "signing.pem")
	require.NoError(t, keys.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, keys.Private, loaded.Private)
	assert.Equal(t, keys.Public, loaded.Public)
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	first, generated, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.True(t, generated)

	second, generated, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, first.Private, second.Private)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestPublicPEM(t *testing.T) {
	keys, err := Generate()
	require.NoError(t, err)

	pemText, err := keys.PublicPEM()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pemText, "-----BEGIN PUBLIC KEY-----"))
}
