package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("cambia-esto")
	require.NoError(t, err)
	b, err := DeriveKey("cambia-esto")
	require.NoError(t, err)
	c, err := DeriveKey("otro-secreto")
	require.NoError(t, err)

	assert.Len(t, a, keyLength)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "auth.key")

	first, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(first), string(raw))
}

func TestLoadOrGenerateKey_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	_, err := LoadOrGenerateKey(path)
	assert.Error(t, err)
}

func TestResolveKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")

	derived, err := ResolveKey("secreto", path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a configured secret never touches the key file")

	generated, err := ResolveKey("", path)
	require.NoError(t, err)
	assert.NotEqual(t, derived, generated)
}
