package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	encoded := FormatAccount(raw)
	require.True(t, strings.HasPrefix(encoded, "nft1"))

	parsed, err := ParseAddress(AccountPrefix, encoded)
	require.NoError(t, err)
	require.Equal(t, raw, parsed)

	_, err = ParseAddress(CollectionPrefix, encoded)
	require.Error(t, err)
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	_, err := ParseAddress(AccountPrefix, "")
	require.Error(t, err)
	_, err = ParseAddress(AccountPrefix, "not-bech32")
	require.Error(t, err)
}

func TestNewAddressLength(t *testing.T) {
	_, err := NewAddress(AccountPrefix, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestModuleAddressDeterministic(t *testing.T) {
	require.Equal(t, ModuleAddress("escrow"), ModuleAddress("escrow"))
	require.NotEqual(t, ModuleAddress("escrow"), ModuleAddress("registry"))
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "identity.json")
	key, created, err := LoadOrCreateKeystore(path, "secret")
	require.NoError(t, err)
	require.True(t, created)

	loaded, created, err := LoadOrCreateKeystore(path, "secret")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, key.PubKey().Address().String(), loaded.PubKey().Address().String())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
