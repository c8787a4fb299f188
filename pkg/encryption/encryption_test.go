package encryption_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestNewRejectsBadKey(t *testing.T) {
	_, err := encryption.New([]byte("short"))
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := encryption.New(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("access-token-value")
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "access-token-value")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "access-token-value", plain)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c, err := encryption.New(testKey)
	require.NoError(t, err)

	first, err := c.Encrypt("token")
	require.NoError(t, err)

	second, err := c.Encrypt("token")
	require.NoError(t, err)

	require.False(t, bytes.Equal(first, second))
}

func TestDecryptRejectsTampering(t *testing.T) {
	c, err := encryption.New(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("token")
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Decrypt(sealed)
	require.Error(t, err)
}

func TestDecryptRejectsShortInput(t *testing.T) {
	c, err := encryption.New(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt([]byte{0x01})
	require.Error(t, err)
}
