package secure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestFieldCipherRoundTrip(t *testing.T) {
	cipher, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("1234567890123")
	require.NoError(t, err)
	assert.Len(t, strings.Split(sealed, ":"), 3)

	plain, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", plain)
}

func TestFieldCipherDecryptPassesThroughLegacyValues(t *testing.T) {
	cipher, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	plain, err := cipher.Decrypt("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", plain)
}

func TestNewFieldCipherRejectsBadKeys(t *testing.T) {
	_, err := NewFieldCipher("")
	require.Error(t, err)

	_, err = NewFieldCipher("abcd")
	require.Error(t, err)

	_, err = NewFieldCipher("zz" + testKey[2:])
	require.Error(t, err)
}

func TestFieldCipherDecryptRejectsTamperedValue(t *testing.T) {
	cipher, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(sealed, ":")
	parts[2] = strings.Repeat("00", len(parts[2])/2)
	_, err = cipher.Decrypt(strings.Join(parts, ":"))
	require.Error(t, err)
}
