package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestAddressCipher_RoundTrip(t *testing.T) {
	cipher, err := NewAddressCipher(testKey)
	require.NoError(t, err)

	addresses := []string{
		"12 rue des Lilas\n75011 Paris\nFrance",
		"Mme Dupont, Bât. B, 3 allée du Parc, 33000 Bordeaux",
		"Ünïcodé — 日本語 address",
	}

	for _, addr := range addresses {
		encrypted, err := cipher.Encrypt(addr)
		require.NoError(t, err)
		assert.NotContains(t, encrypted, addr)

		decrypted, err := cipher.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, addr, decrypted)
	}
}

func TestAddressCipher_EncryptIsRandomized(t *testing.T) {
	cipher, err := NewAddressCipher(testKey)
	require.NoError(t, err)

	a, err := cipher.Encrypt("7 place Bellecour, 69002 Lyon")
	require.NoError(t, err)
	b, err := cipher.Encrypt("7 place Bellecour, 69002 Lyon")
	require.NoError(t, err)

	// Nonce aléatoire : deux chiffrements du même clair diffèrent.
	assert.NotEqual(t, a, b)
}

func TestAddressCipher_TamperedCiphertext(t *testing.T) {
	cipher, err := NewAddressCipher(testKey)
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("7 place Bellecour, 69002 Lyon")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = cipher.Decrypt(tampered)
	assert.Error(t, err)
	assert.True(t, apperror.IsIntegrity(err))
}

func TestAddressCipher_WrongKey(t *testing.T) {
	cipherA, err := NewAddressCipher(testKey)
	require.NoError(t, err)
	cipherB, err := NewAddressCipher(strings.Repeat("z", 32))
	require.NoError(t, err)

	encrypted, err := cipherA.Encrypt("7 place Bellecour, 69002 Lyon")
	require.NoError(t, err)

	_, err = cipherB.Decrypt(encrypted)
	assert.True(t, apperror.IsIntegrity(err))
}

func TestAddressCipher_TruncatedCiphertext(t *testing.T) {
	cipher, err := NewAddressCipher(testKey)
	require.NoError(t, err)

	_, err = cipher.Decrypt(base64.StdEncoding.EncodeToString([]byte("court")))
	assert.True(t, apperror.IsIntegrity(err))

	_, err = cipher.Decrypt("pas du base64 !!!")
	assert.True(t, apperror.IsIntegrity(err))
}

func TestAddressCipher_EmptyAddress(t *testing.T) {
	cipher, err := NewAddressCipher(testKey)
	require.NoError(t, err)

	_, err = cipher.Encrypt("")
	assert.True(t, apperror.IsValidation(err))
}

func TestNewAddressCipher_KeyTooShort(t *testing.T) {
	_, err := NewAddressCipher("trop-courte")
	assert.Error(t, err)
}
