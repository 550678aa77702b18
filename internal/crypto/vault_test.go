package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewVault_RejectsBadKeyLength(t *testing.T) {
	_, err := NewVault("too-short")
	assert.Error(t, err)
}

func TestVault_RoundTrip(t *testing.T) {
	vault, err := NewVault(testKey)
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", ciphertext)

	plaintext, err := vault.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestVault_EncryptUsesFreshNonce(t *testing.T) {
	vault, err := NewVault(testKey)
	require.NoError(t, err)

	first, err := vault.Encrypt("same-password")
	require.NoError(t, err)
	second, err := vault.Encrypt("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVault_DecryptFailsOnTamperedCiphertext(t *testing.T) {
	vault, err := NewVault(testKey)
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = vault.Decrypt(tampered)
	assert.Error(t, err)
}

func TestVault_DecryptFailsOnGarbage(t *testing.T) {
	vault, err := NewVault(testKey)
	require.NoError(t, err)

	_, err = vault.Decrypt("not-base64!!")
	assert.Error(t, err)

	_, err = vault.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
