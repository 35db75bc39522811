package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryption_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	enc, err := NewEncryption(key)
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte("wJalrXUtnFEMI/K7MDENG"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "wJalrXUtnFEMI")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "wJalrXUtnFEMI/K7MDENG", string(plain))
}

func TestEncryption_NonceDiffers(t *testing.T) {
	keyB64, err := GenerateKey(16)
	require.NoError(t, err)
	enc, err := NewEncryptionFromBase64(keyB64)
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryption_InvalidKeys(t *testing.T) {
	_, err := NewEncryption(make([]byte, 15))
	assert.Error(t, err)

	_, err = NewEncryptionFromBase64("")
	assert.Error(t, err)

	_, err = NewEncryptionFromBase64("not base64!!")
	assert.Error(t, err)

	_, err = GenerateKey(20)
	assert.Error(t, err)
}

func TestEncryption_WrongKey(t *testing.T) {
	k1, _ := GenerateKey(32)
	k2, _ := GenerateKey(32)
	enc1, err := NewEncryptionFromBase64(k1)
	require.NoError(t, err)
	enc2, err := NewEncryptionFromBase64(k2)
	require.NoError(t, err)

	sealed, err := enc1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(sealed)
	assert.Error(t, err)
}

func TestEncryption_Truncated(t *testing.T) {
	keyB64, _ := GenerateKey(32)
	enc, err := NewEncryptionFromBase64(keyB64)
	require.NoError(t, err)

	_, err = enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.EqualError(t, err, "ciphertext too short")

	_, err = enc.Decrypt("%%%")
	assert.Error(t, err)
}
