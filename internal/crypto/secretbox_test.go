package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	plaintext := []byte(`{"token":"T1"}`)
	sealed, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "T1")

	opened, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEncryptorRejectsBadKey(t *testing.T) {
	_, err := NewEncryptor([]byte("short"))
	assert.Error(t, err)
}

func TestEncryptorDetectsTampering(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = enc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestEncryptorRejectsGarbage(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestEncryptorWrongKey(t *testing.T) {
	enc1, err := NewEncryptor(testKey())
	require.NoError(t, err)
	enc2, err := NewEncryptor(bytes.Repeat([]byte{0x17}, 32))
	require.NoError(t, err)

	sealed, err := enc1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(sealed)
	assert.Error(t, err)
}
