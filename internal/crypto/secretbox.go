package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const keyLength = 32

// Encryptor seals and opens small payloads with NaCl secretbox. Session
// tokens pass through here before they reach a remote store.
type Encryptor struct {
	key [keyLength]byte
}

// NewEncryptor creates an encryptor from a raw 32-byte key
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keyLength, len(key))
	}
	e := &Encryptor{}
	copy(e.key[:], key)
	return e, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext)
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &e.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated input fails.
func (e *Encryptor) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	opened, ok := secretbox.Open(nil, raw[24:], &nonce, &e.key)
	if !ok {
		return nil, fmt.Errorf("decryption failed")
	}
	return opened, nil
}
