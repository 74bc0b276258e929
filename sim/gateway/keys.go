package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Stored user API keys are AES-256-GCM sealed with a process secret and
// base64 encoded, nonce prefixed to the ciphertext.

func decryptAPIKey(secret []byte, encoded string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("key secret is not configured")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode stored key: %w", err)
	}

	aead, err := newAEAD(secret)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("stored key is too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open stored key: %w", err)
	}
	return string(plaintext), nil
}

// EncryptAPIKey seals an API key for storage in user_api_keys.
func EncryptAPIKey(secret []byte, apiKey string) (string, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(apiKey), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func newAEAD(secret []byte) (cipher.AEAD, error) {
	sum := sha256.Sum256(secret)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
