package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCiphertext is returned for ciphertext that fails to decode or authenticate.
var ErrCiphertext = errors.New("invalid token ciphertext")

// TokenCipher seals third-party OAuth tokens at rest with XChaCha20-Poly1305.
// Ciphertexts are base64(nonce || sealed) and bind the additional data, so a
// token copied onto another vendor's row fails to open.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher parses a base64-encoded 32-byte key.
func NewTokenCipher(encodedKey string) (*TokenCipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("decode token key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &TokenCipher{key: key}, nil
}

func (c *TokenCipher) Seal(plaintext, additionalData string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(additionalData))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *TokenCipher) Open(ciphertext, additionalData string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCiphertext
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(additionalData))
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plain), nil
}
