package shared

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts refresh tokens before they reach a durable store.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds an XChaCha20-Poly1305 sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Sealer{aead: aead}, nil
}

// NewKey returns a fresh base64-encoded key suitable for [StoreConfig.EncryptionKey].
func NewKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext, binding it to the associated data (the session id).
// The empty string seals to the empty string.
func (s *Sealer) Seal(plaintext, ad string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(ad))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses [Sealer.Seal].
func (s *Sealer) Open(sealed, ad string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", fmt.Errorf("sealed value too short")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(ad))
	if err != nil {
		return "", fmt.Errorf("failed to open sealed value: %w", err)
	}
	return string(plain), nil
}
