// Package cipher provides reversible encryption for credential material at
// rest. A single symmetric key is provided at process start; a missing or
// malformed key is a startup error, never a per-call one.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecrypt marks ciphertext that cannot be recovered: corrupt, truncated,
// or encrypted under a different key. This is never transient; callers must
// treat the underlying credential as unusable.
var ErrDecrypt = errors.New("ciphertext unusable")

// Cipher encrypts and decrypts opaque secret payloads.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

const (
	// Ciphertext version prefix. Leaves room for key/algorithm rotation
	// without a data migration.
	prefixV1 = "v1:"
	// Prefix used by the Noop cipher in tests and local development.
	prefixNoop = "noop:"

	keySize = 32
)

// AESGCM implements Cipher using AES-256-GCM with a random nonce per call.
type AESGCM struct {
	key []byte
}

// NewAESGCM constructs an AESGCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	return &AESGCM{key: append([]byte(nil), key...)}, nil
}

// ParseKey decodes an encryption key from its environment representation:
// standard or URL-safe base64 of 32 bytes, or a raw 32-byte string.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("encryption key is empty")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if decoded, err := enc.DecodeString(s); err == nil && len(decoded) == keySize {
			return decoded, nil
		}
	}
	if len(s) == keySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("encryption key must be %d bytes (raw or base64), got %d characters", keySize, len(s))
}

// Encrypt seals plaintext under a fresh nonce and returns a versioned
// base64 string encoding nonce||ciphertext.
func (c *AESGCM) Encrypt(plaintext []byte) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return prefixV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a versioned ciphertext produced by Encrypt. Any recovery
// failure wraps ErrDecrypt; a tampered ciphertext never yields a
// silently-wrong plaintext because GCM authenticates before returning.
func (c *AESGCM) Decrypt(ciphertext string) ([]byte, error) {
	if !strings.HasPrefix(ciphertext, prefixV1) {
		return nil, fmt.Errorf("%w: unknown ciphertext version", ErrDecrypt)
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext[len(prefixV1):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func (c *AESGCM) aead() (gocipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// Noop stores plaintext behind a prefix marker. Test use only.
type Noop struct{}

func (Noop) Encrypt(plaintext []byte) (string, error) {
	return prefixNoop + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (Noop) Decrypt(ciphertext string) ([]byte, error) {
	if !strings.HasPrefix(ciphertext, prefixNoop) {
		return nil, fmt.Errorf("%w: not a noop ciphertext", ErrDecrypt)
	}
	decoded, err := base64.StdEncoding.DecodeString(ciphertext[len(prefixNoop):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return decoded, nil
}
