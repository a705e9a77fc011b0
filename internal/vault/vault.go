// Package vault protects account secrets at rest with authenticated
// encryption. Callers hold plaintext only transiently while opening a
// connection and must never log it.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrCorruptCredential is returned by Reveal when the ciphertext was
// altered or was produced under a different key. It is distinct from an
// authentication rejection by the remote server: it means the stored
// credential itself is unusable and must be re-entered.
var ErrCorruptCredential = errors.New("corrupt credential")

// Vault encrypts and decrypts secrets with AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a raw 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Protect encrypts a secret and returns the ciphertext as a base64
// string. The random nonce is prepended to the sealed payload.
func (v *Vault) Protect(secret string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Reveal decrypts a ciphertext produced by Protect. Any tampering or a
// key mismatch yields ErrCorruptCredential, never a wrong plaintext.
func (v *Vault) Reveal(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding credential: %w", ErrCorruptCredential)
	}

	nonceSize := v.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("credential too short: %w", ErrCorruptCredential)
	}

	nonce, payload := sealed[:nonceSize], sealed[nonceSize:]
	secret, err := v.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", fmt.Errorf("opening credential: %w", ErrCorruptCredential)
	}

	return string(secret), nil
}

// IsCorruptCredential reports whether err (or any error in its chain)
// indicates an unusable stored credential.
func IsCorruptCredential(err error) bool {
	return errors.Is(err, ErrCorruptCredential)
}
