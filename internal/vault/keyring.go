package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/99designs/keyring"
)

const masterKeyName = "vault-master-key"

// openKeyring returns a configured keyring instance for the service.
func openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// NewFromKeyring builds a Vault whose master key lives in the OS keyring
// under the given service name. A missing key is generated and stored on
// first use.
func NewFromKeyring(service string) (*Vault, error) {
	ring, err := openKeyring(service)
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(masterKeyName)
	if err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("getting master key: %w", err)
		}

		key := make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("generating master key: %w", err)
		}

		err = ring.Set(keyring.Item{
			Key:  masterKeyName,
			Data: []byte(base64.StdEncoding.EncodeToString(key)),
		})
		if err != nil {
			return nil, fmt.Errorf("storing master key: %w", err)
		}

		return New(key)
	}

	key, err := base64.StdEncoding.DecodeString(string(item.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}

	return New(key)
}
