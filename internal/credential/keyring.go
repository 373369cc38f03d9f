// Package credential keeps the LINE channel credentials and the API
// key in the system keyring, falling back to an encrypted file on
// headless hosts.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "grouptask"

// Credential keys.
const (
	KeyChannelSecret = "line_channel_secret"
	KeyChannelToken  = "line_channel_token"
	KeyAPIKey        = "api_key"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/grouptask/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("grouptask-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Resolve returns the configured value when one is set, otherwise the
// keyring entry. Config (including env) wins so containerized deploys
// never need a keyring backend.
func Resolve(configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	value, err := Get(key)
	if err != nil {
		return "", fmt.Errorf("credential %s not configured and not in keyring: %w", key, err)
	}
	return value, nil
}
