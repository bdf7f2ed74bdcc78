package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

var ErrNoToken = errors.New("no bearer token")

// TokenSource yields the bearer token for a user.
type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}

// StaticToken returns the same token for every user.
type StaticToken string

func (s StaticToken) Token(context.Context, string) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Keyring looks tokens up in the OS keyring, keyed by user id.
type Keyring struct {
	ring keyring.Keyring
}

func OpenKeyring(service, fileDir string) (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewKeyring(ring), nil
}

func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) Token(_ context.Context, userID string) (string, error) {
	item, err := k.ring.Get(userID)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("get token for %q: %w", userID, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// Store saves a token for userID.
func (k *Keyring) Store(userID, token string) error {
	if err := k.ring.Set(keyring.Item{Key: userID, Data: []byte(token)}); err != nil {
		return fmt.Errorf("set token for %q: %w", userID, err)
	}
	return nil
}
