package models

import "context"

// CredentialSource yields the provider API key. Callers fetch it once per operation
// so a rotated key is picked up without a restart.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a CredentialSource that always returns the same key.
type StaticKey string

// APIKey returns the key itself.
func (k StaticKey) APIKey(_ context.Context) (string, error) {
	return string(k), nil
}
