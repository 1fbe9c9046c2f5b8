// Package store provides the local key-value store that holds the rating
// service credential between runs. It is the only persistent state of the
// application: batches and ratings live in memory only.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// Well-known keys.
const (
	// KeyCredentialPrefix prefixes the per-provider credential, e.g. "credential.gemini".
	KeyCredentialPrefix = "credential."
)

// CredentialKey returns the settings key for a provider's credential.
func CredentialKey(provider string) string {
	return KeyCredentialPrefix + provider
}

// KVStore is a string key-value store. Implementations are safe for
// concurrent use. Put performs full replacement (upsert semantics).
type KVStore interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put creates or replaces the value for key.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
