// Package credentials provides platform-keychain-backed secret storage for
// skill instances: macOS Keychain, Windows Credential Manager, and the Linux
// Secret Service (DBus), via zalando/go-keyring.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/kubiyabot/skill-engine/internal/audit"
)

// ServiceName is the keychain service under which every entry is stored.
const ServiceName = "skill-engine"

var (
	// ErrNotFound is returned when a requested credential does not exist.
	ErrNotFound = keyring.ErrNotFound
)

// Store provides secure credential storage scoped by skill and instance.
type Store struct {
	serviceName string
	audit       *audit.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithServiceName overrides the default keychain service name.
func WithServiceName(name string) Option {
	return func(s *Store) { s.serviceName = name }
}

// WithAuditLogger attaches an audit logger so every access, store, and
// delete is recorded.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(s *Store) { s.audit = logger }
}

// NewStore creates a credential store backed by the platform keychain.
func NewStore(opts ...Option) *Store {
	s := &Store{serviceName: ServiceName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entryKey builds the deterministic keychain entry name for a credential:
// "{skill}/{instance}/{key}".
func entryKey(skill, instance, key string) string {
	return fmt.Sprintf("%s/%s/%s", skill, instance, key)
}

// Store saves a credential in the platform keychain.
func (s *Store) Store(ctx context.Context, skill, instance, key, value string) error {
	if err := keyring.Set(s.serviceName, entryKey(skill, instance, key), value); err != nil {
		return fmt.Errorf("store credential %q: %w", key, err)
	}
	if s.audit != nil {
		s.audit.LogCredentialStore(ctx, skill, instance, key)
	}
	return nil
}

// Get retrieves a credential from the platform keychain, returned as a
// SecureString that must be wiped with Close once the caller is done.
func (s *Store) Get(ctx context.Context, skill, instance, key string) (*SecureString, error) {
	value, err := keyring.Get(s.serviceName, entryKey(skill, instance, key))
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", key, err)
	}
	if s.audit != nil {
		s.audit.LogCredentialAccess(ctx, skill, instance, key)
	}
	return newSecureString(value), nil
}

// Delete removes a single credential from the platform keychain.
// Idempotent: deleting a credential that does not exist is a success.
func (s *Store) Delete(ctx context.Context, skill, instance, key string) error {
	if err := keyring.Delete(s.serviceName, entryKey(skill, instance, key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete credential %q: %w", key, err)
	}
	if s.audit != nil {
		s.audit.LogCredentialDelete(ctx, skill, instance, key)
	}
	return nil
}

// DeleteAll is a documented no-op: the keychain backends exposed by
// go-keyring have no list operation, so there is no way to enumerate an
// instance's stored keys here. Callers that track which keys they stored
// must call Delete for each one individually.
func (s *Store) DeleteAll(ctx context.Context, skill, instance string) error {
	return nil
}

// Has reports whether a credential exists for the given key.
func (s *Store) Has(skill, instance, key string) bool {
	_, err := keyring.Get(s.serviceName, entryKey(skill, instance, key))
	return err == nil
}
