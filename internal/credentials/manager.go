package credentials

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Provider is one credential source. The keychain Store is the primary,
// writable provider; the rest (environment, files, external vaults) are
// read-only fallbacks consulted in order.
type Provider interface {
	// Get returns the credential or ErrNotFound. The caller owns the
	// returned SecureString and must Close it.
	Get(ctx context.Context, skill, instance, key string) (*SecureString, error)
	// Name identifies the provider in audit output.
	Name() string
}

// DefaultCacheTTL bounds how long a read is served from the manager's
// cache before the providers are consulted again.
const DefaultCacheTTL = 5 * time.Minute

// Manager layers a read cache and optional fallback providers over the
// keychain store. Reads hit the cache first, then the store, then each
// fallback in order; writes and deletes go to the store and invalidate
// the cache entry. Cached values are themselves zeroised on eviction.
type Manager struct {
	store     *Store
	fallbacks []Provider
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   *SecureString
	expires time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCacheTTL overrides the default five minute cache lifetime. A zero
// or negative ttl disables caching entirely.
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithFallback appends a read-only provider consulted when the keychain
// has no entry.
func WithFallback(p Provider) ManagerOption {
	return func(m *Manager) { m.fallbacks = append(m.fallbacks, p) }
}

// NewManager wraps store.
func NewManager(store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		ttl:   DefaultCacheTTL,
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the credential from cache, keychain, or a fallback
// provider, in that order. The caller owns the returned SecureString.
func (m *Manager) Get(ctx context.Context, skill, instance, key string) (*SecureString, error) {
	id := entryKey(skill, instance, key)

	if m.ttl > 0 {
		m.mu.RLock()
		entry, ok := m.cache[id]
		m.mu.RUnlock()
		if ok && time.Now().Before(entry.expires) {
			return newSecureString(entry.value.String()), nil
		}
	}

	value, err := m.store.Get(ctx, skill, instance, key)
	if err != nil && errors.Is(err, ErrNotFound) {
		for _, p := range m.fallbacks {
			value, err = p.Get(ctx, skill, instance, key)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if m.ttl > 0 {
		m.mu.Lock()
		if old, ok := m.cache[id]; ok {
			old.value.Close()
		}
		m.cache[id] = cacheEntry{
			value:   newSecureString(value.String()),
			expires: time.Now().Add(m.ttl),
		}
		m.mu.Unlock()
	}
	return value, nil
}

// Store writes through to the keychain and invalidates the cache entry.
func (m *Manager) Store(ctx context.Context, skill, instance, key, value string) error {
	if err := m.store.Store(ctx, skill, instance, key, value); err != nil {
		return err
	}
	m.invalidate(entryKey(skill, instance, key))
	return nil
}

// Delete removes from the keychain and invalidates the cache entry.
func (m *Manager) Delete(ctx context.Context, skill, instance, key string) error {
	if err := m.store.Delete(ctx, skill, instance, key); err != nil {
		return err
	}
	m.invalidate(entryKey(skill, instance, key))
	return nil
}

// Flush zeroises and drops every cached value.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.cache {
		entry.value.Close()
		delete(m.cache, id)
	}
}

func (m *Manager) invalidate(id string) {
	m.mu.Lock()
	if entry, ok := m.cache[id]; ok {
		entry.value.Close()
		delete(m.cache, id)
	}
	m.mu.Unlock()
}
