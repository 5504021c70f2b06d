package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func mockKeychain(t *testing.T) {
	t.Helper()
	keyring.MockInit()
}

func TestEnvProviderNaming(t *testing.T) {
	t.Setenv("SKILL_ENGINE_CRED_KUBECTL__PROD__API_KEY", "sekrit")

	p := NewEnvProvider("")
	value, err := p.Get(context.Background(), "kubectl", "prod", "api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer value.Close()
	if value.String() != "sekrit" {
		t.Fatalf("value = %q", value.String())
	}

	if _, err := p.Get(context.Background(), "kubectl", "prod", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEnvProviderCustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_GIT__DEFAULT__TOKEN", "tok")

	p := NewEnvProvider("MYAPP_")
	value, err := p.Get(context.Background(), "git", "default", "token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer value.Close()
	if value.String() != "tok" {
		t.Fatalf("value = %q", value.String())
	}
}

func TestManagerReadsThroughToKeychain(t *testing.T) {
	mockKeychain(t)
	m := NewManager(NewStore())

	ctx := context.Background()
	if err := m.Store(ctx, "kubectl", "prod", "api-key", "from-keychain"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	value, err := m.Get(ctx, "kubectl", "prod", "api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer value.Close()
	if value.String() != "from-keychain" {
		t.Fatalf("value = %q", value.String())
	}
}

func TestManagerFallsBackToEnv(t *testing.T) {
	mockKeychain(t)
	t.Setenv("SKILL_ENGINE_CRED_KUBECTL__PROD__API_KEY", "from-env")

	m := NewManager(NewStore(), WithFallback(NewEnvProvider("")), WithCacheTTL(0))

	value, err := m.Get(context.Background(), "kubectl", "prod", "api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer value.Close()
	if value.String() != "from-env" {
		t.Fatalf("value = %q, want from-env", value.String())
	}
}

func TestManagerMissEverywhereIsNotFound(t *testing.T) {
	mockKeychain(t)
	m := NewManager(NewStore(), WithFallback(NewEnvProvider("")))

	if _, err := m.Get(context.Background(), "no", "such", "cred"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestManagerCacheServesRepeatReads(t *testing.T) {
	mockKeychain(t)
	m := NewManager(NewStore(), WithCacheTTL(time.Minute))

	ctx := context.Background()
	if err := m.store.Store(ctx, "s", "i", "k", "v1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	first, err := m.Get(ctx, "s", "i", "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Close()

	// Mutate the backing store directly, bypassing the manager: a cached
	// read must still see the old value until the cache is flushed.
	if err := m.store.Store(ctx, "s", "i", "k", "v2"); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	second, err := m.Get(ctx, "s", "i", "k")
	if err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if second.String() != "v1" {
		t.Fatalf("value = %q, want cached v1", second.String())
	}
	second.Close()

	m.Flush()
	third, err := m.Get(ctx, "s", "i", "k")
	if err != nil {
		t.Fatalf("Get after Flush: %v", err)
	}
	defer third.Close()
	if third.String() != "v2" {
		t.Fatalf("value = %q, want fresh v2 after flush", third.String())
	}
}

func TestManagerWriteAndDeleteInvalidateCache(t *testing.T) {
	mockKeychain(t)
	m := NewManager(NewStore(), WithCacheTTL(time.Minute))
	ctx := context.Background()

	if err := m.Store(ctx, "s", "i", "k", "v1"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	value, _ := m.Get(ctx, "s", "i", "k")
	value.Close()

	if err := m.Store(ctx, "s", "i", "k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err := m.Get(ctx, "s", "i", "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value.String() != "v2" {
		t.Fatalf("value = %q, want v2 (write must invalidate)", value.String())
	}
	value.Close()

	if err := m.Delete(ctx, "s", "i", "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "s", "i", "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestManagerCachedCopiesAreIndependent(t *testing.T) {
	mockKeychain(t)
	m := NewManager(NewStore(), WithCacheTTL(time.Minute))
	ctx := context.Background()

	if err := m.Store(ctx, "s", "i", "k2", "secret"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	first, err := m.Get(ctx, "s", "i", "k2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Close() // zeroising the caller's copy must not corrupt the cache

	second, err := m.Get(ctx, "s", "i", "k2")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	defer second.Close()
	if second.String() != "secret" {
		t.Fatalf("value = %q, want secret", second.String())
	}
}
