package module

import (
	"testing"
)

func TestCacheMissThenHit(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	mod := &Module{Hash: "deadbeef"}

	hit, err := cache.Ensure(mod)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if hit {
		t.Error("first Ensure() reported a hit, want a miss")
	}

	hit, err = cache.Ensure(mod)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !hit {
		t.Error("second Ensure() reported a miss, want a hit")
	}
}

func TestCacheDistinguishesHashes(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	if hit, _ := cache.Ensure(&Module{Hash: "aaa"}); hit {
		t.Error("unrelated hash reported a hit")
	}
	if cache.Hit("bbb") {
		t.Error("Hit() reported a hit for an unseen hash")
	}
}
