package module

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweeperReapsOldEntriesOnly(t *testing.T) {
	dir := t.TempDir()

	oldEntry := filepath.Join(dir, "old")
	if err := os.Mkdir(oldEntry, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldEntry, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	freshEntry := filepath.Join(dir, "fresh")
	if err := os.Mkdir(freshEntry, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := newScratchSweeper(dir, time.Hour, time.Hour)
	s.sweep()

	if _, err := os.Stat(oldEntry); !os.IsNotExist(err) {
		t.Errorf("old scratch dir still exists after sweep: err=%v", err)
	}
	if _, err := os.Stat(freshEntry); err != nil {
		t.Errorf("fresh scratch dir was removed: %v", err)
	}
}

func TestSweeperStartClose(t *testing.T) {
	s := newScratchSweeper(t.TempDir(), time.Millisecond, time.Hour)
	s.Start()
	s.Close()
}
