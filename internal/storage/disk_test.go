package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), make([]byte, 5), 0600); err != nil {
		t.Fatal(err)
	}
	n, err := DiskUsageBytes(dir, filepath.Join(dir, "missing"), "", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Errorf("expected 15 bytes, got %d", n)
	}
}
