package fsprocessor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProcessor_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.jar.sha1")

	p := New()
	if err := p.Write(path, []byte("deadbeef")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written sidecar: %v", err)
	}
	if string(got) != "deadbeef" {
		t.Errorf("content = %q, want %q", got, "deadbeef")
	}
}

func TestProcessor_NoScratchFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.jar.sha1")

	p := New()
	if err := p.Write(path, []byte("deadbeef")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 file in directory, got %d: %v", len(entries), entries)
	}
}

func TestProcessor_DeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.jar.sha1")

	p := New()
	if err := p.Delete(path); err != nil {
		t.Fatalf("deleting a nonexistent sidecar should not error: %v", err)
	}
}
