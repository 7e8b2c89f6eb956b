package partialfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPartialFile_NonResumableUsesUniqueTempFile(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")

	pf, err := New(context.Background(), final, false, 0, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if pf.IsResume() {
		t.Fatal("non-resumable session should never report IsResume")
	}
	if _, err := os.Stat(pf.PartPath()); err != nil {
		t.Fatalf("expected temp file to exist: %v", err)
	}
	if err := pf.Close(true); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(pf.PartPath()); !os.IsNotExist(err) {
		t.Fatal("expected non-resumable temp file to be deleted on close regardless of keepPart")
	}
}

func TestPartialFile_FreshSessionNotResumeBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")

	pf, err := New(context.Background(), final, true, 64*1024, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pf.Close(false)

	if pf.IsResume() {
		t.Fatal("a freshly created empty part file should not be a resume")
	}
	if pf.Offset() != 0 {
		t.Fatalf("expected offset 0, got %d", pf.Offset())
	}
}

func TestPartialFile_ResumesWhenAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")
	partPath := final + ".part"
	if err := os.WriteFile(partPath, make([]byte, 100), 0o644); err != nil {
		t.Fatalf("seeding part file: %v", err)
	}

	pf, err := New(context.Background(), final, true, 50, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pf.Close(false)

	if !pf.IsResume() {
		t.Fatal("expected IsResume to be true when part file length exceeds threshold")
	}
	if pf.Offset() != 100 {
		t.Fatalf("expected offset 100, got %d", pf.Offset())
	}
}

func TestPartialFile_LockExclusivity(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")

	first, err := New(context.Background(), final, true, 64*1024, 0, nil)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	defer first.Close(false)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	second, err := New(ctx, final, true, 64*1024, 0, nil)
	if err == nil && second != nil {
		t.Fatal("expected the second concurrent session to fail to acquire the lock or observe a finished final file, not get a live handle")
	}
}

func TestPartialFile_CommitRenamesToFinalPath(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")

	pf, err := New(context.Background(), final, true, 64*1024, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f, err := pf.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.WriteAt([]byte("payload"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	if err := pf.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("expected final file to exist after commit: %v", err)
	}
	if _, err := os.Stat(pf.PartPath()); !os.IsNotExist(err) {
		t.Fatal("expected part file to be gone after atomic rename")
	}

	pf.Close(false)
	if _, err := os.Stat(final + ".part.lock"); !os.IsNotExist(err) {
		t.Fatal("expected no orphaned lock file after close")
	}
}

func TestPartialFile_CloseRemovesLockFile(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "artifact.jar")

	pf, err := New(context.Background(), final, true, 64*1024, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lockPath := pf.partPath + ".lock"

	if err := pf.Close(true); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("expected lock file to be removed on close")
	}
	if _, err := os.Stat(pf.PartPath()); err != nil {
		t.Fatal("expected part file to survive close(keepPart=true)")
	}
}
