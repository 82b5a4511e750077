package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndFinalize(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	pf, err := store.Open("sample.bin")
	if err != nil {
		t.Fatalf("failed to open partial file: %v", err)
	}

	first := []byte("hello, ")
	second := []byte("world")
	if _, err := pf.Append(first); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if _, err := pf.Append(second); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	if pf.Name() != "sample.bin" {
		t.Errorf("expected name sample.bin, got %s", pf.Name())
	}
	if pf.Size() != int64(len(first)+len(second)) {
		t.Errorf("expected size %d, got %d", len(first)+len(second), pf.Size())
	}

	// The artifact must not be visible until finalized.
	if _, err := os.Stat(store.Path("sample.bin")); !os.IsNotExist(err) {
		t.Fatalf("artifact visible before finalize: %v", err)
	}

	if err := pf.Finalize(); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	data, err := os.ReadFile(store.Path("sample.bin"))
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("unexpected artifact content: %q", data)
	}

	spool := filepath.Join(filepath.Dir(store.Path("sample.bin")), spoolDir, "sample.bin.part")
	if _, err := os.Stat(spool); !os.IsNotExist(err) {
		t.Errorf("spool file still present after finalize: %v", err)
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	pf, err := store.Open("once.bin")
	if err != nil {
		t.Fatalf("failed to open partial file: %v", err)
	}
	if err := pf.Finalize(); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	if err := pf.Finalize(); err == nil {
		t.Error("expected error finalizing twice")
	}
}

func TestAbortDiscardsSpool(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	pf, err := store.Open("gone.bin")
	if err != nil {
		t.Fatalf("failed to open partial file: %v", err)
	}
	if _, err := pf.Append([]byte("doomed")); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := pf.Abort(); err != nil {
		t.Fatalf("failed to abort: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, spoolDir, "gone.bin.part")); !os.IsNotExist(err) {
		t.Errorf("spool file survived abort: %v", err)
	}
	if _, err := os.Stat(store.Path("gone.bin")); !os.IsNotExist(err) {
		t.Errorf("artifact appeared despite abort: %v", err)
	}
	// Aborting after finalize or abort is a no-op.
	if err := pf.Abort(); err != nil {
		t.Errorf("second abort failed: %v", err)
	}
}

func TestReopenTruncatesStaleSpool(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	stale, err := store.Open("retry.bin")
	if err != nil {
		t.Fatalf("failed to open partial file: %v", err)
	}
	if _, err := stale.Append([]byte("half-finished junk from a dead upload")); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	fresh, err := store.Open("retry.bin")
	if err != nil {
		t.Fatalf("failed to reopen partial file: %v", err)
	}
	if _, err := fresh.Append([]byte("clean")); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := fresh.Finalize(); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	data, err := os.ReadFile(store.Path("retry.bin"))
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if string(data) != "clean" {
		t.Errorf("stale spool bytes leaked into artifact: %q", data)
	}
}

func TestUnsafeNamesRejected(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	for _, name := range []string{"", ".", "..", "../escape.bin", "nested/evil.bin", spoolDir} {
		if _, err := store.Open(name); err == nil {
			t.Errorf("expected rejection for name %q", name)
		}
	}
}

func TestZeroByteArtifact(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	pf, err := store.Open("empty.bin")
	if err != nil {
		t.Fatalf("failed to open partial file: %v", err)
	}
	if err := pf.Finalize(); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	info, err := os.Stat(store.Path("empty.bin"))
	if err != nil {
		t.Fatalf("failed to stat artifact: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty artifact, got %d bytes", info.Size())
	}
}
