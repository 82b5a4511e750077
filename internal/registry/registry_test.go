package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := filepath.Join(os.TempDir(), "querybyte_registry_test")
	os.RemoveAll(dir)
	reg, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	return reg, dir
}

func TestRecordAndGet(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)
	defer reg.Close()

	rec := &UploadRecord{
		ID:          "b1c724ad-4f3b-4cde-b26c-1c0a0b3f3a77",
		Filename:    "report.pdf",
		Size:        20000,
		Chunks:      3,
		Profile:     "default",
		CompletedAt: time.Now().UTC(),
	}
	if err := reg.Record(rec); err != nil {
		t.Fatalf("failed to record upload: %v", err)
	}

	got, err := reg.Get("report.pdf")
	if err != nil {
		t.Fatalf("failed to get upload record: %v", err)
	}
	if got.ID != rec.ID || got.Size != rec.Size || got.Chunks != rec.Chunks || got.Profile != rec.Profile {
		t.Errorf("record mismatch: got %+v, want %+v", got, rec)
	}
}

func TestGetMissing(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)
	defer reg.Close()

	if _, err := reg.Get("never-uploaded.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordReplacesPrevious(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)
	defer reg.Close()

	first := &UploadRecord{ID: "a", Filename: "data.bin", Size: 100, Chunks: 1}
	second := &UploadRecord{ID: "b", Filename: "data.bin", Size: 200, Chunks: 2}
	if err := reg.Record(first); err != nil {
		t.Fatalf("failed to record upload: %v", err)
	}
	if err := reg.Record(second); err != nil {
		t.Fatalf("failed to record upload: %v", err)
	}

	got, err := reg.Get("data.bin")
	if err != nil {
		t.Fatalf("failed to get upload record: %v", err)
	}
	if got.ID != "b" || got.Size != 200 {
		t.Errorf("expected replacement record, got %+v", got)
	}

	records, err := reg.List()
	if err != nil {
		t.Fatalf("failed to list uploads: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after replacement, got %d", len(records))
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)
	defer reg.Close()

	if err := reg.Record(&UploadRecord{ID: "a", Filename: "gone.bin", Size: 10, Chunks: 1}); err != nil {
		t.Fatalf("failed to record upload: %v", err)
	}
	if err := reg.Delete("gone.bin"); err != nil {
		t.Fatalf("failed to delete upload record: %v", err)
	}
	if _, err := reg.Get("gone.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again, or deleting a name never recorded, is a no-op.
	if err := reg.Delete("gone.bin"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
	if err := reg.Delete("never-recorded.bin"); err != nil {
		t.Errorf("delete of unknown record failed: %v", err)
	}
}

func TestListOrdersByFilename(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)
	defer reg.Close()

	for _, name := range []string{"zebra.bin", "alpha.bin", "mango.bin"} {
		if err := reg.Record(&UploadRecord{ID: name, Filename: name}); err != nil {
			t.Fatalf("failed to record upload: %v", err)
		}
	}

	records, err := reg.List()
	if err != nil {
		t.Fatalf("failed to list uploads: %v", err)
	}
	want := []string{"alpha.bin", "mango.bin", "zebra.bin"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, rec := range records {
		if rec.Filename != want[i] {
			t.Errorf("record %d: expected %s, got %s", i, want[i], rec.Filename)
		}
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	reg, dir := openTestRegistry(t)
	defer os.RemoveAll(dir)

	rec := &UploadRecord{ID: "persist", Filename: "keep.bin", Size: 42, Chunks: 1}
	if err := reg.Record(rec); err != nil {
		t.Fatalf("failed to record upload: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("failed to close registry: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen registry: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("keep.bin")
	if err != nil {
		t.Fatalf("failed to get upload record after reopen: %v", err)
	}
	if got.ID != "persist" || got.Size != 42 {
		t.Errorf("record lost across reopen: %+v", got)
	}
}
