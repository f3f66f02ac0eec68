package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	store, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	info, err := os.Stat(store.Dir())
	if err != nil {
		t.Fatalf("upload dir was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected upload path to be a directory")
	}
}

func TestSaveWritesBytesAndPreservesExtension(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("cow.jpg", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %q", path)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Fatalf("expected .jpg extension, got %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file unreadable: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestSaveProducesIndependentFiles(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save("cow.png", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("first Save returned error: %v", err)
	}
	second, err := store.Save("cow.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct paths for repeated uploads, got %q twice", first)
	}
}

func TestSaveIgnoresDirectoryComponentsInName(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("../../escape.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if filepath.Dir(path) != store.Dir() {
		t.Fatalf("expected file inside %q, got %q", store.Dir(), path)
	}
}

func TestVerifyAcceptsSavedFile(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("cow.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Verify(path); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
}

func TestVerifyRejectsMissingFile(t *testing.T) {
	store := newTestStore(t)

	if err := store.Verify(filepath.Join(store.Dir(), "absent.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRemoveDeletesFile(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("cow.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err: %v", err)
	}
}
