package storage

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestPutAndGet(t *testing.T) {
	store, err := NewBlobStore(afero.NewMemMapFs(), "blobs")
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	key := Key("backgrounds", "octocat", "background", ts)
	data := []byte("png-bytes")

	stored, err := store.Put(key, data, "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored != key+".png" {
		t.Errorf("stored key = %q, want %q", stored, key+".png")
	}

	got, err := store.Get(stored)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestGetAbsentKey(t *testing.T) {
	store, err := NewBlobStore(afero.NewMemMapFs(), "blobs")
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("cards/never-written.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("absent key should yield nil, got %q", got)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewBlobStore(fs, "blobs")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Put("../outside/evil.png", []byte("x"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// The traversal component is stripped, so nothing lands above the base.
	if exists, _ := afero.Exists(fs, "outside/evil.png"); exists {
		t.Error("write escaped the base directory")
	}
	if exists, _ := afero.Exists(fs, "blobs/outside/evil.png"); !exists {
		t.Error("sanitized key should land under the base directory")
	}
}
