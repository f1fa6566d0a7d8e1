// Package storage provides the blob store for generated artwork.
package storage

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// BlobStore writes content-addressed-by-name blobs under a base directory.
// Keys embed a timestamp (see Key), so no two writes ever target the same
// path. Backed by afero so tests run on a memory filesystem.
type BlobStore struct {
	fs      afero.Fs
	baseDir string
}

func NewBlobStore(fs afero.Fs, baseDir string) (*BlobStore, error) {
	if err := fs.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &BlobStore{fs: fs, baseDir: baseDir}, nil
}

// Key builds the canonical blob key {category}/{identity}-{kind}-{timestamp}.
func Key(category, identity, kind string, ts time.Time) string {
	return fmt.Sprintf("%s/%s-%s-%d", category, identity, kind, ts.Unix())
}

// Put stores the blob and returns the key it is retrievable under. A file
// extension is appended from the content type when the key has none.
// Writes go to a temp file first, then rename.
func (s *BlobStore) Put(key string, data []byte, contentType string) (string, error) {
	key = cleanKey(key)
	if path.Ext(key) == "" {
		key += extensionFor(contentType)
	}

	full := path.Join(s.baseDir, key)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", err
	}

	tmp := full + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := s.fs.Rename(tmp, full); err != nil {
		_ = s.fs.Remove(tmp)
		return "", err
	}
	return key, nil
}

// Get returns the blob bytes, or nil with no error when the key is absent.
func (s *BlobStore) Get(key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path.Join(s.baseDir, cleanKey(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// cleanKey keeps keys inside the base directory.
func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
