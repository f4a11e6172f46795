// Package storage provides the two plain-filesystem blob stores: uploaded
// source documents and finished consolidation reports.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// UploadStore keeps uploaded source PDFs as write-once named blobs.
type UploadStore struct {
	dir string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &UploadStore{dir: dir}, nil
}

// SanitizeName strips any path component and replaces characters unsafe for
// a filename.
func SanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == ".." {
		base = "file"
	}
	return base
}

// Save stores the reader's content under a collision-resistant name built
// from a timestamp prefix and the sanitized original name, and returns the
// stored name.
func (s *UploadStore) Save(originalName string, r io.Reader, now time.Time) (string, error) {
	name := fmt.Sprintf("%s_%s", now.Format("20060102150405"), SanitizeName(originalName))
	path := filepath.Join(s.dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload %s: %w", name, err)
	}
	return name, nil
}

// Exists reports whether a stored blob is present. Consolidation checks this
// before use and silently skips missing files.
func (s *UploadStore) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, SanitizeName(name)))
	return err == nil && !info.IsDir()
}

// Path returns the on-disk path of a stored blob.
func (s *UploadStore) Path(name string) string {
	return filepath.Join(s.dir, SanitizeName(name))
}

// Open opens a stored blob for reading.
func (s *UploadStore) Open(name string) (*os.File, error) {
	return os.Open(s.Path(name))
}
