package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caseline/internal/storage"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"relatório final.pdf": "relat_rio_final.pdf",
		"../../etc/passwd":    "passwd",
		"a b/c d.pdf":         "c_d.pdf",
		"  plain.pdf ":        "plain.pdf",
		"..":                  "file",
		"":                    "file",
	}
	for in, want := range cases {
		if got := storage.SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadSaveAndOpen(t *testing.T) {
	store, err := storage.NewUploadStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	name, err := store.Save("defesa escrita.pdf", strings.NewReader("%PDF-fake"), ts)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if name != "20250314150926_defesa_escrita.pdf" {
		t.Fatalf("unexpected stored name: %s", name)
	}
	if !store.Exists(name) {
		t.Fatal("stored file should exist")
	}
	data, err := os.ReadFile(store.Path(name))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "%PDF-fake" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestUploadExistsRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewUploadStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	secret := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Exists("../secret.txt") {
		t.Fatal("path traversal must not resolve outside the store")
	}
}

func TestReportStoreListNewestFirst(t *testing.T) {
	store, err := storage.NewReportStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Write("processo_001_20250101_000000.pdf", []byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := store.Path("processo_001_20250101_000000.pdf")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("processo_002_20250201_000000.pdf", []byte("bb")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Non-PDF files are not reports.
	if err := os.WriteFile(store.Path("notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(items))
	}
	if items[0].Filename != "processo_002_20250201_000000.pdf" {
		t.Fatalf("newest report should come first, got %s", items[0].Filename)
	}
	if items[0].SizeBytes != 2 {
		t.Fatalf("unexpected size: %d", items[0].SizeBytes)
	}
}
