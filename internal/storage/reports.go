package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"caseline/internal/domain"
)

// ReportStore keeps finished consolidation PDFs.
type ReportStore struct {
	dir string
}

func NewReportStore(dir string) (*ReportStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir %s: %w", dir, err)
	}
	return &ReportStore{dir: dir}, nil
}

// Write persists a finished report. Repeated generations for the same case
// carry distinct timestamps in the name; a same-second repeat overwrites,
// which is accepted.
func (s *ReportStore) Write(name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, SanitizeName(name)), data, 0o644)
}

// Path returns the on-disk path for a report name.
func (s *ReportStore) Path(name string) string {
	return filepath.Join(s.dir, SanitizeName(name))
}

// Exists reports whether a report file is present.
func (s *ReportStore) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// List returns all report PDFs newest-first by modification time.
func (s *ReportStore) List() ([]domain.Report, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var res []domain.Report
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		res = append(res, domain.Report{
			Filename:   e.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ModifiedAt == res[j].ModifiedAt {
			return res[i].Filename > res[j].Filename
		}
		return res[i].ModifiedAt > res[j].ModifiedAt
	})
	return res, nil
}
