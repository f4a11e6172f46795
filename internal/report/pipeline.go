// Package report implements the document-consolidation pipeline: merge a
// generated cover page with every source document attached to a case, then
// stamp continuous folio numbering across the merged result.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"caseline/internal/domain"
	"caseline/internal/repo"
	"caseline/internal/storage"
)

// folioDesc positions the stamp top-right on every page, matching the
// "Fl. NNN" corner label of a physical case file.
const folioDesc = "fontname:Helvetica, points:10, scale:1 abs, pos:tr, off:-20 -15, rot:0, fillcolor:#000000, op:1"

// Pipeline consolidates one case per Run invocation. It reads the ledger and
// the upload store and writes the report store; case records are never
// mutated here.
type Pipeline struct {
	Repo    repo.Repo
	Uploads *storage.UploadStore
	Reports *storage.ReportStore
	Logger  *log.Logger
	Now     func() time.Time
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes both pipeline stages and persists the stamped result. Any
// error aborts this invocation only; the caller runs detached and nothing is
// retried.
func (p *Pipeline) Run(ctx context.Context, caseID string) error {
	c, err := p.Repo.GetCase(ctx, caseID)
	if err != nil {
		return fmt.Errorf("load case %s: %w", caseID, err)
	}

	merged, err := p.merge(ctx, c)
	if err != nil {
		return fmt.Errorf("merge case %s: %w", c.CaseNumber, err)
	}

	stamped, err := StampFolios(merged)
	if err != nil {
		return fmt.Errorf("stamp case %s: %w", c.CaseNumber, err)
	}

	name := Filename(c.CaseNumber, p.now())
	if err := p.Reports.Write(name, stamped); err != nil {
		return fmt.Errorf("persist report %s: %w", name, err)
	}
	p.logger().Printf("report generated: %s", name)
	return nil
}

// merge concatenates the cover page and every resolvable source document in
// entry chronological order into one PDF stream. The page order inside each
// multi-page source is preserved. A source missing from the upload store is
// skipped, never fatal.
func (p *Pipeline) merge(ctx context.Context, c domain.Case) ([]byte, error) {
	cover, err := RenderCover(c)
	if err != nil {
		return nil, err
	}
	readers := []io.ReadSeeker{bytes.NewReader(cover)}

	entries, err := p.Repo.ListEntries(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		docs, err := p.Repo.ListDocuments(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if !p.Uploads.Exists(doc.Filename) {
				p.logger().Printf("case %s: source %s missing, skipped", c.CaseNumber, doc.Filename)
				continue
			}
			data, err := os.ReadFile(p.Uploads.Path(doc.Filename))
			if err != nil {
				p.logger().Printf("case %s: source %s unreadable, skipped: %v", c.CaseNumber, doc.Filename, err)
				continue
			}
			readers = append(readers, bytes.NewReader(data))
		}
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StampFolios overlays "Fl. NNN" on every page of a merged PDF, numbering
// continuously from 1 across the whole document. It is the second, separate
// pipeline stage so merge output stays independently testable.
func StampFolios(merged []byte) ([]byte, error) {
	rs := bytes.NewReader(merged)
	count, err := api.PageCount(rs, nil)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	stamps := make(map[int]*model.Watermark, count)
	for page := 1; page <= count; page++ {
		wm, err := api.TextWatermark(fmt.Sprintf("Fl. %03d", page), folioDesc, true, false, types.POINTS)
		if err != nil {
			return nil, err
		}
		stamps[page] = wm
	}
	var out bytes.Buffer
	if err := api.AddWatermarksMap(rs, &out, stamps, nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Filename builds the report name from the case number (path-unsafe
// characters replaced) and a second-granularity generation timestamp.
func Filename(caseNumber string, ts time.Time) string {
	number := storage.SanitizeName(strings.ReplaceAll(caseNumber, "/", "-"))
	return fmt.Sprintf("processo_%s_%s.pdf", number, ts.Format("20060102_150405"))
}
