package report_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/report"
	"caseline/internal/storage"
)

type pipelineEnv struct {
	Engine   engine.Engine
	Uploads  *storage.UploadStore
	Reports  *storage.ReportStore
	Pipeline *report.Pipeline
	Ctx      context.Context
}

func newPipelineEnv(t *testing.T) pipelineEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	table, err := cfg.Workflows()
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	uploads, err := storage.NewUploadStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}
	reports, err := storage.NewReportStore(t.TempDir())
	if err != nil {
		t.Fatalf("report store: %v", err)
	}
	eng := engine.New(conn, cfg, table, uploads)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	p := &report.Pipeline{
		Repo:    eng.Repo,
		Uploads: uploads,
		Reports: reports,
		Now:     eng.Now,
	}
	return pipelineEnv{Engine: eng, Uploads: uploads, Reports: reports, Pipeline: p, Ctx: context.Background()}
}

// makePDF renders a minimal real PDF with the given page count.
func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.CellFormat(0, 10, fmt.Sprintf("page %d", i), "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	return buf.Bytes()
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	return n
}

// makeLabeledPDF renders a one-page PDF carrying a marker string so tests can
// locate the page after merging.
func makeLabeledPDF(t *testing.T, label string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.CellFormat(0, 10, label, "", 1, "L", false, 0, "")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	return buf.Bytes()
}

// pageContent extracts the decoded content stream of a single page.
func pageContent(t *testing.T, data []byte, page int) string {
	t.Helper()
	dir := t.TempDir()
	if err := api.ExtractContent(bytes.NewReader(data), dir, "report", []string{strconv.Itoa(page)}, nil); err != nil {
		t.Fatalf("extract page %d: %v", page, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read extraction dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one extracted file for page %d, got %d", page, len(entries))
	}
	body, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read extracted content: %v", err)
	}
	return string(body)
}

// decodedStreams inflates every flate stream in a PDF so assertions can see
// text drawn through form XObjects, which page content extraction skips.
func decodedStreams(data []byte) string {
	var out bytes.Buffer
	rest := data
	for {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		rest = rest[i+len("stream"):]
		start := 0
		for start < len(rest) && (rest[start] == '\r' || rest[start] == '\n') {
			start++
		}
		end := bytes.Index(rest, []byte("endstream"))
		if end < 0 {
			break
		}
		if zr, err := zlib.NewReader(bytes.NewReader(rest[start:end])); err == nil {
			io.Copy(&out, zr)
			zr.Close()
		}
		rest = rest[end+len("endstream"):]
	}
	return out.String()
}

func seedCase(t *testing.T, env pipelineEnv, attachments ...engine.Attachment) domain.Case {
	t.Helper()
	c, err := env.Engine.CreateCase(env.Ctx, engine.CaseCreateOptions{
		CaseNumber: "123/2025",
		CaseType:   "PAD",
		Summary:    "Apuração de conduta",
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if len(attachments) > 0 {
		if _, _, err := env.Engine.AdvanceStage(env.Ctx, engine.AdvanceOptions{
			CaseID:      c.ID,
			Stage:       "Instrução",
			Attachments: attachments,
			ActorID:     "tester",
		}); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	return c
}

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	got := report.Filename("123/2025", ts)
	if got != "processo_123-2025_20250314_150926.pdf" {
		t.Fatalf("unexpected filename: %s", got)
	}
}

func TestRenderCover(t *testing.T) {
	c := domain.Case{
		CaseNumber:   "001/2025",
		CaseType:     "PAD",
		Summary:      "Resumo dos fatos apurados",
		CurrentStage: "Autuado",
		OpenedAt:     "2025-01-02T09:00:00Z",
		Committee: []domain.CommitteeMember{
			{Name: "Ana Souza", Role: "Presidente"},
		},
	}
	data, err := report.RenderCover(c)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("cover is not a PDF stream")
	}
	if n := pageCount(t, data); n != 1 {
		t.Fatalf("cover must be a single page, got %d", n)
	}
}

func TestPipelineRunMergesAndStamps(t *testing.T) {
	env := newPipelineEnv(t)
	c := seedCase(t, env,
		engine.Attachment{Name: "oficio.pdf", Content: makePDF(t, 2)},
		engine.Attachment{Name: "defesa.pdf", Content: makePDF(t, 3)},
	)
	if err := env.Pipeline.Run(env.Ctx, c.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	items, err := env.Reports.List()
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one report, got %d", len(items))
	}
	if !strings.HasPrefix(items[0].Filename, "processo_123-2025_") {
		t.Fatalf("unexpected report name: %s", items[0].Filename)
	}
	data, err := os.ReadFile(env.Reports.Path(items[0].Filename))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	// Cover page plus the 2-page and 3-page sources.
	if n := pageCount(t, data); n != 6 {
		t.Fatalf("expected 6 pages, got %d", n)
	}
}

func TestPipelineMergesInChronologicalOrder(t *testing.T) {
	env := newPipelineEnv(t)
	c, err := env.Engine.CreateCase(env.Ctx, engine.CaseCreateOptions{
		CaseNumber: "321/2025",
		CaseType:   "PAD",
		Summary:    "Ordem cronológica dos autos",
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	// The later entry is inserted first so ledger insertion order and
	// chronological order disagree.
	if _, _, err := env.Engine.AdvanceStage(env.Ctx, engine.AdvanceOptions{
		CaseID:      c.ID,
		Stage:       "Defesa",
		OccurredAt:  "2025-06-03T10:00:00Z",
		Attachments: []engine.Attachment{{Name: "defesa.pdf", Content: makeLabeledPDF(t, "DOC-SEGUNDO")}},
		ActorID:     "tester",
	}); err != nil {
		t.Fatalf("advance later entry: %v", err)
	}
	if _, _, err := env.Engine.AdvanceStage(env.Ctx, engine.AdvanceOptions{
		CaseID:      c.ID,
		Stage:       "Instrução",
		OccurredAt:  "2025-06-02T10:00:00Z",
		Attachments: []engine.Attachment{{Name: "oficio.pdf", Content: makeLabeledPDF(t, "DOC-PRIMEIRO")}},
		ActorID:     "tester",
	}); err != nil {
		t.Fatalf("advance earlier entry: %v", err)
	}

	if err := env.Pipeline.Run(env.Ctx, c.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	items, err := env.Reports.List()
	if err != nil || len(items) != 1 {
		t.Fatalf("reports: %v (%d)", err, len(items))
	}
	data, err := os.ReadFile(env.Reports.Path(items[0].Filename))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if n := pageCount(t, data); n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
	if got := pageContent(t, data, 1); !strings.Contains(got, "Processo 321/2025") {
		t.Fatal("page 1 must be the cover")
	}
	if got := pageContent(t, data, 2); !strings.Contains(got, "DOC-PRIMEIRO") {
		t.Fatal("page 2 must carry the earlier entry's document")
	}
	if got := pageContent(t, data, 3); !strings.Contains(got, "DOC-SEGUNDO") {
		t.Fatal("page 3 must carry the later entry's document")
	}

	streams := decodedStreams(data)
	for _, label := range []string{"Fl. 001", "Fl. 002", "Fl. 003"} {
		if !strings.Contains(streams, label) {
			t.Fatalf("missing folio label %q", label)
		}
	}
	if strings.Contains(streams, "Fl. 004") {
		t.Fatal("folio numbering ran past the page count")
	}
}

func TestPipelineSkipsMissingSource(t *testing.T) {
	env := newPipelineEnv(t)
	c := seedCase(t, env,
		engine.Attachment{Name: "oficio.pdf", Content: makePDF(t, 2)},
		engine.Attachment{Name: "defesa.pdf", Content: makePDF(t, 3)},
	)
	entries, err := env.Engine.Repo.ListEntries(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	docs, err := env.Engine.Repo.ListDocuments(env.Ctx, entries[len(entries)-1].ID)
	if err != nil || len(docs) != 2 {
		t.Fatalf("documents: %v (%d)", err, len(docs))
	}
	if err := os.Remove(env.Uploads.Path(docs[0].Filename)); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	if err := env.Pipeline.Run(env.Ctx, c.ID); err != nil {
		t.Fatalf("run with missing source: %v", err)
	}
	items, _ := env.Reports.List()
	if len(items) != 1 {
		t.Fatalf("expected one report, got %d", len(items))
	}
	data, err := os.ReadFile(env.Reports.Path(items[0].Filename))
	if err != nil {
		t.Fatal(err)
	}
	// Cover plus the surviving 3-page source.
	if n := pageCount(t, data); n != 4 {
		t.Fatalf("expected 4 pages, got %d", n)
	}
}

func TestPipelineRunNoAttachments(t *testing.T) {
	env := newPipelineEnv(t)
	c := seedCase(t, env)
	if err := env.Pipeline.Run(env.Ctx, c.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	items, _ := env.Reports.List()
	if len(items) != 1 {
		t.Fatalf("expected cover-only report, got %d reports", len(items))
	}
}

func TestStampFoliosPreservesPageCount(t *testing.T) {
	src := makePDF(t, 5)
	stamped, err := report.StampFolios(src)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if n := pageCount(t, stamped); n != 5 {
		t.Fatalf("stamping changed page count: %d", n)
	}
}

func TestDispatcherRunsDetached(t *testing.T) {
	env := newPipelineEnv(t)
	c := seedCase(t, env, engine.Attachment{Name: "doc.pdf", Content: makePDF(t, 1)})
	d := report.NewDispatcher(env.Pipeline, nil)
	d.Submit(c.ID)
	d.Wait()
	items, err := env.Reports.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one report after Wait, got %d", len(items))
	}
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	// A nil pipeline makes Run panic; Submit must swallow it.
	d := report.NewDispatcher(nil, nil)
	d.Submit("missing")
	d.Wait()
}

func TestDispatcherUnknownCaseLogsOnly(t *testing.T) {
	env := newPipelineEnv(t)
	d := report.NewDispatcher(env.Pipeline, nil)
	d.Submit("no-such-case")
	d.Wait()
	items, _ := env.Reports.List()
	if len(items) != 0 {
		t.Fatalf("no report expected, got %d", len(items))
	}
}
