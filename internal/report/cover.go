package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"caseline/internal/domain"
)

// RenderCover produces the standalone cover page for a consolidation report
// as a single-document PDF byte stream. It always yields exactly one page,
// which becomes folio 1 of the merged result.
func RenderCover(c domain.Case) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Processo %s", c.CaseNumber), true)
	pdf.SetAuthor("caseline", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(pdf, fmt.Sprintf("Processo %s", c.CaseNumber)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	writeField(pdf, "Tipo", c.CaseType)
	writeField(pdf, "Etapa atual", c.CurrentStage)
	if opened, err := time.Parse(time.RFC3339, c.OpenedAt); err == nil {
		writeField(pdf, "Data de autuação", opened.Format("02/01/2006"))
	} else {
		writeField(pdf, "Data de autuação", c.OpenedAt)
	}
	if c.Ordinance != "" {
		writeField(pdf, "Portaria", c.Ordinance)
	}
	if c.SubjectIdentified {
		writeField(pdf, "Servidor investigado", c.SubjectName)
		if c.SubjectRole != "" {
			writeField(pdf, "Cargo", c.SubjectRole)
		}
		if c.SubjectRegistration != "" {
			writeField(pdf, "Matrícula", c.SubjectRegistration)
		}
	}
	pdf.Ln(6)

	if len(c.Committee) > 0 {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(pdf, "Comissão"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		for _, m := range c.Committee {
			line := m.Name
			if m.Role != "" {
				line = fmt.Sprintf("%s — %s", m.Name, m.Role)
			}
			pdf.CellFormat(0, 6, tr(pdf, line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(pdf, "Resumo dos fatos"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, line := range strings.Split(strings.TrimSpace(c.Summary), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pdf.MultiCell(0, 6, tr(pdf, line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render cover: %w", err)
	}
	return buf.Bytes(), nil
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	pdf.CellFormat(0, 6, tr(pdf, fmt.Sprintf("%s: %s", label, value)), "", 1, "L", false, 0, "")
}

// tr maps UTF-8 text to the cp1252 range the core fonts expect.
func tr(pdf *gofpdf.Fpdf, s string) string {
	translator := pdf.UnicodeTranslatorFromDescriptor("")
	return translator(s)
}
