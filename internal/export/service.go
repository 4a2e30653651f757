// Package export renders batch outcomes as XLSX workbooks for manual review.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sgte/pdf-splitter/internal/entity"
)

const (
	SheetGroups     = "Grupos"
	SheetUnassigned = "Sin asignar"
	SheetPages      = "Paginas"
)

// Service produces XLSX bytes for batch outcomes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// OutcomeXLSX returns a workbook with one row per group, the unassigned-page
// triage list and the full per-page report.
func (s *Service) OutcomeXLSX(out entity.BatchOutcome) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetGroups); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetUnassigned, SheetPages} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	groupRows := make([][]any, 0, len(out.Groups))
	for i, g := range out.Groups {
		student, carrera := "", ""
		if g.Student != nil {
			student = g.Student.FullName()
			carrera = g.Student.Carrera
		}
		paths := make([]string, 0, len(g.Artifacts))
		for _, a := range g.Artifacts {
			paths = append(paths, a.Path)
		}
		groupRows = append(groupRows, []any{
			i + 1,
			pageRange(g.FirstPage, g.LastPage),
			g.Identity,
			g.NameGuess,
			student,
			carrera,
			string(g.DocumentType),
			string(g.Status),
			g.Message,
			strings.Join(paths, "\n"),
		})
	}
	if err := writeTable(f, SheetGroups, []string{
		"Grupo", "Páginas", "RUN", "Nombre detectado", "Estudiante", "Carrera",
		"Tipo", "Estado", "Detalle", "Archivos",
	}, groupRows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(SheetGroups, "A", "B", 10)
	_ = f.SetColWidth(SheetGroups, "C", "C", 14)
	_ = f.SetColWidth(SheetGroups, "D", "F", 28)
	_ = f.SetColWidth(SheetGroups, "G", "H", 18)
	_ = f.SetColWidth(SheetGroups, "I", "I", 40)
	_ = f.SetColWidth(SheetGroups, "J", "J", 70)

	unassigned := out.Unassigned()
	if err := writeTable(f, SheetUnassigned, []string{
		"Página", "RUN detectado", "Nombre detectado", "Motivo", "Vista previa",
	}, pageRows(unassigned, func(p entity.PageReport) []any {
		return []any{p.Index + 1, p.IDNumber, p.NameGuess, p.Reason, p.Preview}
	})); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(SheetUnassigned, "A", "A", 8)
	_ = f.SetColWidth(SheetUnassigned, "B", "C", 24)
	_ = f.SetColWidth(SheetUnassigned, "D", "D", 36)
	_ = f.SetColWidth(SheetUnassigned, "E", "E", 80)

	if err := writeTable(f, SheetPages, []string{
		"Página", "Método", "Confianza", "Puntaje OCR", "RUN", "RUN válido", "Tipo", "Grupo", "Asignada",
	}, pageRows(out.Pages, func(p entity.PageReport) []any {
		return []any{p.Index + 1, p.Method, string(p.Confidence), p.OCRScore, p.IDNumber, p.IDValid,
			string(p.DocumentType), p.Group + 1, p.Assigned}
	})); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(SheetPages, "A", "I", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", out.RunID.String(),
		"groups", len(out.Groups),
		"unassigned", len(unassigned),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteReport stores the outcome workbook under dir as <run id>.xlsx.
func (s *Service) WriteReport(out entity.BatchOutcome, dir string) (string, error) {
	data, err := s.OutcomeXLSX(out)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("reports dir: %w", err)
	}
	path := filepath.Join(dir, out.RunID.String()+".xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func pageRows(pages []entity.PageReport, row func(entity.PageReport) []any) [][]any {
	out := make([][]any, 0, len(pages))
	for _, p := range pages {
		out = append(out, row(p))
	}
	return out
}

// pageRange renders 0-based indexes as the 1-based range shown to staff.
func pageRange(first, last int) string {
	if first == last {
		return fmt.Sprint(first + 1)
	}
	return fmt.Sprintf("%d-%d", first+1, last+1)
}
