package roster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/nationalid"
)

// Upserter stores roster entries, replacing any existing row with the same RUN.
type Upserter interface {
	UpsertStudents(ctx context.Context, entries []entity.RosterEntry) (int, error)
}

// DefaultModalidad is used when the sheet leaves the column empty.
const DefaultModalidad = "Desconocido"

// RowError describes a sheet row that was skipped.
type RowError struct {
	Row     int    `json:"row"`
	RUN     string `json:"run,omitempty"`
	Message string `json:"message"`
}

type ImportReport struct {
	Sheet    string     `json:"sheet"`
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped,omitempty"`
}

// ReadXLSX parses the first sheet of a roster workbook. Columns A to E hold
// RUN, Nombres, Apellidos, Carrera and Modalidad; row 1 is a header.
func ReadXLSX(r io.Reader) ([]entity.RosterEntry, ImportReport, error) {
	var rep ImportReport
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, rep, common.InvalidInput("unreadable roster workbook", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, rep, common.InvalidInput("roster workbook has no sheets", nil)
	}
	rep.Sheet = sheets[0]
	rows, err := f.GetRows(rep.Sheet)
	if err != nil {
		return nil, rep, fmt.Errorf("read sheet %s: %w", rep.Sheet, err)
	}

	seen := make(map[string]int)
	var out []entity.RosterEntry
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		line := i + 1
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		if strings.Join(row, "") == "" {
			continue
		}
		rep.Rows++

		e := entity.RosterEntry{
			RUN:       cell(0),
			Nombres:   cell(1),
			Apellidos: cell(2),
			Carrera:   cell(3),
			Modalidad: cell(4),
		}
		if e.Modalidad == "" {
			e.Modalidad = DefaultModalidad
		}

		v := common.NewValidator().
			Field("run", e.RUN, common.Required, common.RUN).
			Field("nombres", e.Nombres, common.Required, common.MaxLength(120)).
			Field("apellidos", e.Apellidos, common.Required, common.MaxLength(120)).
			Field("carrera", e.Carrera, common.MaxLength(160)).
			Field("modalidad", e.Modalidad, common.MaxLength(40))
		if v.HasErrors() {
			rep.Skipped = append(rep.Skipped, RowError{Row: line, RUN: e.RUN, Message: v.ErrorMessage()})
			continue
		}
		e.RUN, _ = nationalid.Normalize(e.RUN)

		if prev, dup := seen[e.RUN]; dup {
			rep.Skipped = append(rep.Skipped, RowError{Row: line, RUN: e.RUN, Message: fmt.Sprintf("duplicate of row %d", prev)})
			continue
		}
		seen[e.RUN] = line
		out = append(out, e)
	}
	return out, rep, nil
}

// ImportXLSX reads a roster workbook and upserts every valid row.
func ImportXLSX(ctx context.Context, r io.Reader, store Upserter, logger *slog.Logger) (ImportReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, rep, err := ReadXLSX(r)
	if err != nil {
		return rep, err
	}
	if len(entries) > 0 {
		n, err := store.UpsertStudents(ctx, entries)
		if err != nil {
			return rep, fmt.Errorf("upsert students: %w", err)
		}
		rep.Imported = n
	}
	for _, s := range rep.Skipped {
		logger.Warn("roster row skipped", "row", s.Row, "run", s.RUN, "reason", s.Message)
	}
	logger.Info("roster imported", "sheet", rep.Sheet, "rows", rep.Rows, "imported", rep.Imported, "skipped", len(rep.Skipped))
	return rep, nil
}
