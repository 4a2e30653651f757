package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sgte/pdf-splitter/gen/ent"
	"github.com/sgte/pdf-splitter/gen/ent/estudiante"
	"github.com/sgte/pdf-splitter/gen/ent/predicate"
	"github.com/sgte/pdf-splitter/internal/entity"
)

// StudentRepository reads and maintains the roster (estudiantes).
type StudentRepository interface {
	Lookup(ctx context.Context, run string) ([]entity.RosterEntry, error)
	SearchByName(ctx context.Context, name string, limit int) ([]entity.RosterEntry, error)
	UpsertStudents(ctx context.Context, entries []entity.RosterEntry) (int, error)
	Count(ctx context.Context) (int, error)
}

// upsertChunk bounds the rows sent in one INSERT.
const upsertChunk = 200

type studentRepo struct {
	ent *ent.Client
	log *slog.Logger
	now func() time.Time
}

func NewStudentRepository(db *DB, log *slog.Logger) StudentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &studentRepo{ent: db.Ent, log: log, now: time.Now}
}

func toRosterEntries(rows []*ent.Estudiante) []entity.RosterEntry {
	if len(rows) == 0 {
		return nil
	}
	out := make([]entity.RosterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.RosterEntry{
			RUN:       row.ID,
			Nombres:   row.Nombres,
			Apellidos: row.Apellidos,
			Carrera:   row.Carrera,
			Modalidad: row.Modalidad,
		})
	}
	return out
}

// Lookup queries the live table on every call.
func (r *studentRepo) Lookup(ctx context.Context, run string) ([]entity.RosterEntry, error) {
	rows, err := r.ent.Estudiante.Query().
		Where(estudiante.ID(run)).
		All(ctx)
	if err != nil {
		r.log.Error("student lookup failed", "run", run, "error", err)
		return nil, err
	}
	return toRosterEntries(rows), nil
}

// SearchByName matches every word of name (3+ letters) against given names or surnames.
func (r *studentRepo) SearchByName(ctx context.Context, name string, limit int) ([]entity.RosterEntry, error) {
	var preds []predicate.Estudiante
	for _, w := range strings.Fields(name) {
		if len([]rune(w)) < 3 {
			continue
		}
		preds = append(preds, estudiante.Or(
			estudiante.NombresContainsFold(w),
			estudiante.ApellidosContainsFold(w),
		))
	}
	if len(preds) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.ent.Estudiante.Query().
		Where(estudiante.And(preds...)).
		Order(ent.Asc(estudiante.FieldApellidos, estudiante.FieldNombres)).
		Limit(limit).
		All(ctx)
	if err != nil {
		r.log.Error("student name search failed", "name", name, "error", err)
		return nil, err
	}
	return toRosterEntries(rows), nil
}

// UpsertStudents inserts new students and refreshes the names, program and
// modality of existing ones. created_at is kept on conflict.
func (r *studentRepo) UpsertStudents(ctx context.Context, entries []entity.RosterEntry) (int, error) {
	now := r.now().UTC()
	total := 0
	for start := 0; start < len(entries); start += upsertChunk {
		end := min(start+upsertChunk, len(entries))
		builders := make([]*ent.EstudianteCreate, 0, end-start)
		for _, e := range entries[start:end] {
			builders = append(builders, r.ent.Estudiante.Create().
				SetID(e.RUN).
				SetNombres(e.Nombres).
				SetApellidos(e.Apellidos).
				SetCarrera(e.Carrera).
				SetModalidad(e.Modalidad).
				SetCreatedAt(now).
				SetUpdatedAt(now))
		}
		err := r.ent.Estudiante.CreateBulk(builders...).
			OnConflictColumns(estudiante.FieldID).
			UpdateNewValues().
			Exec(ctx)
		if err != nil {
			r.log.Error("student upsert failed", "rows", end-start, "error", err)
			return total, err
		}
		total += end - start
	}
	r.log.Info("students upserted", "rows", total)
	return total, nil
}

func (r *studentRepo) Count(ctx context.Context) (int, error) {
	return r.ent.Estudiante.Query().Count(ctx)
}
