package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/gen/ent"
	"github.com/sgte/pdf-splitter/gen/ent/documento"
	"github.com/sgte/pdf-splitter/internal/entity"
)

// DocumentRepository stores written artifacts (documentos).
type DocumentRepository interface {
	RecordIntents(ctx context.Context, batchID *uuid.UUID, intents []entity.DocumentIntent) ([]entity.Document, error)
	ListByStudent(ctx context.Context, run string) ([]entity.Document, error)
}

type documentRepo struct {
	ent    *ent.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{ent: db.Ent, logger: logger, now: time.Now}
}

func toDocument(row *ent.Documento) entity.Document {
	return entity.Document{
		ID:           row.ID,
		BatchID:      row.LoteID,
		StudentRUN:   row.EstudianteRun,
		DocumentType: constants.DocumentType(row.Tipo),
		Path:         row.Path,
		Validated:    row.Validado,
		UploadedAt:   row.UploadedAt,
	}
}

// RecordIntents inserts one unvalidated row per artifact in a single statement.
func (r *documentRepo) RecordIntents(ctx context.Context, batchID *uuid.UUID, intents []entity.DocumentIntent) ([]entity.Document, error) {
	if len(intents) == 0 {
		return nil, nil
	}
	now := r.now().UTC()
	builders := make([]*ent.DocumentoCreate, 0, len(intents))
	for _, in := range intents {
		builders = append(builders, r.ent.Documento.Create().
			SetTipo(string(in.DocumentType)).
			SetPath(in.Path).
			SetValidado(false).
			SetUploadedAt(now).
			SetEstudianteRun(in.StudentRUN).
			SetNillableLoteID(batchID))
	}
	rows, err := r.ent.Documento.CreateBulk(builders...).Save(ctx)
	if err != nil {
		r.logger.Error("failed to record documents", "count", len(intents), "error", err)
		return nil, err
	}
	docs := make([]entity.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row))
	}
	r.logger.Info("documents recorded", "count", len(docs))
	return docs, nil
}

func (r *documentRepo) ListByStudent(ctx context.Context, run string) ([]entity.Document, error) {
	rows, err := r.ent.Documento.Query().
		Where(documento.EstudianteRun(run)).
		Order(ent.Asc(documento.FieldUploadedAt, documento.FieldPath)).
		All(ctx)
	if err != nil {
		r.logger.Error("failed to list documents", "run", run, "error", err)
		return nil, err
	}
	out := make([]entity.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDocument(row))
	}
	return out, nil
}
