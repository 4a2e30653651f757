package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/gen/ent"
	"github.com/sgte/pdf-splitter/gen/ent/lote"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
)

// BatchRepository tracks source PDFs (lotes), deduplicated by content hash.
type BatchRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Batch, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.Batch, error)
	Create(ctx context.Context, sourcePath, filename string, size int64, hash []byte, uploadedAt time.Time) (*entity.Batch, error)
	UpsertByHash(ctx context.Context, sourcePath, filename string, size int64, hash []byte, uploadedAt time.Time) (*entity.Batch, bool, error)
	Start(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, id uuid.UUID, out entity.BatchOutcome) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// maxErrorLen matches the error_message column size.
const maxErrorLen = 2048

type batchRepo struct {
	ent    *ent.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewBatchRepository(db *DB, logger *slog.Logger) BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &batchRepo{ent: db.Ent, logger: logger, now: time.Now}
}

func toBatch(row *ent.Lote) *entity.Batch {
	return &entity.Batch{
		ID:          row.ID,
		SourcePath:  row.SourcePath,
		ContentHash: row.ContentHash,
		Filename:    row.Filename,
		FileSize:    row.FileSize,
		Pages:       row.Pages,
		Status:      constants.BatchStatus(row.Status),
		Matched:     row.Matched,
		Unmatched:   row.Unmatched,
		Written:     row.Written,
		Failed:      row.Failed,
		Error:       row.ErrorMessage,
		UploadedAt:  row.UploadedAt,
		FinishedAt:  row.FinishedAt,
	}
}

func (r *batchRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Batch, error) {
	row, err := r.ent.Lote.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toBatch(row), nil
}

func (r *batchRepo) GetByHash(ctx context.Context, hash []byte) (*entity.Batch, error) {
	row, err := r.ent.Lote.Query().
		Where(lote.ContentHash(hash)).
		Only(ctx)
	if err != nil {
		if !ent.IsNotFound(err) {
			r.logger.Error("failed to get batch by hash", "error", err)
		}
		return nil, notFound(err)
	}
	return toBatch(row), nil
}

func (r *batchRepo) Create(ctx context.Context, sourcePath, filename string, size int64, hash []byte, uploadedAt time.Time) (*entity.Batch, error) {
	row, err := r.ent.Lote.Create().
		SetSourcePath(sourcePath).
		SetFilename(filename).
		SetFileSize(size).
		SetContentHash(hash).
		SetStatus(string(constants.BatchQueued)).
		SetUploadedAt(uploadedAt.UTC()).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to create batch", "source_path", sourcePath, "filename", filename, "error", err)
		return nil, err
	}
	return toBatch(row), nil
}

// UpsertByHash returns the existing batch for hash, or creates one. The bool
// reports whether the batch already existed.
func (r *batchRepo) UpsertByHash(ctx context.Context, sourcePath, filename string, size int64, hash []byte, uploadedAt time.Time) (*entity.Batch, bool, error) {
	existing, err := r.GetByHash(ctx, hash)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	row, err := r.Create(ctx, sourcePath, filename, size, hash, uploadedAt)
	if ent.IsConstraintError(err) {
		// a concurrent ingest inserted the same hash first
		if existing, gerr := r.GetByHash(ctx, hash); gerr == nil {
			return existing, true, nil
		}
	}
	if err != nil {
		r.logger.Error("failed to upsert batch by hash", "source_path", sourcePath, "filename", filename, "error", err)
		return nil, false, err
	}
	return row, false, nil
}

func (r *batchRepo) Start(ctx context.Context, id uuid.UUID) error {
	err := r.ent.Lote.UpdateOneID(id).
		SetStatus(string(constants.BatchRunning)).
		ClearErrorMessage().
		ClearFinishedAt().
		Exec(ctx)
	if err != nil {
		r.logger.Error("batch start failed", "batch_id", id, "error", err)
		return notFound(err)
	}
	r.logger.Info("batch started", "batch_id", id)
	return nil
}

func (r *batchRepo) Finish(ctx context.Context, id uuid.UUID, out entity.BatchOutcome) error {
	err := r.ent.Lote.UpdateOneID(id).
		SetStatus(string(constants.BatchDone)).
		SetPages(out.TotalPages).
		SetMatched(out.Matched).
		SetUnmatched(out.Unmatched).
		SetWritten(out.Written).
		SetFailed(out.Failed).
		SetFinishedAt(r.now().UTC()).
		Exec(ctx)
	if err != nil {
		r.logger.Error("batch finish(DONE) failed", "batch_id", id, "error", err)
		return notFound(err)
	}
	r.logger.Info("batch finished (DONE)", "batch_id", id, "written", out.Written, "failed", out.Failed)
	return nil
}

func (r *batchRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if len(message) > maxErrorLen {
		message = strings.ToValidUTF8(message[:maxErrorLen], "")
	}
	err := r.ent.Lote.UpdateOneID(id).
		SetStatus(string(constants.BatchFailed)).
		SetErrorMessage(message).
		SetFinishedAt(r.now().UTC()).
		Exec(ctx)
	if err != nil {
		r.logger.Error("batch finish(FAILED) failed", "batch_id", id, "error", err)
		return notFound(err)
	}
	r.logger.Warn("batch finished (FAILED)", "batch_id", id, "error", message)
	return nil
}
