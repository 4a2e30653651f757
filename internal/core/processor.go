package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/export"
	"github.com/sgte/pdf-splitter/internal/ingest"
	"github.com/sgte/pdf-splitter/internal/pipeline"
	"github.com/sgte/pdf-splitter/internal/repository"
)

// Opener opens a source PDF for the pipeline.
type Opener func(path string) (pipeline.Document, error)

// Result is what one processed source produced.
type Result struct {
	Batch      *entity.Batch
	Outcome    entity.BatchOutcome
	Skipped    bool // already processed and not forced
	ReportPath string
}

// Processor coordinates ingest, the split pipeline and persistence of a batch.
type Processor struct {
	logger     *slog.Logger
	ingestor   ingest.Ingestor
	batches    repository.BatchRepository
	documents  repository.DocumentRepository
	pipeline   *pipeline.Pipeline
	open       Opener
	reports    *export.Service
	reportsDir string
}

func NewProcessor(
	logger *slog.Logger,
	ingestor ingest.Ingestor,
	batches repository.BatchRepository,
	documents repository.DocumentRepository,
	pl *pipeline.Pipeline,
	open Opener,
	reports *export.Service,
	reportsDir string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		ingestor:   ingestor,
		batches:    batches,
		documents:  documents,
		pipeline:   pl,
		open:       open,
		reports:    reports,
		reportsDir: reportsDir,
	}
}

// Probe reports whether the OCR engine is usable.
func (p *Processor) Probe(ctx context.Context) error {
	return p.pipeline.Probe(ctx)
}

// ProcessPath registers path as a batch and splits it. A source already
// processed to completion is skipped unless force is set.
func (p *Processor) ProcessPath(ctx context.Context, path string, force bool) (Result, error) {
	in, err := p.ingestor.IngestPath(ctx, path)
	if err != nil {
		p.logger.Error("processor.ingest.failed", "path", path, "error", err)
		return Result{}, err
	}
	if in.Deduplicated && !force {
		row, err := p.batches.GetByID(ctx, in.BatchID)
		if err != nil {
			return Result{}, err
		}
		if row.Status == constants.BatchDone || row.Status == constants.BatchRunning {
			p.logger.Info("processor.skip.duplicate", "path", path, "batch_id", row.ID, "status", row.Status)
			return Result{Batch: row, Skipped: true}, nil
		}
	}
	return p.ProcessBatch(ctx, in.BatchID)
}

// ProcessBatch splits an already registered batch and persists the outcome.
func (p *Processor) ProcessBatch(ctx context.Context, batchID uuid.UUID) (Result, error) {
	ctx = common.WithBatchID(ctx, batchID.String())
	log := p.logger.With("batch_id", batchID.String())

	row, err := p.batches.GetByID(ctx, batchID)
	if err != nil {
		return Result{}, common.WrapError(err, "get batch")
	}
	if err := p.batches.Start(ctx, batchID); err != nil {
		return Result{}, err
	}

	doc, err := p.open(row.SourcePath)
	if err != nil {
		p.fail(ctx, log, batchID, err)
		return Result{Batch: row}, err
	}

	out, err := p.pipeline.Run(ctx, doc)
	if err != nil {
		p.fail(ctx, log, batchID, err)
		return Result{Batch: row}, err
	}

	res := Result{Batch: row, Outcome: out}
	if intents := out.Intents(); len(intents) > 0 {
		if _, err := p.documents.RecordIntents(ctx, &batchID, intents); err != nil {
			err = common.WrapError(err, "record documents")
			p.discard(log, intents)
			p.fail(ctx, log, batchID, err)
			return res, err
		}
	}

	if p.reports != nil && p.reportsDir != "" {
		path, err := p.reports.WriteReport(out, p.reportsDir)
		if err != nil {
			log.Warn("processor.report.failed", "error", err)
		} else {
			res.ReportPath = path
		}
	}

	// documents are recorded, so the batch is DONE even if ctx ended meanwhile
	finishCtx := context.WithoutCancel(ctx)
	if err := p.batches.Finish(finishCtx, batchID, out); err != nil {
		return res, err
	}
	if fresh, err := p.batches.GetByID(finishCtx, batchID); err == nil {
		res.Batch = fresh
	}
	log.Info("processor.batch.done",
		"run_id", out.RunID.String(),
		"pages", out.TotalPages,
		"written", out.Written,
		"unmatched", out.Unmatched,
		"failed", out.Failed,
	)
	return res, nil
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, batchID uuid.UUID, cause error) {
	log.Error("processor.batch.failed", "error", cause)
	// the batch row is updated even when ctx is already done
	ctx = context.WithoutCancel(ctx)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("canceled: %w", cause)
	}
	if err := p.batches.Fail(ctx, batchID, cause.Error()); err != nil {
		log.Warn("processor.batch.fail_update", "error", err)
	}
}

// discard removes artifacts whose document rows could not be recorded.
func (p *Processor) discard(log *slog.Logger, intents []entity.DocumentIntent) {
	for _, in := range intents {
		if err := os.Remove(in.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("processor.discard.failed", "path", in.Path, "error", err)
		}
	}
	log.Warn("processor.artifacts.discarded", "count", len(intents))
}
