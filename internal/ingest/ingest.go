package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	BatchID      uuid.UUID
	Deduplicated bool
	HashHex      string
	FileSize     int64
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor registers source PDFs as batches.
type Ingestor interface {
	// IngestPath registers a single PDF.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory registers all PDFs under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
