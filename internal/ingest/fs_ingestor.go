package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/repository"
)

// FSIngestor reads source PDFs from the local filesystem.
type FSIngestor struct {
	Batches  repository.BatchRepository
	MaxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

func NewFSIngestor(batches repository.BatchRepository, maxBytes int64, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = int64(constants.MaxUploadMBDefault) << 20
	}
	return &FSIngestor{Batches: batches, MaxBytes: maxBytes, logger: logger, now: time.Now}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, common.InvalidInput("resolve path", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, common.InvalidInput(fmt.Sprintf("unsupported extension %q", ext), nil)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return out, common.InvalidInput("stat source", err)
	}
	if info.IsDir() {
		return out, common.InvalidInput("source is a directory", nil)
	}
	if info.Size() > i.MaxBytes {
		i.logger.Warn("source exceeds size cap", "path", abs, "size", info.Size(), "max_bytes", i.MaxBytes)
		return out, common.InvalidInput(fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), i.MaxBytes), nil)
	}

	sum, err := HashFile(abs)
	if err != nil {
		i.logger.Error("hash error", "path", abs, "error", err)
		return out, err
	}

	row, dedup, err := i.Batches.UpsertByHash(ctx, abs, filepath.Base(abs), info.Size(), sum, i.now().UTC())
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath:   abs,
		BatchID:      row.ID,
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(sum),
		FileSize:     row.FileSize,
		UploadedAt:   row.UploadedAt,
	}
	i.logger.Info("source ingested", "path", abs, "batch_id", row.ID, "deduplicated", dedup)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each PDF. Per-file failures are collected, not returned.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInput("root path is required", nil)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return results, stats, err
		}
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
