package server

import (
	"context"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sgte/pdf-splitter/internal/async"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/utils"
)

// SplitDirectory registers every PDF under root and queues the new ones.
// Fields: root_path (required), skip_hidden (default true), force.
func (s *SplitterService) SplitDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil || s.queue == nil {
		return nil, common.InvalidArgumentError("directory processing is not enabled")
	}
	f := req.GetFields()
	root := strings.TrimSpace(f["root_path"].GetStringValue())
	if root == "" {
		s.logger.Error("split directory request missing root_path")
		return nil, common.InvalidArgumentError("root_path is required")
	}
	skipHidden := true
	if v, ok := f["skip_hidden"]; ok {
		skipHidden = v.GetBoolValue()
	}
	force := f["force"].GetBoolValue()

	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("directory ingest completed", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)

	items := make([]any, 0, len(results))
	queued := 0
	for _, r := range results {
		item := map[string]any{
			"source_path":  r.SourcePath,
			"deduplicated": r.Deduplicated,
			"hash":         r.HashHex,
			"error":        r.Err,
			"queued":       false,
		}
		if r.Err == "" {
			item["batch_id"] = r.BatchID.String()
			item["uploaded_at"] = r.UploadedAt.UTC().Format(time.RFC3339)
		}
		if r.Err == "" && (!r.Deduplicated || force) {
			if err := s.queue.Enqueue(ctx, async.Job{Path: r.SourcePath, Force: force}); err != nil {
				item["error"] = err.Error()
			} else {
				item["queued"] = true
				queued++
			}
		}
		items = append(items, item)
	}

	return utils.ToStruct(map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"succeeded":    stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"queued":       queued,
		"results":      items,
	})
}
