// Package pipeline runs one source document through recognition, grouping,
// roster resolution and writing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/classify"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/grouping"
	"github.com/sgte/pdf-splitter/internal/ocr"
	"github.com/sgte/pdf-splitter/internal/roster"
	"github.com/sgte/pdf-splitter/internal/utils"
	"github.com/sgte/pdf-splitter/internal/writer"
)

// Document is an opened source PDF. Page indexes are 0-based.
type Document interface {
	Path() string
	Size() int64
	PageCount() int
	TextLayer(ctx context.Context, page int) (string, error)
	Render(ctx context.Context, page int, dir string) (string, error)
	writer.PageSource
}

type Config struct {
	OCRWorkers     int
	PageTimeout    time.Duration // per page, 0 = unbounded
	UseTextLayer   bool
	MinTextChars   int   // embedded text shorter than this falls back to OCR
	MaxUploadBytes int64 // 0 = no cap
	ScratchDir     string
}

type Pipeline struct {
	cfg        Config
	engine     ocr.Engine
	classifier *classify.Classifier
	resolver   *roster.Resolver
	writer     *writer.Writer
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config, engine ocr.Engine, classifier *classify.Classifier, resolver *roster.Resolver, w *writer.Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OCRWorkers <= 0 {
		cfg.OCRWorkers = 1
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 40
	}
	if classifier == nil {
		classifier = classify.NewDefault()
	}
	return &Pipeline{
		cfg:        cfg,
		engine:     engine,
		classifier: classifier,
		resolver:   resolver,
		writer:     w,
		logger:     logger,
		now:        time.Now,
	}
}

// Probe checks that the OCR engine can serve requests.
func (p *Pipeline) Probe(ctx context.Context) error {
	if err := p.engine.Probe(ctx); err != nil {
		if errors.Is(err, common.ErrEngineUnavailable) {
			return err
		}
		return common.EngineUnavailable(err)
	}
	return nil
}

// Run processes doc end to end. Only invalid input, an unavailable OCR engine
// and cancellation abort the run; every other problem is reported on the
// affected page or group of the returned outcome.
func (p *Pipeline) Run(ctx context.Context, doc Document) (entity.BatchOutcome, error) {
	start := p.now()
	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())
	log := p.logger.With("run_id", runID.String(), "source", doc.Path())

	if doc.PageCount() <= 0 {
		return entity.BatchOutcome{}, common.InvalidInput("document has no pages", nil)
	}
	if p.cfg.MaxUploadBytes > 0 && doc.Size() > p.cfg.MaxUploadBytes {
		return entity.BatchOutcome{}, common.InvalidInput(
			fmt.Sprintf("document is %d bytes, limit is %d", doc.Size(), p.cfg.MaxUploadBytes), nil)
	}
	if err := p.Probe(ctx); err != nil {
		log.Error("ocr engine unavailable", "error", err)
		return entity.BatchOutcome{}, err
	}

	dir, err := os.MkdirTemp(p.cfg.ScratchDir, "splitter-*")
	if err != nil {
		return entity.BatchOutcome{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	log.Info("pipeline.start", "pages", doc.PageCount(), "workers", p.cfg.OCRWorkers)
	results, err := p.recognizePages(ctx, doc, dir)
	if err != nil {
		log.Warn("pipeline.canceled", "error", err)
		return entity.BatchOutcome{}, err
	}

	groups := grouping.Group(results)
	groups = p.resolver.ResolveAll(ctx, groups)
	outcomes := p.writer.Write(ctx, doc, groups)
	if err := ctx.Err(); err != nil {
		// nothing records these files once the run is abandoned
		discardArtifacts(log, outcomes)
		log.Warn("pipeline.canceled", "stage", "write", "error", err)
		return entity.BatchOutcome{}, err
	}

	out := summarize(results, outcomes)
	out.RunID = runID
	out.SourcePath = doc.Path()
	out.TotalPages = doc.PageCount()
	out.StartedAt = start
	out.Duration = p.now().Sub(start)

	log.Info("pipeline.done",
		"groups", len(out.Groups),
		"matched", out.Matched,
		"unmatched", out.Unmatched,
		"written", out.Written,
		"failed", out.Failed,
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func discardArtifacts(log *slog.Logger, outcomes []entity.GroupOutcome) {
	for _, g := range outcomes {
		for _, a := range g.Artifacts {
			if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn("pipeline.discard.failed", "path", a.Path, "error", err)
			}
		}
	}
}

// summarize builds the page triage rows and counters. Written counts files,
// the other counters count groups.
func summarize(results []entity.PageResult, outcomes []entity.GroupOutcome) entity.BatchOutcome {
	out := entity.BatchOutcome{Groups: outcomes, Pages: make([]entity.PageReport, 0, len(results))}

	groupOf := make(map[int]int, len(results))
	for gi, g := range outcomes {
		for i := g.FirstPage; i <= g.LastPage; i++ {
			groupOf[i] = gi
		}
		switch g.Status {
		case constants.GroupUnmatched, constants.GroupAmbiguous:
			out.Unmatched++
		case constants.GroupFailed:
			out.Failed++
		}
		if g.Student != nil {
			out.Matched++
		}
		out.Written += len(g.Artifacts)
	}

	for _, r := range results {
		gi := groupOf[r.Page.Index]
		g := outcomes[gi]
		rep := entity.PageReport{
			Index:        r.Page.Index,
			Method:       r.Page.Method,
			Confidence:   r.Identity.Confidence,
			OCRScore:     r.Page.OCRConfidence,
			IDNumber:     r.Identity.IDNumber,
			IDValid:      r.Identity.IDValid,
			NameGuess:    r.Identity.FullNameGuess,
			DocumentType: r.DocumentType,
			Group:        gi,
			Assigned:     g.Status == constants.GroupWritten,
			Preview:      utils.Preview(r.Page.Text, constants.PreviewChars),
		}
		if !rep.Assigned {
			rep.Reason = g.Message
			if rep.Reason == "" {
				rep.Reason = string(g.Status)
			}
		}
		out.Pages = append(out.Pages, rep)
	}
	return out
}
