package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/identity"
	"github.com/sgte/pdf-splitter/internal/ocr"
)

// recognizePages recognizes every page in parallel and returns results in
// page order. It fails only when ctx is canceled.
func (p *Pipeline) recognizePages(ctx context.Context, doc Document, dir string) ([]entity.PageResult, error) {
	n := doc.PageCount()
	results := make([]entity.PageResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.OCRWorkers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page := p.recognize(gctx, doc, i, dir)
			results[i] = entity.PageResult{
				Page:         page,
				Identity:     identity.Extract(page.Text),
				DocumentType: p.classifier.Classify(page.Text),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// recognize never fails: a page that cannot be read becomes a zero-signal page
// carrying warnings.
func (p *Pipeline) recognize(ctx context.Context, doc Document, i int, dir string) entity.SourcePage {
	page := entity.SourcePage{Index: i, Method: entity.MethodNone}
	pctx, cancel := common.WithTimeout(ctx, p.cfg.PageTimeout)
	defer cancel()

	if p.cfg.UseTextLayer {
		txt, err := doc.TextLayer(pctx, i)
		switch {
		case err != nil:
			page.Warnings = append(page.Warnings, "text layer: "+err.Error())
		case visibleChars(txt) >= p.cfg.MinTextChars:
			page.Text = ocr.Normalize(txt)
			page.OCRConfidence = 1.0
			page.Method = entity.MethodPDFText
			return page
		}
	}

	raster, err := doc.Render(pctx, i, dir)
	if err != nil {
		page.Warnings = append(page.Warnings, p.pageWarning(pctx, "render", err))
		return page
	}
	page.Raster = raster
	defer func() { _ = os.Remove(raster) }()

	rec, err := p.engine.Recognize(pctx, raster)
	if err != nil {
		page.Warnings = append(page.Warnings, p.pageWarning(pctx, "ocr", err))
		return page
	}
	page.Text = rec.Text
	page.OCRConfidence = rec.Confidence
	page.Method = rec.Method
	page.Warnings = append(page.Warnings, rec.Warnings...)
	return page
}

func (p *Pipeline) pageWarning(ctx context.Context, stage string, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn("page timed out", "stage", stage, "timeout", p.cfg.PageTimeout)
		return stage + ": page timed out"
	}
	p.logger.Warn("page unreadable", "stage", stage, "error", err)
	return stage + ": " + err.Error()
}

func visibleChars(s string) int {
	n := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\r\n\f", r) {
			n++
		}
	}
	return n
}
