//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/sgte/pdf-splitter/internal/common"
)

// Gosseract recognizes pages in-process through libtesseract. One client is
// kept per goroutine in a pool since a client is not safe for concurrent use.
type Gosseract struct {
	cfg    Config
	logger *slog.Logger
	pool   sync.Pool
}

func NewGosseract(cfg Config, logger *slog.Logger) *Gosseract {
	g := &Gosseract{cfg: cfg.withDefaults(), logger: loggerOrDefault(logger)}
	g.pool.New = func() any {
		c := gosseract.NewClient()
		if g.cfg.TessdataDir != "" {
			_ = c.SetTessdataPrefix(g.cfg.TessdataDir)
		}
		_ = c.SetLanguage(g.cfg.TesseractLang)
		if g.cfg.PSM > 0 {
			_ = c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM))
		}
		return c
	}
	return g
}

func (g *Gosseract) Probe(ctx context.Context) error {
	c := gosseract.NewClient()
	defer c.Close()
	if g.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return common.EngineUnavailable(err)
		}
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return common.EngineUnavailable(err)
	}
	if v := gosseract.Version(); v == "" {
		return common.EngineUnavailable(fmt.Errorf("libtesseract version unknown"))
	}
	return nil
}

func (g *Gosseract) Recognize(ctx context.Context, raster string) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{Method: MethodNone}, err
	}
	c := g.pool.Get().(*gosseract.Client)
	defer g.pool.Put(c)

	if err := c.SetImage(raster); err != nil {
		g.logger.Warn("page unreadable", "raster", raster, "error", err)
		return Recognition{Method: MethodNone, Warnings: []string{err.Error()}}, nil
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		g.logger.Warn("page unreadable", "raster", raster, "error", err)
		return Recognition{Method: MethodNone, Warnings: []string{err.Error()}}, nil
	}
	txt, err := c.Text()
	if err != nil {
		return Recognition{Method: MethodNone, Warnings: []string{err.Error()}}, nil
	}
	txt = Normalize(txt)
	if txt == "" {
		return Recognition{Method: MethodPageOCR}, nil
	}

	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	var ocrConf float64
	if len(boxes) > 0 {
		ocrConf = sum / float64(len(boxes)) / 100.0
	}
	return Recognition{
		Text:       txt,
		Confidence: blend(ocrConf, heuristicConfidence(txt)),
		Method:     MethodPageOCR,
	}, nil
}
