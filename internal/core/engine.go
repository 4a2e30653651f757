//go:build !gosseract

package core

import (
	"log/slog"

	"github.com/sgte/pdf-splitter/internal/ocr"
)

func newEngine(cfg ocr.Config, runner ocr.Runner, logger *slog.Logger) ocr.Engine {
	return ocr.NewTesseract(cfg, runner, logger)
}
