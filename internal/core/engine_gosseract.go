//go:build gosseract

package core

import (
	"log/slog"

	"github.com/sgte/pdf-splitter/internal/ocr"
)

// newEngine links libtesseract in-process; pages are still rendered by pdftoppm.
func newEngine(cfg ocr.Config, _ ocr.Runner, logger *slog.Logger) ocr.Engine {
	return ocr.NewGosseract(cfg, logger)
}
