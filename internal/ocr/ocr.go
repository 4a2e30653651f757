// Package ocr turns a rendered page image into text with a confidence score.
package ocr

import (
	"context"
	"log/slog"
)

// Recognition methods.
const (
	MethodPageOCR = "page-ocr"
	MethodNone    = "none"
)

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "spa"
	TessdataDir   string

	// TSV mode reads text and per-word confidence in one tesseract call.
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// Recognition is the result of recognizing one page image.
type Recognition struct {
	Text       string
	Confidence float64 // 0..1
	Method     string
	Warnings   []string
}

// Engine is the OCR contract used by the pipeline. Recognize must not fail on a
// blank or unreadable image: it returns empty text and zero confidence instead.
type Engine interface {
	Recognize(ctx context.Context, raster string) (Recognition, error)
	Probe(ctx context.Context) error
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "spa"
	}
	return c
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
