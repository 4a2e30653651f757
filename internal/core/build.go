package core

import (
	"log/slog"

	"github.com/sgte/pdf-splitter/internal/classify"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/export"
	"github.com/sgte/pdf-splitter/internal/ingest"
	"github.com/sgte/pdf-splitter/internal/ocr"
	"github.com/sgte/pdf-splitter/internal/pipeline"
	"github.com/sgte/pdf-splitter/internal/repository"
	"github.com/sgte/pdf-splitter/internal/roster"
	"github.com/sgte/pdf-splitter/internal/source"
	"github.com/sgte/pdf-splitter/internal/writer"
)

// Build wires the OCR engine, the pipeline stages and the repositories from cfg.
func Build(cfg *common.Config, db *repository.DB, logger *slog.Logger) (*Processor, ingest.Ingestor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := classify.LoadRules(cfg.Pipeline.ClassifierRules)
	if err != nil {
		return nil, nil, common.NewAppError(common.CodeConfig, "CLASSIFIER_RULES", err)
	}

	runner := ocr.ExecRunner{}
	engine := newEngine(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: true,
		PSM:                 cfg.OCR.PSM,
	}, runner, logger)

	students := repository.NewStudentRepository(db, logger)
	batches := repository.NewBatchRepository(db, logger)
	documents := repository.NewDocumentRepository(db, logger)

	maxBytes := int64(cfg.Pipeline.MaxUploadMB) << 20
	pl := pipeline.New(pipeline.Config{
		OCRWorkers:     cfg.Pipeline.OCRWorkers,
		PageTimeout:    cfg.OCR.PageTimeout,
		UseTextLayer:   cfg.Pipeline.UseTextLayer,
		MaxUploadBytes: maxBytes,
	},
		engine,
		classify.New(rules),
		roster.NewResolver(students, logger, roster.WithNameSearcher(students)),
		writer.New(writer.Config{Root: cfg.Paths.ExpedientesRoot, Workers: cfg.Pipeline.WriteWorkers}, logger),
		logger,
	)

	srcCfg := source.Config{Pdftotext: cfg.OCR.Pdftotext, Pdftoppm: cfg.OCR.Pdftoppm, DPI: cfg.OCR.DPI}
	open := func(path string) (pipeline.Document, error) {
		return source.Open(path, srcCfg, runner, logger)
	}

	ingestor := ingest.NewFSIngestor(batches, maxBytes, logger)
	proc := NewProcessor(logger, ingestor, batches, documents, pl, open, export.NewService(logger), cfg.Paths.ReportsDir)
	return proc, ingestor, nil
}
