package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/classify"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/export"
	"github.com/sgte/pdf-splitter/internal/ingest"
	"github.com/sgte/pdf-splitter/internal/ocr"
	"github.com/sgte/pdf-splitter/internal/pipeline"
	"github.com/sgte/pdf-splitter/internal/repository"
	"github.com/sgte/pdf-splitter/internal/roster"
	"github.com/sgte/pdf-splitter/internal/writer"
)

// textDoc exposes every page as an embedded text layer.
type textDoc struct {
	path      string
	pages     []string
	onExtract func(pages []int)
}

func (d textDoc) Path() string   { return d.path }
func (d textDoc) Size() int64    { return 1 }
func (d textDoc) PageCount() int { return len(d.pages) }

func (d textDoc) TextLayer(_ context.Context, page int) (string, error) { return d.pages[page], nil }

func (d textDoc) Render(_ context.Context, page int, dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("page-%05d.png", page+1))
	return path, os.WriteFile(path, nil, 0o644)
}

func (d textDoc) ExtractPages(_ context.Context, pages []int, w io.Writer) error {
	if d.onExtract != nil {
		d.onExtract(pages)
	}
	_, err := fmt.Fprintf(w, "%v", pages)
	return err
}

type okEngine struct{ probeErr error }

func (e okEngine) Probe(context.Context) error { return e.probeErr }
func (okEngine) Recognize(context.Context, string) (ocr.Recognition, error) {
	return ocr.Recognition{Method: ocr.MethodPageOCR}, nil
}

type fixture struct {
	proc      *Processor
	batches   repository.BatchRepository
	documents repository.DocumentRepository
	ingestor  ingest.Ingestor
	pipeline  *pipeline.Pipeline
	open      Opener
	root      string
	reports   string
	source    string
	opened    int
	onExtract func(pages []int)
}

// withDocuments rebuilds the processor around another document repository.
func (f *fixture) withDocuments(docs repository.DocumentRepository) {
	f.proc = NewProcessor(nil, f.ingestor, f.batches, docs, f.pipeline, f.open, export.NewService(nil), f.reports)
}

// failingDocuments refuses every insert.
type failingDocuments struct {
	repository.DocumentRepository
	calls int
}

func (d *failingDocuments) RecordIntents(context.Context, *uuid.UUID, []entity.DocumentIntent) ([]entity.Document, error) {
	d.calls++
	return nil, errors.New("documentos: connection reset")
}

func newFixture(t *testing.T, engine ocr.Engine) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := repository.Migrate(ctx, db, nil); err != nil {
		t.Fatal(err)
	}

	students := repository.NewStudentRepository(db, nil)
	if _, err := students.UpsertStudents(ctx, []entity.RosterEntry{{RUN: "11111111-1", Nombres: "Ana", Apellidos: "Díaz"}}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		batches:   repository.NewBatchRepository(db, nil),
		documents: repository.NewDocumentRepository(db, nil),
		root:      t.TempDir(),
		reports:   t.TempDir(),
	}
	f.source = filepath.Join(t.TempDir(), "lote.pdf")
	if err := os.WriteFile(f.source, []byte("%PDF-1.4 lote"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := writer.New(writer.Config{Root: f.root, Workers: 2, Now: func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}}, nil)
	pl := pipeline.New(pipeline.Config{OCRWorkers: 2, UseTextLayer: true, MinTextChars: 10, ScratchDir: t.TempDir()},
		engine, classify.NewDefault(), roster.NewResolver(students, nil), w, nil)

	f.pipeline = pl
	f.ingestor = ingest.NewFSIngestor(f.batches, 0, nil)
	f.open = func(path string) (pipeline.Document, error) {
		f.opened++
		return textDoc{path: path, onExtract: f.onExtract, pages: []string{
			"Certificado Biblioteca\nRUN: 11.111.111-1\nSin préstamos pendientes.",
			"Segunda hoja del certificado de biblioteca",
			"Certificado Financiero\nRUN: 22.222.222-2\nSin deudas.",
		}}, nil
	}
	f.withDocuments(f.documents)
	return f
}

func TestProcessPath(t *testing.T) {
	f := newFixture(t, okEngine{})
	ctx := context.Background()

	res, err := f.proc.ProcessPath(ctx, f.source, false)
	if err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}
	if res.Skipped || res.Outcome.Written != 1 || res.Outcome.Unmatched != 1 {
		t.Fatalf("result = %+v", res.Outcome)
	}
	if res.Batch.Status != constants.BatchDone || res.Batch.Pages != 3 {
		t.Errorf("batch = %+v", res.Batch)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Errorf("report: %v", err)
	}

	docs, err := f.documents.ListByStudent(ctx, "11111111-1")
	if err != nil || len(docs) != 1 || docs[0].DocumentType != constants.Biblioteca {
		t.Fatalf("documents = %+v, %v", docs, err)
	}
	if _, err := os.Stat(docs[0].Path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	again, err := f.proc.ProcessPath(ctx, f.source, false)
	if err != nil || !again.Skipped || f.opened != 1 {
		t.Fatalf("duplicate should be skipped: skipped=%v opened=%d err=%v", again.Skipped, f.opened, err)
	}

	forced, err := f.proc.ProcessPath(ctx, f.source, true)
	if err != nil || forced.Skipped || f.opened != 2 {
		t.Fatalf("forced run: skipped=%v opened=%d err=%v", forced.Skipped, f.opened, err)
	}
	entries, _ := os.ReadDir(filepath.Join(f.root, "111111111"))
	if len(entries) != 2 {
		t.Errorf("forced run should add a suffixed artifact, got %d files", len(entries))
	}
}

func TestProcessPathEngineUnavailable(t *testing.T) {
	f := newFixture(t, okEngine{probeErr: errors.New("tesseract: not found")})
	ctx := context.Background()

	res, err := f.proc.ProcessPath(ctx, f.source, false)
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("err = %v", err)
	}
	row, err := f.batches.GetByID(ctx, res.Batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != constants.BatchFailed || row.Error == nil {
		t.Fatalf("batch = %+v", row)
	}
	if err := f.proc.Probe(ctx); !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("probe = %v", err)
	}

	// failed batches are retried without force
	if _, err := f.proc.ProcessPath(ctx, f.source, false); !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("retry err = %v", err)
	}
	if f.opened != 2 {
		t.Fatalf("opened = %d", f.opened)
	}
}

func TestProcessPathRejectsOtherFiles(t *testing.T) {
	f := newFixture(t, okEngine{})
	txt := filepath.Join(t.TempDir(), "notas.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.proc.ProcessPath(context.Background(), txt, false); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestProcessPathCanceledDuringWrite(t *testing.T) {
	f := newFixture(t, okEngine{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onExtract = func([]int) { cancel() }

	res, err := f.proc.ProcessPath(ctx, f.source, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	row, err := f.batches.GetByID(context.Background(), res.Batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != constants.BatchFailed || row.Error == nil {
		t.Fatalf("canceled batch = %+v", row)
	}
	if names, _ := os.ReadDir(filepath.Join(f.root, "111111111")); len(names) != 0 {
		t.Fatalf("canceled run left %d artifacts", len(names))
	}
	if docs, _ := f.documents.ListByStudent(context.Background(), "11111111-1"); len(docs) != 0 {
		t.Fatalf("canceled run recorded %+v", docs)
	}

	// the failed batch is picked up again without force
	f.onExtract = nil
	again, err := f.proc.ProcessPath(context.Background(), f.source, false)
	if err != nil || again.Skipped || f.opened != 2 {
		t.Fatalf("resubmit: skipped=%v opened=%d err=%v", again.Skipped, f.opened, err)
	}
	if again.Batch.Status != constants.BatchDone || again.Outcome.Written != 1 {
		t.Fatalf("resubmit batch = %+v", again.Batch)
	}
}

func TestProcessPathRecordFailureRemovesArtifacts(t *testing.T) {
	f := newFixture(t, okEngine{})
	docs := &failingDocuments{}
	f.withDocuments(docs)
	ctx := context.Background()

	res, err := f.proc.ProcessPath(ctx, f.source, false)
	if err == nil || docs.calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, docs.calls)
	}
	row, err := f.batches.GetByID(ctx, res.Batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != constants.BatchFailed {
		t.Fatalf("batch = %+v", row)
	}
	if names, _ := os.ReadDir(filepath.Join(f.root, "111111111")); len(names) != 0 {
		t.Fatalf("unrecorded artifacts left on disk: %d", len(names))
	}

	// a retry with a healthy repository writes the same name again
	f.withDocuments(f.documents)
	again, err := f.proc.ProcessPath(ctx, f.source, false)
	if err != nil || again.Skipped {
		t.Fatalf("retry: skipped=%v err=%v", again.Skipped, err)
	}
	names, _ := os.ReadDir(filepath.Join(f.root, "111111111"))
	if len(names) != 1 || strings.Contains(names[0].Name(), "_2.pdf") {
		t.Fatalf("retry artifacts = %v", names)
	}
}
