package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/classify"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/ocr"
	"github.com/sgte/pdf-splitter/internal/roster"
	"github.com/sgte/pdf-splitter/internal/writer"
)

// memDoc serves page text from memory. Pages with text expose it as an
// embedded text layer; the rest must go through OCR.
type memDoc struct {
	pages    []string
	size      int64
	rendered  atomic.Int32
	onExtract func()
}

func (d *memDoc) Path() string   { return "lote.pdf" }
func (d *memDoc) Size() int64    { return d.size }
func (d *memDoc) PageCount() int { return len(d.pages) }

func (d *memDoc) TextLayer(_ context.Context, page int) (string, error) {
	return d.pages[page], nil
}

func (d *memDoc) Render(_ context.Context, page int, dir string) (string, error) {
	d.rendered.Add(1)
	path := filepath.Join(dir, fmt.Sprintf("page-%05d.png", page+1))
	return path, os.WriteFile(path, []byte(d.pages[page]), 0o644)
}

func (d *memDoc) ExtractPages(_ context.Context, pages []int, w io.Writer) error {
	if d.onExtract != nil {
		d.onExtract()
	}
	_, err := fmt.Fprintf(w, "%v", pages)
	return err
}

// rasterEngine "recognizes" the bytes Render wrote.
type rasterEngine struct {
	probeErr error
	block    bool
}

func (e rasterEngine) Probe(context.Context) error { return e.probeErr }

func (e rasterEngine) Recognize(ctx context.Context, raster string) (ocr.Recognition, error) {
	if e.block {
		<-ctx.Done()
		return ocr.Recognition{Method: ocr.MethodNone}, ctx.Err()
	}
	b, err := os.ReadFile(raster)
	if err != nil {
		return ocr.Recognition{}, err
	}
	if len(b) == 0 {
		return ocr.Recognition{Method: ocr.MethodPageOCR}, nil
	}
	return ocr.Recognition{Text: string(b), Confidence: 0.8, Method: ocr.MethodPageOCR}, nil
}

type mapRoster map[string]entity.RosterEntry

func (m mapRoster) Lookup(_ context.Context, run string) ([]entity.RosterEntry, error) {
	if e, ok := m[run]; ok {
		return []entity.RosterEntry{e}, nil
	}
	return nil, nil
}

func newPipeline(t *testing.T, eng ocr.Engine, cfg Config) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = t.TempDir()
	}
	res := roster.NewResolver(mapRoster{"11111111-1": {RUN: "11111111-1", Nombres: "Ana", Apellidos: "Díaz"}}, nil)
	w := writer.New(writer.Config{Root: root, Workers: 2, Now: func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}}, nil)
	return New(cfg, eng, classify.NewDefault(), res, w, nil), root
}

func twoStudentBatch() *memDoc {
	return &memDoc{pages: []string{
		"UNIVERSIDAD\nCertificado Biblioteca\nRUN: 11.111.111-1\nNo registra préstamos pendientes.",
		"",
		"",
		"UNIVERSIDAD\nCertificado Financiero\nRUN: 22.222.222-2\nNo registra deudas con la institución.",
		"",
	}}
}

func TestRunTwoStudentBatch(t *testing.T) {
	p, root := newPipeline(t, rasterEngine{}, Config{OCRWorkers: 3, UseTextLayer: true, MinTextChars: 10})
	doc := twoStudentBatch()

	out, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Groups) != 2 {
		t.Fatalf("groups = %+v", out.Groups)
	}

	a, b := out.Groups[0], out.Groups[1]
	if a.FirstPage != 0 || a.LastPage != 2 || a.Identity != "11111111-1" || a.DocumentType != constants.Biblioteca {
		t.Errorf("group A = %+v", a)
	}
	if a.Status != constants.GroupWritten || len(a.Artifacts) != 1 {
		t.Errorf("group A status = %s artifacts = %d", a.Status, len(a.Artifacts))
	}
	if b.FirstPage != 3 || b.LastPage != 4 || b.Identity != "22222222-2" || b.DocumentType != constants.Financiero {
		t.Errorf("group B = %+v", b)
	}
	if b.Status != constants.GroupUnmatched || b.Message != roster.MsgNotInRoster || len(b.Artifacts) != 0 {
		t.Errorf("group B status = %s msg = %q", b.Status, b.Message)
	}

	written, err := os.ReadFile(filepath.Join(root, "111111111", "biblioteca_20260314_093000.pdf"))
	if err != nil || string(written) != "[0 1 2]" {
		t.Fatalf("artifact = %q, %v", written, err)
	}
	if _, err := os.Stat(filepath.Join(root, "222222222")); !os.IsNotExist(err) {
		t.Error("unmatched student folder created")
	}

	if out.Matched != 1 || out.Unmatched != 1 || out.Written != 1 || out.Failed != 0 || out.TotalPages != 5 {
		t.Errorf("counters = %+v", out)
	}
	if got := len(out.Intents()); got != 1 {
		t.Errorf("intents = %d", got)
	}
	unassigned := out.Unassigned()
	if len(unassigned) != 2 || unassigned[0].Index != 3 || unassigned[0].Reason != roster.MsgNotInRoster {
		t.Errorf("unassigned = %+v", unassigned)
	}
	if out.Pages[0].Method != entity.MethodPDFText || out.Pages[1].Method != entity.MethodPageOCR {
		t.Errorf("methods = %s, %s", out.Pages[0].Method, out.Pages[1].Method)
	}
	if doc.rendered.Load() != 3 {
		t.Errorf("rendered %d pages, want the 3 without text", doc.rendered.Load())
	}
}

func TestRunOCROnly(t *testing.T) {
	p, _ := newPipeline(t, rasterEngine{}, Config{OCRWorkers: 2})
	out, err := p.Run(context.Background(), twoStudentBatch())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Groups) != 2 || out.Groups[0].Status != constants.GroupWritten {
		t.Fatalf("groups = %+v", out.Groups)
	}
	if out.Pages[0].Method != entity.MethodPageOCR {
		t.Fatalf("method = %s", out.Pages[0].Method)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	p, root := newPipeline(t, rasterEngine{}, Config{OCRWorkers: 4, UseTextLayer: true})
	first, err := p.Run(context.Background(), twoStudentBatch())
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Run(context.Background(), twoStudentBatch())
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Groups {
		f, s := first.Groups[i], second.Groups[i]
		if f.FirstPage != s.FirstPage || f.LastPage != s.LastPage || f.Identity != s.Identity {
			t.Fatalf("boundaries differ: %+v vs %+v", f, s)
		}
	}
	// second run never overwrites the first run's artifact
	entries, _ := os.ReadDir(filepath.Join(root, "111111111"))
	if len(entries) != 2 {
		t.Fatalf("files = %d, want 2", len(entries))
	}
}

func TestRunEngineUnavailable(t *testing.T) {
	p, root := newPipeline(t, rasterEngine{probeErr: errors.New("exec: \"tesseract\": executable file not found")}, Config{})
	_, err := p.Run(context.Background(), twoStudentBatch())
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable, got %v", err)
	}
	if entries, _ := os.ReadDir(root); len(entries) != 0 {
		t.Fatal("files written despite fatal error")
	}
}

func TestRunInvalidInput(t *testing.T) {
	p, _ := newPipeline(t, rasterEngine{}, Config{MaxUploadBytes: 100})
	if _, err := p.Run(context.Background(), &memDoc{}); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("zero pages: got %v", err)
	}
	big := twoStudentBatch()
	big.size = 101
	if _, err := p.Run(context.Background(), big); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("oversize: got %v", err)
	}
}

func TestRunPageTimeoutIsZeroSignal(t *testing.T) {
	p, _ := newPipeline(t, rasterEngine{block: true}, Config{OCRWorkers: 5, PageTimeout: 20 * time.Millisecond})
	out, err := p.Run(context.Background(), twoStudentBatch())
	if err != nil {
		t.Fatalf("timeouts must not abort the run: %v", err)
	}
	if len(out.Groups) != 1 || out.Groups[0].Status != constants.GroupUnmatched {
		t.Fatalf("groups = %+v", out.Groups)
	}
	for _, pg := range out.Pages {
		if pg.Confidence != constants.ConfidenceNone || pg.Method != entity.MethodNone {
			t.Fatalf("page %d = %+v", pg.Index, pg)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	p, root := newPipeline(t, rasterEngine{block: true}, Config{OCRWorkers: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, twoStudentBatch())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if entries, _ := os.ReadDir(root); len(entries) != 0 {
		t.Fatal("canceled run wrote files")
	}
}

func TestRunCanceledDuringWrite(t *testing.T) {
	p, root := newPipeline(t, rasterEngine{}, Config{OCRWorkers: 2, UseTextLayer: true, MinTextChars: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc := twoStudentBatch()
	doc.onExtract = cancel

	out, err := p.Run(ctx, doc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, outcome = %+v", err, out)
	}
	if len(out.Groups) != 0 {
		t.Fatalf("canceled run returned groups: %+v", out.Groups)
	}
	if entries, _ := os.ReadDir(filepath.Join(root, "111111111")); len(entries) != 0 {
		t.Fatalf("canceled run left %d files", len(entries))
	}
}

func TestVisibleChars(t *testing.T) {
	if n := visibleChars(" a\n\fb\t"); n != 2 {
		t.Fatalf("visibleChars = %d", n)
	}
}
