// Package source opens scanned batch PDFs for the splitter.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/ocr"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	DPI       int    // rasterization DPI for scanned pages, default 300
}

// PDF is a read-only source document. Pages are addressed by 0-based index.
type PDF struct {
	path   string
	size   int64
	pages  int
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

// Open reads the page count of the PDF at path. A file pdfcpu cannot parse is
// reported as invalid input.
func Open(path string, cfg Config, runner ocr.Runner, logger *slog.Logger) (*PDF, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, common.InvalidInput("cannot stat source pdf", err)
	}
	if info.IsDir() {
		return nil, common.InvalidInput(fmt.Sprintf("%s is a directory", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, common.InvalidInput("cannot open source pdf", err)
	}
	defer func() { _ = f.Close() }()

	n, err := api.PageCount(f, pdfConf())
	if err != nil {
		return nil, common.InvalidInput("unreadable pdf", err)
	}
	logger.Debug("source opened", "path", path, "pages", n, "size", info.Size())

	return &PDF{
		path:   path,
		size:   info.Size(),
		pages:  n,
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}, nil
}

func pdfConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	// scanner output often has broken xref tables
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (p *PDF) Path() string   { return p.path }
func (p *PDF) Size() int64    { return p.size }
func (p *PDF) PageCount() int { return p.pages }

func (p *PDF) checkPage(page int) error {
	if page < 0 || page >= p.pages {
		return fmt.Errorf("page %d out of range [0,%d)", page, p.pages)
	}
	return nil
}

// TextLayer returns the embedded text of one page, empty for image-only scans.
func (p *PDF) TextLayer(ctx context.Context, page int) (string, error) {
	if err := p.checkPage(page); err != nil {
		return "", err
	}
	n := strconv.Itoa(page + 1)
	// pdftotext -layout -enc UTF-8 -eol unix -f N -l N <path> -
	out, errb, err := p.runner.Run(ctx, p.cfg.Pdftotext, p.logger,
		"-layout", "-enc", "UTF-8", "-eol", "unix", "-f", n, "-l", n, p.path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext page %s: %w (%s)", n, err, truncate(string(errb), 256))
	}
	return string(out), nil
}

// Render rasterizes one page into dir and returns the PNG path.
func (p *PDF) Render(ctx context.Context, page int, dir string) (string, error) {
	if err := p.checkPage(page); err != nil {
		return "", err
	}
	n := strconv.Itoa(page + 1)
	prefix := filepath.Join(dir, "page-"+fmt.Sprintf("%05d", page+1))
	// pdftoppm -r 300 -png -gray -singlefile -f N -l N <in.pdf> <dir/page-0000N>
	_, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, p.logger,
		"-r", strconv.Itoa(p.cfg.DPI), "-png", "-gray", "-singlefile", "-f", n, "-l", n, p.path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %s: %w (%s)", n, err, truncate(string(errb), 256))
	}
	out := prefix + ".png"
	if _, statErr := os.Stat(out); statErr != nil {
		return "", fmt.Errorf("pdftoppm produced no image for page %s: %w", n, statErr)
	}
	return out, nil
}

// ExtractPages writes a new PDF holding the given 0-based pages, in order.
func (p *PDF) ExtractPages(ctx context.Context, pages []int, w io.Writer) error {
	if len(pages) == 0 {
		return errors.New("no pages to extract")
	}
	sel := make([]string, 0, len(pages))
	for _, pg := range pages {
		if err := p.checkPage(pg); err != nil {
			return err
		}
		sel = append(sel, strconv.Itoa(pg+1))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := api.Trim(f, w, sel, pdfConf()); err != nil {
		return fmt.Errorf("extract pages %v: %w", sel, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
