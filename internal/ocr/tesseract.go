package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sgte/pdf-splitter/internal/common"
)

// Tesseract recognizes page images with the tesseract CLI.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tesseract{cfg: cfg.withDefaults(), runner: runner, logger: loggerOrDefault(logger)}
}

// Probe checks the binary runs and has the configured language installed.
func (t *Tesseract) Probe(ctx context.Context) error {
	if _, _, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, "--version"); err != nil {
		return common.EngineUnavailable(fmt.Errorf("%s --version: %w", t.cfg.Tesseract, err))
	}
	args := []string{"--list-langs"}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, args...)
	if err != nil {
		return common.EngineUnavailable(fmt.Errorf("%s --list-langs: %w", t.cfg.Tesseract, err))
	}
	// older builds print the list on stderr
	langs := string(out) + "\n" + string(errb)
	for _, want := range strings.Split(t.cfg.TesseractLang, "+") {
		if !hasLine(langs, want) {
			return common.EngineUnavailable(fmt.Errorf("tesseract language %q not installed", want))
		}
	}
	return nil
}

func hasLine(s, want string) bool {
	for _, ln := range strings.Split(s, "\n") {
		if strings.TrimSpace(ln) == want {
			return true
		}
	}
	return false
}

// Recognize runs tesseract on one page image.
func (t *Tesseract) Recognize(ctx context.Context, raster string) (Recognition, error) {
	var (
		txt     string
		ocrConf float64
		err     error
	)
	if t.cfg.EnableTSVConfidence {
		txt, ocrConf, err = t.tsv(ctx, raster)
	} else {
		txt, err = t.plain(ctx, raster)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Recognition{Method: MethodNone}, ctxErr
		}
		t.logger.Warn("page unreadable", "raster", raster, "error", err)
		return Recognition{Method: MethodNone, Warnings: []string{err.Error()}}, nil
	}

	txt = Normalize(txt)
	if txt == "" {
		return Recognition{Method: MethodPageOCR}, nil
	}
	return Recognition{
		Text:       txt,
		Confidence: blend(ocrConf, heuristicConfidence(txt)),
		Method:     MethodPageOCR,
	}, nil
}

func (t *Tesseract) baseArgs(raster string) []string {
	// tesseract <file> stdout -l <lang>
	args := []string{raster, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

func (t *Tesseract) plain(ctx context.Context, raster string) (string, error) {
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, t.baseArgs(raster)...)
	if err != nil {
		return "", errors.Join(fmt.Errorf("tesseract: %w", err), stderrErr(errb))
	}
	return string(out), nil
}

func (t *Tesseract) tsv(ctx context.Context, raster string) (string, float64, error) {
	args := append(t.baseArgs(raster), "tsv")
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, args...)
	if err != nil {
		return "", 0, errors.Join(fmt.Errorf("tesseract TSV: %w", err), stderrErr(errb))
	}
	txt, conf := parseTSV(out)
	return txt, conf, nil
}

func stderrErr(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil
	}
	return errors.New(truncate(s, 512))
}
