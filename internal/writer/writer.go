// Package writer commits matched page groups to student folders.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/nationalid"
)

// PageSource produces a PDF holding a subset of the source pages.
type PageSource interface {
	ExtractPages(ctx context.Context, pages []int, w io.Writer) error
}

// StampLayout is the timestamp embedded in artifact names.
const StampLayout = "20060102_150405"

// maxSuffix bounds the collision search for one artifact name.
const maxSuffix = 1000

type Config struct {
	Root    string
	Workers int
	Now     func() time.Time
}

type Writer struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*folderLock
}

// folderLock serializes writes into one student folder. It is dropped from
// the map when the last holder releases it.
type folderLock struct {
	mu   sync.Mutex
	refs int
}

func New(cfg Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Writer{cfg: cfg, logger: logger, locks: make(map[string]*folderLock)}
}

func (w *Writer) lock(key string) func() {
	w.mu.Lock()
	l, ok := w.locks[key]
	if !ok {
		l = &folderLock{}
		w.locks[key] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, key)
		}
		w.mu.Unlock()
	}
}

// Write commits every matched group and reports an outcome per group, in input
// order. Groups are written concurrently; writes into the same student folder
// are serialized. A failing group is rolled back and marked failed without
// affecting the others.
func (w *Writer) Write(ctx context.Context, doc PageSource, groups []entity.PageGroup) []entity.GroupOutcome {
	outcomes := make([]entity.GroupOutcome, len(groups))
	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)

	for i, grp := range groups {
		outcomes[i] = baseOutcome(grp)
		if grp.Status != constants.GroupMatched {
			continue
		}
		g.Go(func() error {
			outcomes[i] = w.writeGroup(ctx, doc, grp, outcomes[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func baseOutcome(g entity.PageGroup) entity.GroupOutcome {
	return entity.GroupOutcome{
		FirstPage:    g.FirstPage(),
		LastPage:     g.LastPage(),
		Identity:     g.Identity,
		NameGuess:    g.NameGuess,
		DocumentType: g.DocumentType,
		Status:       g.Status,
		Student:      g.Student,
		Candidates:   g.Candidates,
		Message:      g.Message,
	}
}

func (w *Writer) writeGroup(ctx context.Context, doc PageSource, g entity.PageGroup, out entity.GroupOutcome) entity.GroupOutcome {
	fail := func(committed []string, err error) entity.GroupOutcome {
		if rbErr := rollback(committed); rbErr != nil {
			w.logger.Error("rollback incomplete", "run", g.Identity, "error", rbErr)
		}
		werr := common.WriteFailed(fmt.Sprintf("pages %d-%d", out.FirstPage, out.LastPage), err)
		w.logger.Error("group write failed", "run", g.Identity, "first_page", out.FirstPage, "error", werr)
		out.Status = constants.GroupFailed
		out.Message = werr.Error()
		out.Artifacts = nil
		out.Intents = nil
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(nil, err)
	}

	run := g.Identity
	if g.Student != nil && g.Student.RUN != "" {
		run = g.Student.RUN
	}
	folder := nationalid.Compact(run)
	if folder == "" {
		// an empty name would write straight into Root
		return fail(nil, fmt.Errorf("no usable RUN for student folder: %q", run))
	}
	unlock := w.lock(folder)
	defer unlock()

	dir := filepath.Join(w.cfg.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(nil, err)
	}
	stamp := w.cfg.Now().Format(StampLayout)

	var committed []string
	for _, seg := range g.Segments() {
		if err := ctx.Err(); err != nil {
			return fail(committed, err)
		}
		base := fmt.Sprintf("%s_%s", seg.DocumentType, stamp)
		path, err := commit(ctx, doc, dir, base, seg.Pages)
		if err != nil {
			return fail(committed, err)
		}
		committed = append(committed, path)
		out.Artifacts = append(out.Artifacts, entity.Artifact{
			Path:         path,
			DocumentType: seg.DocumentType,
			Pages:        seg.Pages,
		})
		out.Intents = append(out.Intents, entity.DocumentIntent{
			StudentRUN:   run,
			DocumentType: seg.DocumentType,
			Path:         path,
			FirstPage:    seg.Pages[0],
			LastPage:     seg.Pages[len(seg.Pages)-1],
		})
	}

	out.Status = constants.GroupWritten
	w.logger.Info("group written", "run", run, "artifacts", len(committed), "dir", dir)
	return out
}

// commit writes pages to a temp file in dir and links it to the first free
// name base.pdf, base_2.pdf, ... An existing file is never replaced.
func commit(ctx context.Context, doc PageSource, dir, base string, pages []int) (string, error) {
	tmp, err := os.CreateTemp(dir, ".partial-*.pdf")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := doc.ExtractPages(ctx, pages, tmp); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	for n := 1; n <= maxSuffix; n++ {
		name := base + ".pdf"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.pdf", base, n)
		}
		dest := filepath.Join(dir, name)
		err := publish(tmpPath, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", base, dir)
}

// publish makes tmp visible as dest only if dest does not exist yet.
func publish(tmp, dest string) error {
	err := os.Link(tmp, dest)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}
	// filesystems without hard links
	return copyExclusive(tmp, dest)
}

func copyExclusive(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func rollback(paths []string) error {
	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.Remove(paths[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
