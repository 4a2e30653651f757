package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/entity"
)

// fakeDoc writes "pages:<list>" instead of a real PDF.
type fakeDoc struct {
	mu     sync.Mutex
	failOn map[int]error // first page of a segment -> error
	hook   func(pages []int)
}

func (f *fakeDoc) ExtractPages(ctx context.Context, pages []int, w io.Writer) error {
	if f.hook != nil {
		f.hook(pages)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	err := f.failOn[pages[0]]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "pages:%v", pages)
	return err
}

var fixed = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newWriter(t *testing.T) (*Writer, string) {
	root := t.TempDir()
	return New(Config{Root: root, Workers: 4, Now: func() time.Time { return fixed }}, nil), root
}

func matched(run string, pages ...entity.PageResult) entity.PageGroup {
	g := entity.PageGroup{
		Pages:        pages,
		Identity:     run,
		Status:       constants.GroupMatched,
		Student:      &entity.RosterEntry{RUN: run},
		DocumentType: constants.Unknown,
	}
	for _, p := range pages {
		if p.DocumentType != constants.Unknown {
			g.DocumentType = p.DocumentType
			break
		}
	}
	return g
}

func pg(i int, t constants.DocumentType) entity.PageResult {
	return entity.PageResult{Page: entity.SourcePage{Index: i}, DocumentType: t}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteMatchedAndUnmatched(t *testing.T) {
	w, root := newWriter(t)
	groups := []entity.PageGroup{
		matched("11111111-1", pg(0, constants.Biblioteca), pg(1, constants.Unknown), pg(2, constants.Unknown)),
		{
			Pages:    []entity.PageResult{pg(3, constants.Financiero), pg(4, constants.Unknown)},
			Identity: "22222222-2", Status: constants.GroupUnmatched, Message: "student not in roster",
			DocumentType: constants.Financiero,
		},
	}
	out := w.Write(context.Background(), &fakeDoc{}, groups)

	if out[0].Status != constants.GroupWritten || len(out[0].Artifacts) != 1 {
		t.Fatalf("group A = %+v", out[0])
	}
	want := filepath.Join(root, "111111111", "biblioteca_20260314_093000.pdf")
	if out[0].Artifacts[0].Path != want {
		t.Fatalf("path = %s, want %s", out[0].Artifacts[0].Path, want)
	}
	data, _ := os.ReadFile(want)
	if string(data) != "pages:[0 1 2]" {
		t.Fatalf("content = %q", data)
	}
	if len(out[0].Intents) != 1 || out[0].Intents[0].StudentRUN != "11111111-1" || out[0].Intents[0].LastPage != 2 {
		t.Fatalf("intents = %+v", out[0].Intents)
	}

	if out[1].Status != constants.GroupUnmatched || len(out[1].Artifacts) != 0 || out[1].Message == "" {
		t.Fatalf("group B = %+v", out[1])
	}
	if _, err := os.Stat(filepath.Join(root, "222222222")); !os.IsNotExist(err) {
		t.Fatal("unmatched group created a folder")
	}
	if out[1].FirstPage != 3 || out[1].LastPage != 4 || out[1].Identity != "22222222-2" {
		t.Fatalf("group B outcome lost identity or range: %+v", out[1])
	}
}

func TestWriteNeverOverwrites(t *testing.T) {
	w, root := newWriter(t)
	dir := filepath.Join(root, "111111111")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "biblioteca_20260314_093000.pdf")
	if err := os.WriteFile(existing, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	groups := []entity.PageGroup{
		matched("11111111-1", pg(0, constants.Biblioteca)),
		matched("11111111-1", pg(1, constants.Biblioteca)),
	}
	// two groups for the same student in one batch, written concurrently
	out := w.Write(context.Background(), &fakeDoc{}, groups)

	for i, o := range out {
		if o.Status != constants.GroupWritten {
			t.Fatalf("group %d = %+v", i, o)
		}
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "original" {
		t.Fatal("existing artifact was overwritten")
	}
	names := listDir(t, dir)
	want := []string{"biblioteca_20260314_093000.pdf", "biblioteca_20260314_093000_2.pdf", "biblioteca_20260314_093000_3.pdf"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", names, want)
	}
}

func TestWriteSegmentsByType(t *testing.T) {
	w, root := newWriter(t)
	g := matched("12345678-5",
		pg(0, constants.Financiero), pg(1, constants.Unknown),
		pg(2, constants.Acta), pg(3, constants.Unknown))
	out := w.Write(context.Background(), &fakeDoc{}, []entity.PageGroup{g})

	if out[0].Status != constants.GroupWritten || len(out[0].Artifacts) != 2 {
		t.Fatalf("outcome = %+v", out[0])
	}
	names := listDir(t, filepath.Join(root, "123456785"))
	if len(names) != 2 || names[0] != "acta_20260314_093000.pdf" || names[1] != "financiero_20260314_093000.pdf" {
		t.Fatalf("files = %v", names)
	}
	if got := out[0].Artifacts[1].Pages; len(got) != 2 || got[0] != 2 {
		t.Fatalf("acta pages = %v", got)
	}
}

func TestWriteIsolatesFailures(t *testing.T) {
	w, root := newWriter(t)
	doc := &fakeDoc{failOn: map[int]error{5: errors.New("disk full")}}
	groups := []entity.PageGroup{
		matched("11111111-1", pg(0, constants.Biblioteca)),
		matched("22222222-2", pg(3, constants.Financiero), pg(4, constants.Unknown), pg(5, constants.Acta)),
		matched("12345678-5", pg(6, constants.SDT)),
	}
	out := w.Write(context.Background(), doc, groups)

	failed := 0
	for _, o := range out {
		if o.Status == constants.GroupFailed {
			failed++
		}
	}
	if failed != 1 || out[1].Status != constants.GroupFailed {
		t.Fatalf("want exactly group 1 failed, got %+v", out)
	}
	if !strings.Contains(out[1].Message, "disk full") || len(out[1].Artifacts) != 0 {
		t.Fatalf("failed outcome = %+v", out[1])
	}
	// the financiero segment committed before the failure was rolled back
	if names := listDir(t, filepath.Join(root, "222222222")); len(names) != 0 {
		t.Fatalf("partial artifacts left: %v", names)
	}
	if out[0].Status != constants.GroupWritten || out[2].Status != constants.GroupWritten {
		t.Fatal("healthy groups must still be written")
	}
}

func TestWriteCancelRollsBack(t *testing.T) {
	w, root := newWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc := &fakeDoc{hook: func(pages []int) {
		if pages[0] == 2 {
			cancel()
		}
	}}
	g := matched("11111111-1", pg(0, constants.Biblioteca), pg(1, constants.Unknown), pg(2, constants.Acta))
	out := w.Write(ctx, doc, []entity.PageGroup{g})

	if out[0].Status != constants.GroupFailed {
		t.Fatalf("status = %s", out[0].Status)
	}
	if names := listDir(t, filepath.Join(root, "111111111")); len(names) != 0 {
		t.Fatalf("canceled group left files: %v", names)
	}
}

func TestWriteAfterCancelWritesNothing(t *testing.T) {
	w, root := newWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := w.Write(ctx, &fakeDoc{}, []entity.PageGroup{matched("11111111-1", pg(0, constants.Acta))})
	if out[0].Status != constants.GroupFailed {
		t.Fatalf("status = %s", out[0].Status)
	}
	if _, err := os.Stat(filepath.Join(root, "111111111")); !os.IsNotExist(err) {
		t.Fatal("folder created after cancel")
	}
}

func TestWriteRejectsUnusableRUN(t *testing.T) {
	tests := []struct {
		name string
		run  string
	}{
		{"empty", ""},
		{"separators only", ".-"},
		{"not a RUN", "sin rut"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, root := newWriter(t)
			out := w.Write(context.Background(), &fakeDoc{}, []entity.PageGroup{matched(tt.run, pg(0, constants.Acta))})
			if out[0].Status != constants.GroupFailed || len(out[0].Intents) != 0 {
				t.Fatalf("outcome = %+v", out[0])
			}
			if names := listDir(t, root); len(names) != 0 {
				t.Fatalf("files written under root: %v", names)
			}
		})
	}
}

func TestWriteReleasesFolderLocks(t *testing.T) {
	w, _ := newWriter(t)
	groups := []entity.PageGroup{
		matched("11111111-1", pg(0, constants.Acta)),
		matched("11.111.111-1", pg(1, constants.Biblioteca)),
		matched("22222222-2", pg(2, constants.Financiero)),
	}
	for i := 0; i < 3; i++ {
		out := w.Write(context.Background(), &fakeDoc{}, groups)
		for _, o := range out {
			if o.Status != constants.GroupWritten {
				t.Fatalf("round %d: %+v", i, o)
			}
		}
	}
	w.mu.Lock()
	n := len(w.locks)
	w.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d folder locks retained after writes finished", n)
	}
}
